package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"valhalla-hq/heimdall/pkg/config"
)

type cacheEntry struct {
	value   string
	expires time.Time
}

// Resolver resolves secrets through an ordered chain of providers and caches
// the results. It is safe for concurrent use.
type Resolver struct {
	providers []Provider
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver. A ttl of zero disables caching.
func NewResolver(ttl time.Duration, providers ...Provider) *Resolver {
	return &Resolver{
		providers: providers,
		ttl:       ttl,
		now:       time.Now,
		logger:    slog.Default().With("component", "secrets"),
		cache:     make(map[string]cacheEntry),
	}
}

// FromConfig builds the environment provider and, when a directory is set,
// the file provider.
func FromConfig(cfg config.SecretsConfig) (*Resolver, error) {
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	return NewResolver(cfg.CacheTTL, providers...), nil
}

// Resolve returns the first value any provider holds for name.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	r.mu.Lock()
	if e, ok := r.cache[name]; ok && r.now().Before(e.expires) {
		r.mu.Unlock()
		return e.value, nil
	}
	r.mu.Unlock()

	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		val, err := p.Lookup(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s provider: %w", p.Name(), err)
		}

		if r.ttl > 0 {
			r.mu.Lock()
			r.cache[name] = cacheEntry{value: val, expires: r.now().Add(r.ttl)}
			r.mu.Unlock()
		}
		r.logger.Debug("secret resolved", "name", redact(name), "provider", p.Name())
		return val, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, redact(name))
}

// Invalidate drops every cached value.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	clear(r.cache)
	r.mu.Unlock()
}

// ResolveAPIKeys fills Key for every key that names a KeySecret. Enabled keys
// that cannot be resolved fail the call; disabled ones are skipped with a
// warning and keep an empty Key, which the validator ignores.
func (r *Resolver) ResolveAPIKeys(ctx context.Context, auth *config.AuthenticationConfig) error {
	var errs []error
	for i := range auth.Keys {
		k := &auth.Keys[i]
		if k.KeySecret == "" {
			continue
		}
		val, err := r.Resolve(ctx, k.KeySecret)
		if err != nil {
			if !k.Enabled {
				r.logger.Warn("disabled api key secret not resolved",
					"user_id", k.UserID,
					"error", err,
				)
				k.Key = ""
				continue
			}
			errs = append(errs, fmt.Errorf("api key for %s: %w", k.UserID, err))
			continue
		}
		k.Key = val
	}
	return errors.Join(errs...)
}
