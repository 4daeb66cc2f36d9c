package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvProvider reads secrets from environment variables. The variable name is
// Prefix followed by the secret name upper-cased, with hyphens and dots
// replaced by underscores: "ops-key" becomes HEIMDALL_SECRET_OPS_KEY.
type EnvProvider struct {
	Prefix string

	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix, lookup: os.LookupEnv}
}

// Name implements Provider.
func (p *EnvProvider) Name() string { return "env" }

// Lookup implements Provider. Empty variables count as unset.
func (p *EnvProvider) Lookup(_ context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	val, ok := p.lookup(p.VarName(name))
	if !ok || val == "" {
		return "", ErrNotFound
	}
	return val, nil
}

// VarName returns the environment variable consulted for name.
func (p *EnvProvider) VarName(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_")
	return p.Prefix + strings.ToUpper(r.Replace(name))
}
