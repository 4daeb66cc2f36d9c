// Package secrets resolves named secrets for admin API keys.
//
// A key configured with key_secret instead of key is looked up through a
// chain of providers: the environment first, then an optional directory of
// secret files such as a mounted Kubernetes secret. Resolved values are
// cached for a bounded time so reloads do not hit the providers on every
// request.
//
//	r, err := secrets.FromConfig(cfg.Security.Secrets)
//	if err != nil {
//		return err
//	}
//	if err := r.ResolveAPIKeys(ctx, &cfg.Security.Authentication); err != nil {
//		return err
//	}
//
// Secret values are never logged. Names are redacted to their first
// characters in log lines and errors.
package secrets
