/*
Package security groups Heimdall's admin access controls.

# API Key Authentication

Admin routes (engine transitions, go-live and kill-switch changes, tripwire
evaluation) require an API key when security.authentication.enabled is set.
The key's user_id becomes the default changed_by of every change.

	validator := auth.FromConfig(cfg.Security.Authentication)
	mw := auth.NewAPIKeyMiddleware(validator, auth.SourcesFromConfig(cfg.Security.Authentication))

# Key Secrets

A key may name a secret instead of carrying its value:

	security:
	  secrets:
	    dir: /var/run/secrets/heimdall
	  authentication:
	    keys:
	      - key_secret: ops-key
	        user_id: ops
	        enabled: true

The secrets package resolves key_secret from HEIMDALL_SECRET_OPS_KEY or from
the file ops-key in the secrets directory.
*/
package security
