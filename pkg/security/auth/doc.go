/*
Package auth provides API key authentication for Heimdall's admin routes.

Keys come from the security.authentication section of the configuration.
Each key maps to a user id, which becomes the default changed_by of gate
and engine mutations made through the API.

	validator := auth.FromConfig(cfg.Security.Authentication)
	mw := auth.NewAPIKeyMiddleware(validator, auth.SourcesFromConfig(cfg.Security.Authentication))
	mux.Handle("/api/admin/", mw.Handle(adminHandler))

Keys are extracted from the configured sources in order, typically
"Authorization: Bearer <key>" and then "X-API-Key". Rejected keys are logged
with only their first characters.
*/
package auth
