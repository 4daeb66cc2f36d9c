// Package config provides configuration management for Heimdall.
//
// Configuration is loaded from a YAML file, decoded over built-in defaults,
// overridden by environment variables and validated as a whole.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("heimdall.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("heimdall.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention HEIMDALL_SECTION_FIELD:
//
//   - HEIMDALL_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - HEIMDALL_AUDIT_SQLITE_PATH overrides audit.sqlite.path
//   - HEIMDALL_GATE_PROD_EXEC_PREFIXES overrides gate.prod_exec_prefixes (comma separated)
//   - HEIMDALL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Booleans that default to true (audit.enabled, telemetry.metrics.enabled)
// keep that value when the file omits them and honor an explicit false.
//
// # Singleton and Hot Reload
//
//	if err := config.Initialize("heimdall.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// A Watcher observes the file with fsnotify and calls ReloadConfig after a
// debounce period. Components register with OnReload to pick up the new
// values; an invalid file is logged and the previous configuration stays.
//
// # Validation
//
// Validation errors carry field paths:
//
//	configuration validation failed with 2 errors:
//	  - tripwire.policies[0].engine: engine is required for STEP_DOWN
//	  - audit.backend: invalid backend "postgres": must be 'sqlite' or 'memory'
//
// # Example Configuration
//
//	environment: production
//
//	server:
//	  listen_address: "127.0.0.1:8480"
//
//	gate:
//	  enforce: true
//
//	audit:
//	  backend: sqlite
//	  sqlite:
//	    path: /var/lib/heimdall/audit.db
//	  retention:
//	    days: 365
//
//	tripwire:
//	  enabled: true
//	  policies:
//	    - domain: CAPITAL
//	      metric: roi_event
//	      window_events: 50
//	      baseline_events: 200
//	      min_events: 50
//	      max_drop_fraction: 0.3
//	      action: KILL_SWITCH
//	      enabled: true
//
//	security:
//	  secrets:
//	    dir: /var/run/secrets/heimdall
//	  authentication:
//	    enabled: true
//	    keys:
//	      - key: "0c5f1e0d7a"
//	        user_id: ops
//	        enabled: true
//	      - key_secret: release-key
//	        user_id: release
//	        enabled: true
package config
