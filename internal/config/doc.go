// Package config handles configuration loading for authflow.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The file extension selects the format: .toml is decoded as
// TOML, anything else as YAML. Missing fields receive defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AUTHFLOW_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/authflow/config.yaml
//  3. ~/.config/authflow/config.yaml
//
// # Environment Variable Expansion
//
//	provider:
//	  jwt_secret: "${AUTHFLOW_JWT_SECRET}"
//
// # Configuration Sections
//
// Lifecycle deadlines:
//
//	lifecycle:
//	  auth_timeout: "30s"
//	  load_context_timeout: "10s"
//	  initialize_timeout: "30s"
//
// Provider adapter:
//
//	provider:
//	  get_session_timeout: "10s"
//	  dedupe_ttl: "1m"
//	  dedupe_size: 1024
//	  jwt_secret: "${AUTHFLOW_JWT_SECRET}"  # 32 bytes minimum
//
// Transition journal:
//
//	journal:
//	  enabled: true
//	  path: "~/.local/share/authflow/journal.db"
//
// Logging:
//
//	logging:
//	  level: "warn"   # off, error, warn, info, debug
//	  format: "text"  # text, json
package config
