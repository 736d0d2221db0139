// Package config handles configuration loading for coven-github.
//
// # Overview
//
// Configuration is loaded from an optional YAML file with environment
// variable expansion. The only required value is the GitHub token, which
// comes from the GITHUB_TOKEN environment variable (or a local .env file,
// or the github.token config key). Missing token means the process refuses
// to start.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	github:
//	  token: "${GITHUB_TOKEN}"
//
// # Configuration Sections
//
// Transports:
//
//	server:
//	  http_addr: "localhost:8080"   # optional; enables the HTTP transport
//	  access_token: "${MCP_ACCESS_TOKEN}"
//
// Upstream API:
//
//	github:
//	  base_url: ""                  # default api.github.com
//	  request_timeout: "30s"
//
// Audit log:
//
//	database:
//	  path: "~/.local/share/coven-github/audit.db"  # empty disables
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Credential Lifecycle
//
// The token is resolved exactly once at load time and handed to the GitHub
// client as an immutable value. It is never re-read mid-run.
package config
