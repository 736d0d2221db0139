// Package tools provides the tool registry and the GitHub tool pack.
//
// # Overview
//
// A Tool pairs a JSON Schema describing its arguments with a handler that
// executes it. The Registry owns the set of tools, advertises them via
// List (registration order, deterministic), and dispatches calls after
// validating arguments against the schema.
//
// # Validation
//
// Arguments are validated with gojsonschema before a handler runs. A call
// with missing required parameters never reaches a handler, so no network
// call is made for invalid input. Handlers then decode the already-valid
// input into typed argument structs; defaults for omitted optional fields
// are applied there.
//
// # Tools
//
// The GitHub pack registers:
//
//	create_github_repository - name (required), private, description, auto_init
//	delete_github_repository - name (required)
package tools
