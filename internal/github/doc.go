// Package github wraps the GitHub REST API for repository management.
//
// # Overview
//
// The client covers exactly the surface the tool pack needs: create a
// repository for the authenticated user and delete one it owns. Nothing
// else. Each operation issues a single bounded HTTP call with no retries;
// whether to retry is the caller's decision.
//
// # Error Mapping
//
// Upstream status codes map to a small error taxonomy:
//
//   - 422 on create  -> ErrRepositoryExists
//   - 404 on delete  -> ErrRepositoryNotFound
//   - 401/403        -> ErrUnauthorized
//   - other non-2xx  -> *UpstreamError (carries status code and message)
//
// Sentinel errors are wrapped, so callers match with errors.Is and still see
// upstream diagnostics in the message.
//
// # Authentication
//
// The bearer token is fixed at construction and never re-read from the
// environment. Deletes need the owner's login; it is resolved once via the
// authenticated-user endpoint and cached.
package github
