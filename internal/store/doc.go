// Package store provides persistent storage for the server using SQLite.
//
// # Overview
//
// The only persisted entity is the tool invocation audit log: one row per
// tools/call with the tool name, raw arguments, outcome, and duration.
// Requests themselves are transient; nothing else crosses a request
// boundary.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Schema is created automatically on open. Use ":memory:" in tests.
//
// # Interfaces
//
// The dispatcher depends on InvocationRecorder, the write side only, so
// tests can substitute a fake without a database.
package store
