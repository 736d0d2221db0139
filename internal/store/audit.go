// ABOUTME: Tool invocation audit log: one row per tools/call for diagnostics.
// ABOUTME: Append-only; recording failures never fail the tool call itself.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Invocation outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ToolInvocation records a single tools/call round trip.
type ToolInvocation struct {
	ID            string        // UUID v4, doubles as the correlation request ID
	Tool          string        // tool name as requested
	ArgumentsJSON string        // raw arguments as received
	Outcome       string        // OutcomeOK or OutcomeError
	Error         string        // error message when Outcome is OutcomeError
	Duration      time.Duration // handler wall time including the upstream call
	Timestamp     time.Time     // when the call started (UTC)
}

// InvocationFilter specifies filtering options for listing invocations.
type InvocationFilter struct {
	Since *time.Time // invocations at or after this time
	Tool  *string    // filter by tool name
	Limit int        // max results (default 100)
}

// InvocationRecorder is the write-side interface the dispatcher depends on.
type InvocationRecorder interface {
	AppendToolInvocation(ctx context.Context, inv *ToolInvocation) error
}

// AppendToolInvocation appends an invocation record.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendToolInvocation(ctx context.Context, inv *ToolInvocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_invocations (invocation_id, tool, arguments_json, outcome, error, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.Tool,
		inv.ArgumentsJSON,
		inv.Outcome,
		inv.Error,
		inv.Duration.Milliseconds(),
		inv.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting tool invocation: %w", err)
	}
	return nil
}

// ListToolInvocations returns invocations matching the filter, newest first.
func (s *SQLiteStore) ListToolInvocations(ctx context.Context, filter InvocationFilter) ([]*ToolInvocation, error) {
	query := `
		SELECT invocation_id, tool, arguments_json, outcome, error, duration_ms, ts
		FROM tool_invocations
	`
	var conditions []string
	var args []any

	if filter.Since != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Tool != nil {
		conditions = append(conditions, "tool = ?")
		args = append(args, *filter.Tool)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tool invocations: %w", err)
	}
	defer rows.Close()

	var invocations []*ToolInvocation
	for rows.Next() {
		inv := &ToolInvocation{}
		var errMsg *string
		var durationMS int64
		if err := rows.Scan(&inv.ID, &inv.Tool, &inv.ArgumentsJSON, &inv.Outcome, &errMsg, &durationMS, &inv.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning tool invocation: %w", err)
		}
		if errMsg != nil {
			inv.Error = *errMsg
		}
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool invocations: %w", err)
	}

	return invocations, nil
}
