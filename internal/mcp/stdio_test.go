// ABOUTME: Tests for the stdio transport: line framing, parse errors, shutdown.
// ABOUTME: Drives the full dispatcher through in-memory reader/writer pairs.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStdio feeds input through a stdio server and returns the decoded responses.
func runStdio(t *testing.T, d *Dispatcher, input string) []JSONRPCResponse {
	t.Helper()

	var out bytes.Buffer
	srv, err := NewStdioServer(StdioConfig{
		Dispatcher: d,
		In:         strings.NewReader(input),
		Out:        &out,
	})
	require.NoError(t, err)

	require.NoError(t, srv.Run(context.Background()))

	var responses []JSONRPCResponse
	for line := range strings.Lines(out.String()) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "line: %s", line)
		responses = append(responses, resp)
	}
	return responses
}

func TestStdioRoundTrip(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"create_github_repository","arguments":{"name":"my-test-repo"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"create_github_repository","arguments":{"name":"my-test-repo"}}}`,
	}, "\n") + "\n"

	responses := runStdio(t, d, input)
	require.Len(t, responses, 4, "notification gets no response")

	// responses arrive in request order
	assert.Equal(t, json.RawMessage("1"), responses[0].ID)
	assert.Equal(t, json.RawMessage("2"), responses[1].ID)
	assert.Equal(t, json.RawMessage("3"), responses[2].ID)
	assert.Equal(t, json.RawMessage("4"), responses[3].ID)

	require.Nil(t, responses[2].Error)
	result, ok := responses[2].Result.(map[string]any)
	require.True(t, ok)
	content, ok := result["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
	text := content[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Created repository my-test-repo")

	require.NotNil(t, responses[3].Error)
	assert.Equal(t, "repository already exists", responses[3].Error.Message)
}

func TestStdioParseError(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	input := "this is not json\n" +
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n"

	responses := runStdio(t, d, input)
	require.Len(t, responses, 2)

	// unparseable line gets a ParseError, then the server keeps serving
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, JSONRPCParseError, responses[0].Error.Code)

	require.Nil(t, responses[1].Error)
}

func TestStdioOversizedMessage(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	big := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"create_github_repository","arguments":{"description":"` +
		strings.Repeat("x", MaxMessageSize) + `"}}}`
	input := big + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"

	responses := runStdio(t, d, input)
	require.Len(t, responses, 2)

	// oversized line is dropped with an error, then the server keeps serving
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, JSONRPCInvalidRequest, responses[0].Error.Code)
	assert.Equal(t, "message too large", responses[0].Error.Message)
	assert.Equal(t, json.RawMessage("null"), responses[0].ID)

	require.Nil(t, responses[1].Error)
	assert.Equal(t, json.RawMessage("2"), responses[1].ID)
}

func TestStdioOversizedFinalLineWithoutNewline(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	responses := runStdio(t, d, strings.Repeat("x", MaxMessageSize+1))
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, JSONRPCInvalidRequest, responses[0].Error.Code)
}

func TestStdioInvalidVersion(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	responses := runStdio(t, d, `{"jsonrpc":"1.0","id":1,"method":"tools/list"}`+"\n")
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, JSONRPCInvalidRequest, responses[0].Error.Code)
}

func TestStdioUnknownMethod(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	responses := runStdio(t, d, `{"jsonrpc":"2.0","id":7,"method":"prompts/list"}`+"\n")
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, JSONRPCMethodNotFound, responses[0].Error.Code)
	assert.Equal(t, json.RawMessage("7"), responses[0].ID)
}

func TestStdioSkipsBlankLines(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	responses := runStdio(t, d, "\n\n"+`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`+"\n\n")
	assert.Len(t, responses, 1)
}

func TestStdioShutdownOnCancel(t *testing.T) {
	d := setupDispatcher(t, newMemRepoClient(), nil)

	// A reader that never returns EOF
	pr, pw := newBlockingPipe()
	defer pw.close()

	var out bytes.Buffer
	srv, err := NewStdioServer(StdioConfig{Dispatcher: d, In: pr, Out: &out})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down on cancellation")
	}
}

// blockingPipe blocks reads until closed.
type blockingPipe struct {
	ch chan struct{}
}

func newBlockingPipe() (*blockingPipe, *blockingPipe) {
	p := &blockingPipe{ch: make(chan struct{})}
	return p, p
}

func (p *blockingPipe) Read([]byte) (int, error) {
	<-p.ch
	return 0, context.Canceled
}

func (p *blockingPipe) close() {
	select {
	case <-p.ch:
	default:
		close(p.ch)
	}
}
