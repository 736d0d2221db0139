// ABOUTME: Stdio transport: line-delimited JSON-RPC over stdin/stdout.
// ABOUTME: Strictly sequential; one request fully resolves before the next is handled.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// MaxMessageSize is the maximum allowed size for a single message (1MB).
const MaxMessageSize = 1 << 20

// StdioConfig holds configuration for the stdio server.
type StdioConfig struct {
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	In         io.Reader // defaults to os.Stdin
	Out        io.Writer // defaults to os.Stdout
}

// StdioServer serves MCP over standard input/output, one line-delimited
// JSON-RPC message per line. This is the transport MCP hosts spawn.
type StdioServer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	in         io.Reader
	out        io.Writer
}

// NewStdioServer creates a new stdio server with the given configuration.
func NewStdioServer(cfg StdioConfig) (*StdioServer, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	return &StdioServer{
		dispatcher: cfg.Dispatcher,
		logger:     logger,
		in:         in,
		out:        out,
	}, nil
}

// stdioLine is one framed message off the wire. An oversized line is
// delivered with its content dropped so the loop can answer and move on.
type stdioLine struct {
	text      string
	oversized bool
}

// Run reads requests until end of input or context cancellation.
// Each message is fully handled, including its blocking upstream call,
// before the next one is taken. Returns nil on EOF or cancellation.
func (s *StdioServer) Run(ctx context.Context) error {
	reader := bufio.NewReaderSize(s.in, 64*1024)

	// Reads block, so lines are pulled on a goroutine and handed over an
	// unbuffered channel. Processing stays sequential: the next line is
	// not accepted until the current one is fully handled.
	lines := make(chan stdioLine)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := readBoundedLine(reader)
			if line.text != "" || line.oversized {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stdio server shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("reading input: %w", err)
				default:
				}
				s.logger.Info("end of input, shutting down")
				return nil
			}
			if line.oversized {
				s.logger.Warn("dropping oversized message", "limit", MaxMessageSize)
				s.writeResponse(newError(nil, JSONRPCInvalidRequest, "message too large", nil))
				continue
			}
			s.handleLine(ctx, line.text)
		}
	}
}

// readBoundedLine reads one newline-terminated line, enforcing
// MaxMessageSize. A line over the limit is drained to its newline and
// reported as oversized so the caller can keep serving.
func readBoundedLine(r *bufio.Reader) (stdioLine, error) {
	var buf []byte
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			buf = append(buf, chunk...)
			if len(buf) > MaxMessageSize {
				oversized = true
				buf = nil
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return stdioLine{text: string(buf), oversized: oversized}, err
		}
		return stdioLine{
			text:      strings.TrimSuffix(string(buf), "\n"),
			oversized: oversized,
		}, nil
	}
}

// handleLine parses and dispatches one message, writing at most one response.
func (s *StdioServer) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.logger.Warn("unparseable message", "error", err)
		s.writeResponse(newError(nil, JSONRPCParseError, "invalid JSON", nil))
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeResponse(newError(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil))
		return
	}

	if resp := s.dispatcher.Handle(ctx, req); resp != nil {
		s.writeResponse(resp)
	}
}

func (s *StdioServer) writeResponse(resp *JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		return
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
