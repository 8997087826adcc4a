package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hopstack/toolcatalog/jsonrpc"
)

// MaxMessageSize bounds a single newline-delimited message on the stdio
// transport
const MaxMessageSize = 4 * 1024 * 1024

// Transport exchanges newline-delimited JSON-RPC messages over a pair of
// streams. One Transport carries exactly one session.
type Transport struct {
	scanner *bufio.Scanner
	writer  *json.Encoder
	bufOut  *bufio.Writer
	errOut  io.Writer
}

// NewStdioTransport creates a new stdio transport
func NewStdioTransport(in io.Reader, out io.Writer, errOut io.Writer) *Transport {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, MaxMessageSize)

	bufOut := bufio.NewWriter(out)
	return &Transport{
		scanner: scanner,
		writer:  json.NewEncoder(bufOut),
		bufOut:  bufOut,
		errOut:  errOut,
	}
}

// Run reads requests until the input ends or ctx is cancelled, writing one
// response line per request. Notifications produce no output.
func (t *Transport) Run(ctx context.Context, handler jsonrpc.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if !t.scanner.Scan() {
				if err := t.scanner.Err(); err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}

			line := bytes.TrimSpace(t.scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			request, rpcErr := jsonrpc.ParseRequest(line)
			if rpcErr != nil {
				t.write(jsonrpc.NewResponse(request.ResponseID(), nil, rpcErr))
				continue
			}

			response, ok := handler.Handle(ctx, request)
			if !ok {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.write(response)
		}
	}
}

func (t *Transport) write(response jsonrpc.Response) {
	if err := t.writer.Encode(response); err != nil {
		fmt.Fprintf(t.errOut, "Error encoding response: %v\n", err)
	}
	if err := t.bufOut.Flush(); err != nil {
		fmt.Fprintf(t.errOut, "Error writing response: %v\n", err)
	}
}
