package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// ErrParse wraps input lines that are not valid JSON-RPC
var ErrParse = errors.New("failed to parse JSON-RPC message")

// Transport handles newline-delimited JSON-RPC over a reader and writer.
// Writes are serialized so concurrent handlers can respond.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewTransport creates a transport, usually over stdin and stdout
func NewTransport(r io.Reader, w io.Writer, logger zerolog.Logger) *Transport {
	return &Transport{
		reader: bufio.NewReader(r),
		writer: w,
		logger: logger,
	}
}

// ReadMessage reads the next non-blank line. io.EOF is returned once the
// input is exhausted.
func (t *Transport) ReadMessage() (*JSONRPCMessage, error) {
	for {
		line, err := t.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}

		var msg JSONRPCMessage
		if jsonErr := json.Unmarshal(line, &msg); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, jsonErr)
		}

		t.logger.Debug().Str("method", msg.Method).Interface("id", msg.ID).Msg("←")
		return &msg, nil
	}
}

// WriteMessage writes a JSON-RPC message followed by a newline
func (t *Transport) WriteMessage(msg *JSONRPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON-RPC message: %w", err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	_, err = t.writer.Write(data)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if msg.Error != nil {
		t.logger.Debug().Interface("id", msg.ID).Str("error", msg.Error.Message).Msg("→ error")
	} else {
		t.logger.Debug().Interface("id", msg.ID).Msg("→ result")
	}
	return nil
}

// WriteResponse writes a JSON-RPC response
func (t *Transport) WriteResponse(id any, result any) error {
	return t.WriteMessage(&JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

// WriteError writes a JSON-RPC error response
func (t *Transport) WriteError(id any, code int, message string, data any) error {
	return t.WriteMessage(&JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}
