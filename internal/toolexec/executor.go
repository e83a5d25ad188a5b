// Package toolexec is the client side of the tool-execution boundary.
// Tool internals live in an external executor service; the core only
// sends (tool, query) and receives text.
package toolexec

import (
	"context"
	"errors"
)

// ErrToolNotFound indicates the executor does not know the tool.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolFailed indicates the executor accepted the call but failed.
var ErrToolFailed = errors.New("tool execution failed")

// Executor invokes an external tool with the raw user query.
type Executor interface {
	Execute(ctx context.Context, tool, query string) (string, error)
}
