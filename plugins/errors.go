package plugins

import (
	"errors"
	"fmt"
)

// ErrToolNotFound reports that discovery found no usable executable for
// a plugin. The plugin simply stays out of the installed set.
var ErrToolNotFound = errors.New("tool not found")

// ToolError reports an invocation that wrote to stderr. The whole run is
// discarded, even when stdout also carries a parseable report.
type ToolError struct {
	Plugin string
	Stderr string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s returned error: %s", e.Plugin, e.Stderr)
}

// ExecError reports a tool process that could not be started, or that
// was killed by the per-invocation timeout.
type ExecError struct {
	Plugin string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s could not be executed: %v", e.Plugin, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ParseError reports tool output that does not match the expected report
// shape. Callers treat it as an empty report.
type ParseError struct {
	Plugin string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s produced an unreadable report: %v", e.Plugin, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
