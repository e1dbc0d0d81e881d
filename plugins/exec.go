package plugins

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// execTool runs one plugin invocation: the resolved args with the file
// path appended last, stdout and stderr captured in full, the process
// always reaped. Lint tools exit non-zero when they have findings, so a
// non-zero exit from a started process is not an error. Anything on
// stderr is: the run is discarded with no partial credit for whatever
// landed on stdout.
func execTool(ctx context.Context, plugin string, settings *Settings, path string) ([]byte, error) {
	args := make([]string, 0, len(settings.Args)+1)
	args = append(args, settings.Args...)
	args = append(args, path)

	cmd := exec.CommandContext(ctx, settings.Cmd, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &ExecError{Plugin: plugin, Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &ExecError{Plugin: plugin, Err: err}
		}
	}

	if stderr.Len() > 0 {
		return nil, &ToolError{Plugin: plugin, Stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}
