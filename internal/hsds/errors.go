package hsds

import (
	"errors"
	"fmt"
	"strings"
)

// InconsistentMarker is the diagnostic hsload prints when the local file was
// left open or half-written by its producer.
const InconsistentMarker = "Unable to synchronously open file"

var (
	// ErrInconsistentFile marks an upload failure that a repair may fix.
	ErrInconsistentFile = errors.New("file is in an inconsistent state")

	// ErrToolFailed marks any other tool failure.
	ErrToolFailed = errors.New("tool failed")
)

// ToolError describes a failed tool invocation. Err is one of the sentinel
// classes above; Cause carries the start error when the tool never ran.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
	Err      error
	Cause    error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v: %v", e.Tool, e.Err, e.Cause)
	}
	msg := fmt.Sprintf("%s exited with code %d: %v", e.Tool, e.ExitCode, e.Err)
	if line := lastLine(e.Output); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// IsTransient reports whether err is the repairable inconsistency class.
func IsTransient(err error) bool {
	return errors.Is(err, ErrInconsistentFile)
}

// classify turns a finished invocation into nil or a typed *ToolError.
func classify(tool string, res *Result, startErr error) error {
	if startErr != nil {
		return &ToolError{Tool: tool, ExitCode: -1, Err: ErrToolFailed, Cause: startErr}
	}
	if res.ExitCode == 0 {
		return nil
	}

	output := res.Stderr
	if output == "" {
		output = res.Stdout
	}
	class := ErrToolFailed
	if strings.Contains(res.Stderr, InconsistentMarker) || strings.Contains(res.Stdout, InconsistentMarker) {
		class = ErrInconsistentFile
	}
	return &ToolError{Tool: tool, ExitCode: res.ExitCode, Output: output, Err: class}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
