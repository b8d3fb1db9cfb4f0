package crontab

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

var (
	// ErrPermission means the invoking identity may not read or write the table.
	ErrPermission = errors.New("permission denied")
	// ErrUnavailable means the scheduler is not installed or cannot be reached.
	ErrUnavailable = errors.New("scheduler unavailable")
)

// Error wraps a failure of a crontab operation. Kind is ErrPermission,
// ErrUnavailable or nil when the failure could not be classified.
type Error struct {
	Op     string // "read" or "write"
	Kind   error
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("crontab ")
	b.WriteString(e.Op)
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// IsPermission reports whether err is (or wraps) a permission failure.
func IsPermission(err error) bool { return errors.Is(err, ErrPermission) }

// IsUnavailable reports whether err is (or wraps) a missing scheduler.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

var (
	permissionMarkers = []string{
		"not allowed",
		"permission denied",
		"must be privileged",
		"operation not permitted",
	}
	unavailableMarkers = []string{
		"no such file or directory",
		"cannot connect",
	}
)

// classify turns a failed crontab invocation into an *Error with a Kind.
func classify(op string, err error, stderr string) *Error {
	stderr = strings.TrimSpace(stderr)
	e := &Error{Op: op, Stderr: stderr, Err: err}
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		e.Kind = ErrUnavailable
		return e
	case errors.Is(err, fs.ErrPermission):
		e.Kind = ErrPermission
		return e
	}
	lower := strings.ToLower(stderr)
	for _, m := range permissionMarkers {
		if strings.Contains(lower, m) {
			e.Kind = ErrPermission
			return e
		}
	}
	for _, m := range unavailableMarkers {
		if strings.Contains(lower, m) {
			e.Kind = ErrUnavailable
			return e
		}
	}
	if e.Err == nil {
		e.Err = fmt.Errorf("crontab %s failed", op)
	}
	return e
}
