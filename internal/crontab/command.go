package crontab

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// DefaultBinary is looked up in PATH when CommandTab.Binary is empty.
const DefaultBinary = "crontab"

// CommandTab talks to the system scheduler through crontab(1).
// Read runs "crontab -l", Write feeds the whole table to "crontab -" on stdin.
// User, when set, adds "-u <user>" and normally requires root.
type CommandTab struct {
	Binary string
	User   string
}

func (c CommandTab) Read(ctx context.Context) (Table, error) {
	out, err := c.run(ctx, "read", nil, "-l")
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && isNoCrontab(ce.Stderr) {
			return Table{}, nil
		}
		return nil, err
	}
	return ParseTable(out), nil
}

func (c CommandTab) Write(ctx context.Context, t Table) error {
	_, err := c.run(ctx, "write", strings.NewReader(t.String()), "-")
	return err
}

func (c CommandTab) run(ctx context.Context, op string, stdin *strings.Reader, args ...string) (string, error) {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	if c.User != "" {
		args = append([]string{"-u", c.User}, args...)
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classify(op, err, stderr.String())
	}
	return stdout.String(), nil
}

// isNoCrontab matches what crontab -l prints when the user has no table yet:
// "no crontab for <user>" (cronie, vixie-cron) or
// "can't open '<user>': No such file or directory" (busybox).
func isNoCrontab(stderr string) bool {
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "no crontab for") {
		return true
	}
	return strings.Contains(lower, "can't open '") && strings.Contains(lower, "no such file or directory")
}
