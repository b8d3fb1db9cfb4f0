package crontab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

// fakeCrontab writes a shell script that mimics crontab(1) -l / - / -u against
// a state file in dir.
func fakeCrontab(t *testing.T, dir string) string {
	t.Helper()
	script := `#!/bin/sh
state="` + dir + `/table"
if [ "$1" = "-u" ]; then
  printf '%s' "$2" > "` + dir + `/user"
  shift 2
fi
case "$1" in
  -l)
    if [ -f "$state" ]; then cat "$state"; else echo "no crontab for tester" >&2; exit 1; fi
    ;;
  -)
    cat > "$state"
    ;;
  *)
    echo "usage" >&2; exit 2
    ;;
esac
`
	path := filepath.Join(dir, "crontab")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake crontab: %v", err)
	}
	return path
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "crontab")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCommandTabNoCrontabIsEmpty(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	tab := CommandTab{Binary: fakeCrontab(t, dir)}
	tbl, err := tab.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tbl) != 0 {
		t.Fatalf("expected empty table, got %#v", tbl)
	}
}

func TestCommandTabBusyBoxNoCrontab(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	bin := writeScript(t, dir, `echo "crontab: can't open 'ec2-user': No such file or directory" >&2; exit 1`)
	tbl, err := CommandTab{Binary: bin}.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tbl) != 0 {
		t.Fatalf("expected empty table, got %#v", tbl)
	}
}

func TestIsNoCrontab(t *testing.T) {
	cases := []struct {
		stderr string
		want   bool
	}{
		{"no crontab for ec2-user", true},
		{"crontab: can't open 'ec2-user': No such file or directory", true},
		{"crontab: cannot open /var/spool/cron/crontabs: No such file or directory", false},
		{"/var/spool/cron: Permission denied", false},
	}
	for _, c := range cases {
		if got := isNoCrontab(c.stderr); got != c.want {
			t.Errorf("isNoCrontab(%q) = %v, want %v", c.stderr, got, c.want)
		}
	}
}

func TestCommandTabWriteThenRead(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	tab := CommandTab{Binary: fakeCrontab(t, dir), User: "tester"}
	want := Table{{Line: "MAILTO=\"\""}, {Line: "0 */3 * * * /bin/job >> /var/log/j.log 2>&1"}}
	if err := tab.Write(context.Background(), want); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "table"))
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if string(raw) != want.String() {
		t.Fatalf("stdin mismatch: %q", raw)
	}
	user, _ := os.ReadFile(filepath.Join(dir, "user"))
	if string(user) != "tester" {
		t.Fatalf("expected -u tester, got %q", user)
	}
	got, err := tab.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestCommandTabMissingBinary(t *testing.T) {
	requireUnix(t)
	tab := CommandTab{Binary: filepath.Join(t.TempDir(), "does-not-exist")}
	_, err := tab.Read(context.Background())
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	tab = CommandTab{Binary: "cronreg-no-such-crontab-binary"}
	err = tab.Write(context.Background(), Table{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable from PATH lookup, got %v", err)
	}
}

func TestCommandTabPermissionDenied(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	bin := writeScript(t, dir, `echo "You (tester) are not allowed to use this program (crontab)" >&2; exit 1`)
	tab := CommandTab{Binary: bin}
	_, err := tab.Read(context.Background())
	if !IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Op != "read" || !strings.Contains(ce.Stderr, "not allowed") {
		t.Fatalf("unexpected error detail: %#v", err)
	}
	if err := tab.Write(context.Background(), Table{{Line: "x"}}); !IsPermission(err) {
		t.Fatalf("expected permission error on write, got %v", err)
	}
}

func TestCommandTabUnclassifiedFailure(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	bin := writeScript(t, dir, `echo "errors in crontab file, can't install" >&2; exit 1`)
	err := CommandTab{Binary: bin}.Write(context.Background(), Table{{Line: "bad"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsPermission(err) || IsUnavailable(err) {
		t.Fatalf("expected unclassified error, got %v", err)
	}
	if !strings.Contains(err.Error(), "can't install") {
		t.Fatalf("expected stderr in message, got %q", err.Error())
	}
}

func TestCommandTabCanceledContext(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	tab := CommandTab{Binary: fakeCrontab(t, dir)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tab.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		stderr string
		kind   error
	}{
		{"crontab: must be privileged to use -u", ErrPermission},
		{"/var/spool/cron: Permission denied", ErrPermission},
		{"crontab: cannot open /var/spool/cron/crontabs: No such file or directory", ErrUnavailable},
		{"something else", nil},
	}
	for _, c := range cases {
		e := classify("read", errors.New("exit status 1"), c.stderr)
		if e.Kind != c.kind {
			t.Errorf("classify(%q) kind = %v, want %v", c.stderr, e.Kind, c.kind)
		}
	}
}

func TestMemoryTab(t *testing.T) {
	m := NewMemoryTab(Table{{Line: "a"}})
	ctx := context.Background()
	got, err := m.Read(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("read: %v %v", got, err)
	}
	got[0].Line = "mutated"
	if m.Table()[0].Line != "a" {
		t.Fatalf("Read must return a copy")
	}
	m.WriteErr = &Error{Op: "write", Kind: ErrPermission}
	if err := m.Write(ctx, Table{}); !IsPermission(err) {
		t.Fatalf("expected injected permission error, got %v", err)
	}
	if m.Writes != 0 || len(m.Table()) != 1 {
		t.Fatalf("failed write must not modify the table")
	}
}
