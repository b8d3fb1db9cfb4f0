package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelWarn,
		"DEBUG": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNew_DefaultLevelIsWarn(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := New(Config{}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = closer.Close() }()
	l.Info("quiet")
	l.Warn("loud", "k", "v")
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info must be filtered at default level: %q", out)
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, "k=v") {
		t.Fatalf("expected warn record, got %q", out)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Config{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.With("run_id", "abc").Info("crontab updated", "entries", 3)
	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if m["msg"] != "crontab updated" || m["run_id"] != "abc" || m["entries"] != float64(3) {
		t.Fatalf("unexpected record: %v", m)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, _, err := New(Config{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestNew_FileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cronreg.log")
	var buf bytes.Buffer
	l, closer, err := New(Config{Level: "info", File: path}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("both sinks", "n", 1)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "both sinks") || !strings.Contains(buf.String(), "both sinks") {
		t.Fatalf("expected record in file and console; file=%q console=%q", b, buf.String())
	}
}

func TestFileWriterDefaults(t *testing.T) {
	if w := (Config{}).FileWriter(); w != nil {
		t.Fatalf("expected nil writer without File")
	}
	w := Config{File: "/tmp/x.log", MaxSizeMB: 0, MaxBackups: 5, Compress: true}.FileWriter()
	lw, ok := w.(*lj.Logger)
	if !ok {
		t.Fatalf("expected *lumberjack.Logger, got %T", w)
	}
	if lw.MaxSize != DefaultMaxSizeMB || lw.MaxBackups != 5 || lw.MaxAge != DefaultMaxAgeDays || !lw.Compress {
		t.Fatalf("unexpected rotation settings: %+v", lw)
	}
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	l := slog.New(h).With("op", "sync")
	l.Error("boom")
	out := buf.String()
	if !strings.Contains(out, "[31m") || !strings.Contains(out, "ERROR") {
		t.Fatalf("expected red color code, got %q", out)
	}
	if !strings.Contains(out, "op=sync") {
		t.Fatalf("expected attrs to survive With, got %q", out)
	}
	if strings.Contains(out, "time=") {
		t.Fatalf("expected time to be dropped, got %q", out)
	}
}
