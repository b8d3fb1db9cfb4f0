package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/cronreg/internal/config"
	"github.com/loykin/cronreg/internal/crontab"
	"github.com/loykin/cronreg/internal/history"
	"github.com/loykin/cronreg/internal/history/factory"
	"github.com/loykin/cronreg/internal/logger"
	"github.com/loykin/cronreg/internal/metrics"
	"github.com/loykin/cronreg/internal/registrar"
)

// metricsRegistry is kept separate from the default registry so the textfile
// only carries cronreg_* series.
var metricsRegistry = prometheus.NewRegistry()

// command carries the process I/O and the crontab backend so tests can run
// subcommands in-process against a MemoryTab.
type command struct {
	out    io.Writer
	errOut io.Writer
	tabFor func(binary, user string) crontab.Tab
}

// session is everything one subcommand invocation needs, built from config
// and flags.
type session struct {
	cfg      config.FileConfig
	log      *slog.Logger
	reg      *registrar.Registrar
	sink     history.Sink
	reader   history.Reader
	closers  []io.Closer
	textfile string
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

// open loads config, builds the logger, history sink and registrar. Flags
// override the file.
func (c command) open(flags GlobalFlags) (*session, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.User != "" {
		cfg.Crontab.User = flags.User
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	log, logCloser, err := logger.New(cfg.LoggerConfig(), c.errOut)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	s := &session{cfg: cfg, log: log, closers: []io.Closer{logCloser}, textfile: cfg.Metrics.Textfile}

	opts := []registrar.Option{registrar.WithLogger(log), registrar.WithUser(cfg.Crontab.User)}
	var sinks history.Multi
	for i, dsn := range cfg.History.DSNs() {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			// history is an audit trail; a broken store must not block registration
			log.Warn("history sink disabled", "dsn", dsn, "error", err)
			continue
		}
		if cl, ok := sink.(io.Closer); ok {
			s.closers = append(s.closers, cl)
		}
		if r, ok := sink.(history.Reader); ok && i == 0 && strings.TrimSpace(cfg.History.DSN) != "" {
			s.reader = r
		}
		sinks = append(sinks, sink)
	}
	switch len(sinks) {
	case 0:
	case 1:
		s.sink = sinks[0]
	default:
		s.sink = sinks
	}
	if s.sink != nil {
		opts = append(opts, registrar.WithHistory(s.sink))
	}
	if s.textfile != "" {
		if err := metrics.Register(metricsRegistry); err != nil {
			log.Warn("metrics disabled", "error", err)
			s.textfile = ""
		}
	}

	tabFor := c.tabFor
	if tabFor == nil {
		tabFor = systemTab
	}
	s.reg = registrar.New(tabFor(cfg.Crontab.Binary, cfg.Crontab.User), cfg.JobSpec(), opts...)
	return s, nil
}

// flushMetrics writes the textfile when configured. Failures are logged only.
func (s *session) flushMetrics() {
	if s.textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(s.textfile, metricsRegistry); err != nil {
		s.log.Warn("write metrics textfile failed", "path", s.textfile, "error", err)
	}
}

// Sync registers the job, or prints the planned table with --dry-run.
func (c command) Sync(ctx context.Context, flags GlobalFlags, syncFlags SyncFlags) error {
	s, err := c.open(flags)
	if err != nil {
		return err
	}
	defer s.Close()

	if syncFlags.DryRun {
		res, err := s.reg.Plan(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprint(c.out, res.After.String())
		_, _ = fmt.Fprintf(c.out, "# dry run: %d line(s) removed, changed=%t\n", len(res.Removed), res.Changed)
		return nil
	}

	res, err := s.reg.Sync(ctx)
	s.flushMetrics()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "registered: %s\n", res.Entry.Line)
	return nil
}

// Remove unregisters the job.
func (c command) Remove(ctx context.Context, flags GlobalFlags) error {
	s, err := c.open(flags)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.reg.Remove(ctx)
	s.flushMetrics()
	if err != nil {
		return err
	}
	if len(res.Removed) == 0 {
		_, _ = fmt.Fprintln(c.out, "nothing to remove")
		return nil
	}
	for _, e := range res.Removed {
		_, _ = fmt.Fprintf(c.out, "removed: %s\n", e.Line)
	}
	return nil
}

type statusView struct {
	Desired string      `json:"desired"`
	Marker  string      `json:"marker"`
	InSync  bool        `json:"in_sync"`
	Entries int         `json:"entries"`
	Matches []matchView `json:"matches"`
}

type matchView struct {
	Line       string      `json:"line"`
	Current    bool        `json:"current"`
	Schedule   string      `json:"schedule,omitempty"`
	Next       []time.Time `json:"next,omitempty"`
	ParseError string      `json:"parse_error,omitempty"`
}

// Status prints the job's lines and upcoming activations.
func (c command) Status(ctx context.Context, flags GlobalFlags, statusFlags StatusFlags) error {
	if statusFlags.Next < 0 {
		return errors.New("--next must not be negative")
	}
	s, err := c.open(flags)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.reg.Status(ctx, statusFlags.Next)
	if err != nil {
		return err
	}
	view := statusView{Desired: st.Desired.Line, Marker: s.reg.Job().Marker(), InSync: st.InSync, Entries: st.Entries, Matches: []matchView{}}
	for _, m := range st.Matches {
		view.Matches = append(view.Matches, matchView{
			Line: m.Entry.Line, Current: m.Current, Schedule: m.Schedule, Next: m.Next, ParseError: m.ParseErr,
		})
	}
	if statusFlags.JSON {
		return c.printJSON(view)
	}

	state := "out of sync"
	if view.InSync {
		state = "in sync"
	}
	_, _ = fmt.Fprintf(c.out, "desired: %s\nmarker:  %s\nstate:   %s (%d line(s) in crontab)\n", view.Desired, view.Marker, state, view.Entries)
	for _, m := range view.Matches {
		tag := "stale"
		if m.Current {
			tag = "current"
		}
		_, _ = fmt.Fprintf(c.out, "[%s] %s\n", tag, m.Line)
		if m.ParseError != "" {
			_, _ = fmt.Fprintf(c.out, "  schedule error: %s\n", m.ParseError)
		}
		for _, t := range m.Next {
			_, _ = fmt.Fprintf(c.out, "  next: %s\n", t.Format(time.RFC3339))
		}
	}
	return nil
}

// History lists recent runs from a SQL history store.
func (c command) History(ctx context.Context, flags GlobalFlags, historyFlags HistoryFlags) error {
	if historyFlags.Limit <= 0 {
		return errors.New("--limit must be positive")
	}
	s, err := c.open(flags)
	if err != nil {
		return err
	}
	defer s.Close()

	if strings.TrimSpace(s.cfg.History.DSN) == "" {
		return errors.New("no history store configured (set [history] dsn)")
	}
	if s.reader == nil {
		return fmt.Errorf("history store %q cannot be queried; use sqlite or postgres", s.cfg.History.DSN)
	}
	events, err := s.reader.Recent(ctx, historyFlags.Limit)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintln(c.out, "no runs recorded")
		return nil
	}
	for _, e := range events {
		outcome := "ok"
		if e.Record.Error != "" {
			outcome = "error: " + e.Record.Error
		}
		_, _ = fmt.Fprintf(c.out, "%s %-6s run=%s removed=%d entries=%d changed=%t %s\n",
			e.OccurredAt.Format(time.RFC3339), e.Type, e.Record.RunID, e.Record.Removed, e.Record.Entries, e.Record.Changed, outcome)
	}
	return nil
}

func (c command) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
