package registrar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/cronreg/internal/crontab"
	"github.com/loykin/cronreg/internal/history"
	"github.com/loykin/cronreg/internal/metrics"
)

// Registrar keeps exactly one crontab line for a Job. It holds no state of its
// own: every operation reads the table, edits it in memory and writes it back
// in one call.
type Registrar struct {
	tab    crontab.Tab
	job    Job
	user   string
	logger *slog.Logger
	sink   history.Sink
	now    func() time.Time
}

// Option configures a Registrar.
type Option func(*Registrar)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registrar) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHistory sends an audit event to s after every Sync and Remove.
func WithHistory(s history.Sink) Option { return func(r *Registrar) { r.sink = s } }

// WithUser records which crontab owner is being edited. It is informational;
// the Tab decides whose table is actually touched.
func WithUser(user string) Option { return func(r *Registrar) { r.user = user } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(r *Registrar) { r.now = now } }

func New(tab crontab.Tab, job Job, opts ...Option) *Registrar {
	r := &Registrar{tab: tab, job: job, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Job returns the job this registrar maintains.
func (r *Registrar) Job() Job { return r.job }

// Result describes one read-filter-(append)-write cycle.
type Result struct {
	RunID   string
	Entry   crontab.Entry // the line that was registered; zero for Remove
	Removed crontab.Table // lines dropped because they contain the marker
	Before  crontab.Table
	After   crontab.Table
	Changed bool
	DryRun  bool
}

// Sync replaces every line containing the job's marker with the job's entry.
// A missing crontab counts as empty. Running it again yields the same table.
func (r *Registrar) Sync(ctx context.Context) (Result, error) {
	return r.apply(ctx, history.EventSync, true, false)
}

// Plan computes what Sync would write without writing it.
func (r *Registrar) Plan(ctx context.Context) (Result, error) {
	return r.apply(ctx, history.EventSync, true, true)
}

// Remove drops every line containing the job's marker and writes the rest back.
func (r *Registrar) Remove(ctx context.Context) (Result, error) {
	return r.apply(ctx, history.EventRemove, false, false)
}

func (r *Registrar) apply(ctx context.Context, op history.EventType, register, dryRun bool) (res Result, err error) {
	res = Result{RunID: uuid.NewString(), DryRun: dryRun}
	if err := r.job.Validate(); err != nil {
		return res, fmt.Errorf("invalid job: %w", err)
	}
	started := r.now()
	log := r.logger.With("run_id", res.RunID, "op", string(op), "marker", r.job.Marker())

	defer func() {
		if dryRun {
			return
		}
		r.observe(ctx, op, res, err, started)
	}()

	before, err := r.tab.Read(ctx)
	if err != nil {
		log.Error("read crontab failed", "error", err)
		return res, err
	}
	res.Before = before

	kept, removed := before.Without(r.job.Marker())
	res.Removed = removed
	after := kept
	if register {
		res.Entry = r.job.Entry()
		after = kept.With(res.Entry)
	}
	res.After = after
	res.Changed = !before.Equal(after)

	for _, e := range removed {
		if register && e.Line == res.Entry.Line {
			continue
		}
		// substring match also catches unrelated lines that mention the log path
		log.Warn("removing crontab line containing marker", "line", e.Line)
	}

	if dryRun {
		log.Debug("dry run, crontab not written", "entries", len(after), "changed", res.Changed)
		return res, nil
	}

	if err := r.tab.Write(ctx, after); err != nil {
		log.Error("write crontab failed", "error", err)
		return res, err
	}
	log.Info("crontab updated", "entries", len(after), "removed", len(removed), "changed", res.Changed)
	return res, nil
}

// observe records metrics and the audit event for a finished run. Failures
// here are logged and never change the outcome of the run.
func (r *Registrar) observe(ctx context.Context, op history.EventType, res Result, runErr error, started time.Time) {
	finished := r.now()
	outcome := "success"
	if runErr != nil {
		outcome = outcomeOf(runErr)
	}
	metrics.IncRun(string(op), outcome)
	metrics.ObserveRunDuration(string(op), finished.Sub(started).Seconds())
	if runErr == nil {
		metrics.AddRemoved(string(op), len(res.Removed))
		metrics.SetTableEntries(len(res.After))
		metrics.SetLastSuccess(string(op), finished)
	}

	if r.sink == nil {
		return
	}
	rec := history.Record{
		RunID:   res.RunID,
		User:    r.user,
		Entry:   res.Entry.Line,
		Marker:  r.job.Marker(),
		Removed: len(res.Removed),
		Entries: len(res.After),
		Changed: res.Changed,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
		rec.Entries = len(res.Before)
		rec.Changed = false
	}
	ev := history.Event{Type: op, OccurredAt: finished.UTC(), Record: rec}
	if err := r.sink.Send(ctx, ev); err != nil {
		r.logger.Warn("history send failed", "run_id", res.RunID, "error", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case crontab.IsPermission(err):
		return "permission_denied"
	case crontab.IsUnavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}
