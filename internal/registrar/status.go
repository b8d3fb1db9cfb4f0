package registrar

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loykin/cronreg/internal/crontab"
)

// Match is a crontab line containing the job's marker, with its upcoming
// activations when the schedule parses.
type Match struct {
	Entry    crontab.Entry
	Schedule string
	Next     []time.Time
	ParseErr string
	Current  bool // byte-equal to the job's entry
}

// Status is a read-only view of how the table relates to the job.
type Status struct {
	Desired crontab.Entry
	Matches []Match
	Entries int
	// InSync is true when exactly one line contains the marker and it equals Desired.
	InSync bool
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Status reads the table and reports the job's lines and their next n
// activations. Unparsable schedules are reported in Match.ParseErr.
func (r *Registrar) Status(ctx context.Context, n int) (Status, error) {
	tbl, err := r.tab.Read(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Desired: r.job.Entry(), Entries: len(tbl)}
	from := r.now()
	for _, e := range tbl.Matching(r.job.Marker()) {
		m := Match{Entry: e, Current: e.Line == st.Desired.Line}
		if sched, _, ok := e.Split(); ok {
			m.Schedule = sched
			next, perr := NextRuns(sched, from, n)
			if perr != nil {
				m.ParseErr = perr.Error()
			}
			m.Next = next
		}
		st.Matches = append(st.Matches, m)
	}
	st.InSync = len(st.Matches) == 1 && st.Matches[0].Current
	return st, nil
}

// NextRuns returns the next n activation times of a five-field or @-descriptor
// schedule after from. A negative n is treated as zero.
func NextRuns(schedule string, from time.Time, n int) ([]time.Time, error) {
	sched, err := scheduleParser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	n = max(n, 0)
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
