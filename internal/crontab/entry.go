package crontab

import (
	"strings"
)

// Entry is one line of a crontab. The text is kept verbatim; Schedule and
// Command are a best-effort split used for display only.
type Entry struct {
	Line string
}

// NewEntry builds a job line from a schedule expression and a command string.
func NewEntry(schedule, command string) Entry {
	return Entry{Line: strings.TrimSpace(schedule) + " " + strings.TrimSpace(command)}
}

func (e Entry) String() string { return e.Line }

// Contains reports whether the raw line contains marker.
// An empty marker never matches.
func (e Entry) Contains(marker string) bool {
	return marker != "" && strings.Contains(e.Line, marker)
}

// IsComment reports whether the line is blank or a # comment.
func (e Entry) IsComment() bool {
	t := strings.TrimSpace(e.Line)
	return t == "" || strings.HasPrefix(t, "#")
}

// IsEnv reports whether the line is an environment assignment such as MAILTO=root.
func (e Entry) IsEnv() bool {
	if e.IsComment() {
		return false
	}
	fields := strings.Fields(e.Line)
	if len(fields) == 0 {
		return false
	}
	i := strings.IndexByte(e.Line, '=')
	if i <= 0 {
		return false
	}
	// the '=' must appear before the first space of the line
	return !strings.ContainsAny(strings.TrimSpace(e.Line[:i]), " \t")
}

// Split returns the schedule expression and the command of a job line.
// ok is false for comments, env assignments and lines too short to be a job.
func (e Entry) Split() (schedule, command string, ok bool) {
	if e.IsComment() || e.IsEnv() {
		return "", "", false
	}
	fields := strings.Fields(e.Line)
	n := 5
	if strings.HasPrefix(fields[0], "@") {
		n = 1
	}
	if len(fields) <= n {
		return "", "", false
	}
	schedule = strings.Join(fields[:n], " ")
	rest := strings.TrimSpace(e.Line)
	for i := 0; i < n; i++ {
		rest = strings.TrimLeft(rest, " \t")
		j := strings.IndexAny(rest, " \t")
		rest = rest[j:]
	}
	return schedule, strings.TrimSpace(rest), true
}

// Table is the ordered list of entries of one user's crontab.
type Table []Entry

// ParseTable splits crontab text into entries. A final newline does not produce
// an extra empty entry; every other line, blank or not, is kept.
func ParseTable(text string) Table {
	if text == "" {
		return Table{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	t := make(Table, 0, len(lines))
	for _, l := range lines {
		t = append(t, Entry{Line: l})
	}
	return t
}

// String renders the table in crontab format. A non-empty table always ends
// with a newline since cron ignores an unterminated last line.
func (t Table) String() string {
	if len(t) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range t {
		b.WriteString(e.Line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Without returns the entries that do not contain marker, in order, and the
// ones that were dropped.
func (t Table) Without(marker string) (kept Table, removed Table) {
	kept = make(Table, 0, len(t))
	for _, e := range t {
		if e.Contains(marker) {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}

// Matching returns the entries that contain marker.
func (t Table) Matching(marker string) Table {
	var out Table
	for _, e := range t {
		if e.Contains(marker) {
			out = append(out, e)
		}
	}
	return out
}

// With returns a copy of t with e appended.
func (t Table) With(e Entry) Table {
	out := make(Table, 0, len(t)+1)
	out = append(out, t...)
	return append(out, e)
}

// Equal reports whether both tables hold the same lines in the same order.
func (t Table) Equal(o Table) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i].Line != o[i].Line {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	copy(out, t)
	return out
}
