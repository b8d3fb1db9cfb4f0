package registrar

import (
	"errors"
	"strings"

	"github.com/loykin/cronreg/internal/crontab"
)

// Build-time defaults for the scraper job.
const (
	DefaultSchedule    = "0 */3 * * *"
	DefaultInterpreter = "/usr/bin/python3"
	DefaultScript      = "/home/ec2-user/used-car-scraper/run_all.py"
	DefaultLogPath     = "/var/log/usedcar.log"
)

// Job describes the single crontab entry the registrar maintains.
// LogPath doubles as the marker: any line containing it belongs to the job.
type Job struct {
	Schedule    string
	Interpreter string
	Script      string
	Args        []string
	LogPath     string
}

// DefaultJob returns the scraper job registered every three hours.
func DefaultJob() Job {
	return Job{
		Schedule:    DefaultSchedule,
		Interpreter: DefaultInterpreter,
		Script:      DefaultScript,
		LogPath:     DefaultLogPath,
	}
}

// Validate checks that the job can be rendered into a line. The schedule
// expression itself is handed to cron as is.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Schedule) == "" {
		return errors.New("job requires a schedule")
	}
	if strings.TrimSpace(j.Script) == "" {
		return errors.New("job requires a script")
	}
	if strings.TrimSpace(j.LogPath) == "" {
		return errors.New("job requires a log path")
	}
	if strings.ContainsAny(j.Schedule+j.Interpreter+j.Script+j.LogPath+strings.Join(j.Args, ""), "\r\n") {
		return errors.New("job fields must not contain newlines")
	}
	return nil
}

// Marker is the substring identifying lines owned by this job.
func (j Job) Marker() string { return j.LogPath }

// Command renders the command part of the line, with stdout and stderr
// appended to LogPath.
func (j Job) Command() string {
	parts := make([]string, 0, 6+len(j.Args))
	if j.Interpreter != "" {
		parts = append(parts, j.Interpreter)
	}
	parts = append(parts, j.Script)
	parts = append(parts, j.Args...)
	parts = append(parts, ">>", j.LogPath, "2>&1")
	return strings.Join(parts, " ")
}

// Entry is the full crontab line for the job.
func (j Job) Entry() crontab.Entry {
	return crontab.NewEntry(j.Schedule, j.Command())
}
