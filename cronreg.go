// Package cronreg keeps a single job registered in the invoking user's crontab.
//
// The registrar reads the crontab, drops every line that contains the job's
// marker (its log path), appends the job's line and writes the table back in
// one call. Running it repeatedly always converges to the same table.
package cronreg

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/cronreg/internal/crontab"
	"github.com/loykin/cronreg/internal/history"
	"github.com/loykin/cronreg/internal/history/factory"
	"github.com/loykin/cronreg/internal/metrics"
	"github.com/loykin/cronreg/internal/registrar"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Job = registrar.Job

type Result = registrar.Result

type Status = registrar.Status

type Entry = crontab.Entry

type Table = crontab.Table

// Tab is the scheduler collaborator: one read, one whole-table write.
type Tab = crontab.Tab

type HistorySink = history.Sink

// HistoryReader is implemented by the SQL history sinks.
type HistoryReader = history.Reader

var (
	ErrPermission  = crontab.ErrPermission
	ErrUnavailable = crontab.ErrUnavailable
)

// Registrar is a thin facade over internal/registrar.Registrar.
type Registrar = registrar.Registrar

type Option = registrar.Option

var (
	WithLogger  = registrar.WithLogger
	WithHistory = registrar.WithHistory
	WithUser    = registrar.WithUser
)

// DefaultJob returns the scraper job registered every three hours.
func DefaultJob() Job { return registrar.DefaultJob() }

// SystemTab returns a Tab backed by crontab(1). An empty user edits the
// invoking user's table.
func SystemTab(user string) Tab { return crontab.CommandTab{User: user} }

// MemoryTab returns an in-memory Tab seeded with t, for tests and embedding.
func MemoryTab(t Table) *crontab.MemoryTab { return crontab.NewMemoryTab(t) }

func New(tab Tab, job Job, opts ...Option) *Registrar { return registrar.New(tab, job, opts...) }

// NewHistorySinkFromDSN opens a history sink (sqlite, postgres, clickhouse or
// opensearch) selected by the DSN scheme.
func NewHistorySinkFromDSN(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// RegisterMetrics registers the registrar's collectors with r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// WriteMetricsTextfile writes everything g gathers to path for node_exporter.
func WriteMetricsTextfile(path string, g prometheus.Gatherer) error {
	return metrics.WriteTextfile(path, g)
}
