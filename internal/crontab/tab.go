package crontab

import (
	"context"
	"sync"
)

// Tab is the task scheduler as seen by the registrar: one read and one
// whole-table write. Implementations must replace the table atomically.
type Tab interface {
	Read(ctx context.Context) (Table, error)
	Write(ctx context.Context, t Table) error
}

// MemoryTab keeps a table in memory. ReadErr and WriteErr, when set, are
// returned instead of touching the table.
type MemoryTab struct {
	mu       sync.Mutex
	table    Table
	ReadErr  error
	WriteErr error
	Writes   int
}

// NewMemoryTab returns a MemoryTab holding a copy of t.
func NewMemoryTab(t Table) *MemoryTab {
	return &MemoryTab{table: t.Clone()}
}

func (m *MemoryTab) Read(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.table.Clone(), nil
}

func (m *MemoryTab) Write(ctx context.Context, t Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.table = t.Clone()
	m.Writes++
	return nil
}

// Table returns a copy of the stored table.
func (m *MemoryTab) Table() Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Clone()
}
