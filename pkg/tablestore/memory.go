package tablestore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store and PropertyStore. It backs tests and the
// CLI's offline mode. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*memTable
	props  map[string]string
}

type memTable struct {
	headers []string
	rows    [][]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]*memTable),
		props:  make(map[string]string),
	}
}

// CreateTable registers a table with the given header row, replacing any
// existing definition.
func (m *Memory) CreateTable(name string, headers []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = &memTable{headers: append([]string(nil), headers...)}
}

func (m *Memory) ReadAll(ctx context.Context, table string) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	rows := make([][]string, len(t.rows))
	for i, r := range t.rows {
		rows[i] = append([]string(nil), r...)
	}
	return NewTable(table, append([]string(nil), t.headers...), rows), nil
}

func (m *Memory) AppendRow(ctx context.Context, table string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	t.rows = append(t.rows, append([]string(nil), row...))
	return nil
}

func (m *Memory) DeleteRow(ctx context.Context, table string, rowIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if rowIndex < 1 || rowIndex > len(t.rows) {
		return fmt.Errorf("row index %d out of range for %q (%d rows)", rowIndex, table, len(t.rows))
	}
	t.rows = append(t.rows[:rowIndex-1], t.rows[rowIndex:]...)
	return nil
}

func (m *Memory) UpdateCell(ctx context.Context, table string, rowIndex, colIndex int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if rowIndex < 1 || rowIndex > len(t.rows) {
		return fmt.Errorf("row index %d out of range for %q (%d rows)", rowIndex, table, len(t.rows))
	}
	row := t.rows[rowIndex-1]
	// Grow ragged rows so short appends can still be updated in place.
	for len(row) <= colIndex {
		row = append(row, "")
	}
	row[colIndex] = value
	t.rows[rowIndex-1] = row
	return nil
}

func (m *Memory) GetProperty(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.props[key]
	return v, ok, nil
}

func (m *Memory) SetProperty(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[key] = value
	return nil
}
