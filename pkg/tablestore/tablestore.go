// Package tablestore defines the contract the dispatch core consumes for
// its persisted tables: whole-table reads with a header-derived column map,
// row appends, 1-based row deletes, and single-cell updates. The store's
// engine itself is external; this package carries the interfaces, the
// snapshot type, and an in-memory implementation.
package tablestore

import (
	"context"
	"strings"
)

// Table names used throughout the core.
const (
	TableRequests     = "requests"
	TableRiders       = "riders"
	TableAssignments  = "assignments"
	TableAvailability = "availability"
)

// Table is a point-in-time snapshot of one named table. Rows excludes the
// header row; row index 1 is the first data row. ColumnIndex maps
// lower-cased header names to column positions.
type Table struct {
	Name        string
	Headers     []string
	Rows        [][]string
	ColumnIndex map[string]int
}

// NewTable builds a snapshot and its column index from raw values.
func NewTable(name string, headers []string, rows [][]string) *Table {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &Table{Name: name, Headers: headers, Rows: rows, ColumnIndex: idx}
}

// Col returns the column position for a header name, or -1 if absent.
// Matching is case-insensitive.
func (t *Table) Col(header string) int {
	if i, ok := t.ColumnIndex[strings.ToLower(header)]; ok {
		return i
	}
	return -1
}

// Cell returns the value at (dataRow, header), tolerating ragged rows.
// dataRow is 1-based.
func (t *Table) Cell(dataRow int, header string) string {
	col := t.Col(header)
	if col < 0 || dataRow < 1 || dataRow > len(t.Rows) {
		return ""
	}
	row := t.Rows[dataRow-1]
	if col >= len(row) {
		return ""
	}
	return row[col]
}

// Store is the tabular store the core reads and writes. Row indexes are
// 1-based data rows; batch deleters must delete highest index first.
type Store interface {
	ReadAll(ctx context.Context, table string) (*Table, error)
	AppendRow(ctx context.Context, table string, row []string) error
	DeleteRow(ctx context.Context, table string, rowIndex int) error
	UpdateCell(ctx context.Context, table string, rowIndex, colIndex int, value string) error
}

// PropertyStore is the external key-value store holding small long-lived
// values such as the rotation order.
type PropertyStore interface {
	GetProperty(ctx context.Context, key string) (string, bool, error)
	SetProperty(ctx context.Context, key, value string) error
}
