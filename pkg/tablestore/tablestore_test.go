package tablestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableColAndCell(t *testing.T) {
	tbl := NewTable("requests",
		[]string{"Request ID", " Status "},
		[][]string{{"B-02-24", "New"}, {"C-01-24"}})

	assert.Equal(t, 0, tbl.Col("request id"))
	assert.Equal(t, 1, tbl.Col("STATUS"))
	assert.Equal(t, -1, tbl.Col("nope"))

	assert.Equal(t, "New", tbl.Cell(1, "Status"))
	// Ragged row and out-of-range lookups are empty, not panics.
	assert.Equal(t, "", tbl.Cell(2, "Status"))
	assert.Equal(t, "", tbl.Cell(3, "Request ID"))
	assert.Equal(t, "", tbl.Cell(0, "Request ID"))
}

func TestMemoryRowOperations(t *testing.T) {
	m := NewMemory()
	m.CreateTable("t", []string{"A", "B"})
	ctx := context.Background()

	require.NoError(t, m.AppendRow(ctx, "t", []string{"1", "one"}))
	require.NoError(t, m.AppendRow(ctx, "t", []string{"2", "two"}))
	require.NoError(t, m.AppendRow(ctx, "t", []string{"3", "three"}))

	require.NoError(t, m.DeleteRow(ctx, "t", 2))
	tbl, err := m.ReadAll(ctx, "t")
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "3", tbl.Rows[1][0])

	require.NoError(t, m.UpdateCell(ctx, "t", 2, 1, "THREE"))
	tbl, err = m.ReadAll(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "THREE", tbl.Rows[1][1])

	assert.Error(t, m.DeleteRow(ctx, "t", 5))
	assert.Error(t, m.AppendRow(ctx, "missing", []string{"x"}))
}

func TestMemoryProperties(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, found, err := m.GetProperty(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.SetProperty(ctx, "k", "v"))
	v, found, err := m.GetProperty(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestMemorySnapshotIsolation(t *testing.T) {
	m := NewMemory()
	m.CreateTable("t", []string{"A"})
	ctx := context.Background()
	require.NoError(t, m.AppendRow(ctx, "t", []string{"x"}))

	tbl, err := m.ReadAll(ctx, "t")
	require.NoError(t, err)
	tbl.Rows[0][0] = "mutated"

	fresh, err := m.ReadAll(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "x", fresh.Rows[0][0])
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, columnLetter(tt.col), "col %d", tt.col)
	}
}
