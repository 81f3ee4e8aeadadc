package tablestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/saferides/escort-dispatch/pkg/clients/sheetsclient"
	"github.com/saferides/escort-dispatch/pkg/core/errs"
)

// Sheets adapts one Google Sheets spreadsheet into a Store plus
// PropertyStore. Each table is a tab whose first row is the header; the
// property store is a two-column key/value tab.
type Sheets struct {
	client        *sheetsclient.Client
	spreadsheetID string
	propertiesTab string
}

// NewSheets returns a Sheets store over the given spreadsheet.
func NewSheets(client *sheetsclient.Client, spreadsheetID, propertiesTab string) *Sheets {
	if propertiesTab == "" {
		propertiesTab = "properties"
	}
	return &Sheets{
		client:        client,
		spreadsheetID: spreadsheetID,
		propertiesTab: propertiesTab,
	}
}

func (s *Sheets) ReadAll(ctx context.Context, table string) (*Table, error) {
	values, err := s.client.GetValues(s.spreadsheetID, table)
	if err != nil {
		return nil, errs.NewPersistence("read", table, err)
	}
	if len(values) == 0 {
		return nil, errs.NewPersistence("read", table, fmt.Errorf("missing header row"))
	}

	headers := stringifyRow(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		rows = append(rows, stringifyRow(raw))
	}
	return NewTable(table, headers, rows), nil
}

func (s *Sheets) AppendRow(ctx context.Context, table string, row []string) error {
	raw := make([]interface{}, len(row))
	for i, v := range row {
		raw[i] = v
	}
	if err := s.client.AppendRows(s.spreadsheetID, table, [][]interface{}{raw}); err != nil {
		return errs.NewPersistence("append", table, err)
	}
	return nil
}

func (s *Sheets) DeleteRow(ctx context.Context, table string, rowIndex int) error {
	if rowIndex < 1 {
		return errs.NewPersistence("delete", table, fmt.Errorf("row index %d out of range", rowIndex))
	}
	// Data row 1 sits below the header, at 0-based sheet row 1.
	if err := s.client.DeleteRow(s.spreadsheetID, table, int64(rowIndex)); err != nil {
		return errs.NewPersistence("delete", table, err)
	}
	return nil
}

func (s *Sheets) UpdateCell(ctx context.Context, table string, rowIndex, colIndex int, value string) error {
	if rowIndex < 1 || colIndex < 0 {
		return errs.NewPersistence("update", table, fmt.Errorf("cell (%d,%d) out of range", rowIndex, colIndex))
	}
	// +1 for the header row; A1 rows are 1-based.
	cell := fmt.Sprintf("%s!%s%d", table, columnLetter(colIndex), rowIndex+1)
	if err := s.client.UpdateValues(s.spreadsheetID, cell, [][]interface{}{{value}}); err != nil {
		return errs.NewPersistence("update", table, err)
	}
	return nil
}

func (s *Sheets) GetProperty(ctx context.Context, key string) (string, bool, error) {
	values, err := s.client.GetValues(s.spreadsheetID, s.propertiesTab)
	if err != nil {
		return "", false, errs.NewPersistence("property", s.propertiesTab, err)
	}
	for _, row := range values {
		cells := stringifyRow(row)
		if len(cells) >= 1 && cells[0] == key {
			if len(cells) >= 2 {
				return cells[1], true, nil
			}
			return "", true, nil
		}
	}
	return "", false, nil
}

func (s *Sheets) SetProperty(ctx context.Context, key, value string) error {
	values, err := s.client.GetValues(s.spreadsheetID, s.propertiesTab)
	if err != nil {
		return errs.NewPersistence("property", s.propertiesTab, err)
	}
	for i, row := range values {
		cells := stringifyRow(row)
		if len(cells) >= 1 && cells[0] == key {
			rng := fmt.Sprintf("%s!B%d", s.propertiesTab, i+1)
			if err := s.client.UpdateValues(s.spreadsheetID, rng, [][]interface{}{{value}}); err != nil {
				return errs.NewPersistence("property", s.propertiesTab, err)
			}
			return nil
		}
	}
	if err := s.client.AppendRows(s.spreadsheetID, s.propertiesTab, [][]interface{}{{key, value}}); err != nil {
		return errs.NewPersistence("property", s.propertiesTab, err)
	}
	return nil
}

func stringifyRow(raw []interface{}) []string {
	row := make([]string, len(raw))
	for i, cell := range raw {
		switch v := cell.(type) {
		case string:
			row[i] = v
		case nil:
			row[i] = ""
		default:
			row[i] = fmt.Sprintf("%v", v)
		}
	}
	return row
}

// columnLetter converts a 0-based column index to its A1 letters.
func columnLetter(col int) string {
	var sb strings.Builder
	for col >= 0 {
		sb.WriteByte(byte('A' + col%26))
		col = col/26 - 1
	}
	// Letters were produced least significant first.
	s := sb.String()
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = s[len(s)-1-i]
	}
	return string(out)
}
