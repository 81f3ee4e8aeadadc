// Package sheetsclient wraps the Google Sheets API with the handful of
// operations the dispatch store needs: ranged reads, row appends, cell
// updates, and row deletes.
package sheetsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client wraps the Google Sheets API client
type Client struct {
	service *sheets.Service
	ctx     context.Context

	// sheet ids by tab title, resolved lazily per spreadsheet
	sheetIDs map[string]map[string]int64
}

// NewClient creates a Sheets client from an OAuth credentials file and a
// previously stored token file. Obtaining the token interactively is
// operator tooling and lives outside this library.
func NewClient(ctx context.Context, credentialsFile, tokenFile string) (*Client, error) {
	credJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(credJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	service, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service:  service,
		ctx:      ctx,
		sheetIDs: make(map[string]map[string]int64),
	}, nil
}

// Service returns the underlying sheets service for direct API access
func (c *Client) Service() *sheets.Service {
	return c.service
}

// GetValues reads values from a spreadsheet range
func (c *Client) GetValues(spreadsheetID, sheetRange string) ([][]interface{}, error) {
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, sheetRange).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get values: %w", err)
	}

	return resp.Values, nil
}

// AppendRows appends rows after the last data row of the given sheet
func (c *Client) AppendRows(spreadsheetID, sheetRange string, values [][]interface{}) error {
	vr := &sheets.ValueRange{Values: values}
	_, err := c.service.Spreadsheets.Values.Append(spreadsheetID, sheetRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Do()
	if err != nil {
		return fmt.Errorf("failed to append rows: %w", err)
	}
	return nil
}

// UpdateValues overwrites the given range with values
func (c *Client) UpdateValues(spreadsheetID, sheetRange string, values [][]interface{}) error {
	vr := &sheets.ValueRange{Values: values}
	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, sheetRange, vr).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		return fmt.Errorf("failed to update values: %w", err)
	}
	return nil
}

// DeleteRow removes one row (0-based sheet row) from the named tab
func (c *Client) DeleteRow(spreadsheetID, sheetTitle string, sheetRow int64) error {
	sheetID, err := c.sheetIDByTitle(spreadsheetID, sheetTitle)
	if err != nil {
		return err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: sheetRow,
					EndIndex:   sheetRow + 1,
				},
			},
		}},
	}

	if _, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Do(); err != nil {
		return fmt.Errorf("failed to delete row %d from %s: %w", sheetRow, sheetTitle, err)
	}
	return nil
}

// sheetIDByTitle resolves and caches the numeric sheet id for a tab title
func (c *Client) sheetIDByTitle(spreadsheetID, title string) (int64, error) {
	if ids, ok := c.sheetIDs[spreadsheetID]; ok {
		if id, ok := ids[title]; ok {
			return id, nil
		}
	}

	spreadsheet, err := c.service.Spreadsheets.Get(spreadsheetID).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	ids := make(map[string]int64, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		ids[sheet.Properties.Title] = sheet.Properties.SheetId
	}
	c.sheetIDs[spreadsheetID] = ids

	id, ok := ids[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in spreadsheet", title)
	}
	return id, nil
}

// tokenFromFile reads an oauth2 token stored as JSON
func tokenFromFile(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}
