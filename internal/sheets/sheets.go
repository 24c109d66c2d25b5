package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Store is the tabular-store contract the core components depend on.
// Coordinates are 1-based (row, column), matching spreadsheet numbering.
// A height or width <= 0 means "to the end of the data".
type Store interface {
	// ReadRange returns the cell values of a rectangular range as display
	// strings. Rows are padded to the requested width, and trailing blank
	// rows are padded in so the result has the requested height.
	ReadRange(ctx context.Context, sheet string, row, col, height, width int) ([][]string, error)
	// WriteRange overwrites a rectangular range in one operation.
	WriteRange(ctx context.Context, sheet string, row, col int, values [][]string) error
	// ReadCell returns a single cell's display value ("" when empty).
	ReadCell(ctx context.Context, sheet string, row, col int) (string, error)
	// UpdateCell overwrites a single cell.
	UpdateCell(ctx context.Context, sheet string, row, col int, value string) error
	// LastRow returns the last row of the sheet that contains data (0 when
	// the sheet is empty).
	LastRow(ctx context.Context, sheet string) (int, error)
	// InsertSheet adds a new named sheet to the spreadsheet.
	InsertSheet(ctx context.Context, name string) error
}

// Client implements Store on the Google Sheets API.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewClient creates a Sheets store bound to one spreadsheet. The HTTP client
// must already carry OAuth credentials.
func NewClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, spreadsheetID string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is not configured")
	}
	service, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{service: service, spreadsheetID: spreadsheetID, logger: logger}, nil
}

func (c *Client) ReadRange(ctx context.Context, sheet string, row, col, height, width int) ([][]string, error) {
	rng := rangeA1(sheet, row, col, height, width)
	c.logger.Debug("Reading range", "range", rng)
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", rng, err)
	}
	return toStringRows(resp.Values, height, width), nil
}

func (c *Client) WriteRange(ctx context.Context, sheet string, row, col int, values [][]string) error {
	if len(values) == 0 {
		return nil
	}
	width := 0
	for _, r := range values {
		if len(r) > width {
			width = len(r)
		}
	}
	rng := rangeA1(sheet, row, col, len(values), width)
	body := &sheets.ValueRange{Values: toAnyRows(values)}
	_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, rng, body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write range %s: %w", rng, err)
	}
	c.logger.Debug("Wrote range", "range", rng, "rows", len(values))
	return nil
}

func (c *Client) ReadCell(ctx context.Context, sheet string, row, col int) (string, error) {
	rows, err := c.ReadRange(ctx, sheet, row, col, 1, 1)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return rows[0][0], nil
}

func (c *Client) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	return c.WriteRange(ctx, sheet, row, col, [][]string{{value}})
}

func (c *Client) LastRow(ctx context.Context, sheet string) (int, error) {
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, sheet).
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return len(resp.Values), nil
}

func (c *Client) InsertSheet(ctx context.Context, name string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to insert sheet %s: %w", name, err)
	}
	c.logger.Info("Inserted sheet", "name", name)
	return nil
}

// rangeA1 builds an A1-notation range. height/width <= 0 produce an
// open-ended range in that dimension.
func rangeA1(sheet string, row, col, height, width int) string {
	start := columnName(col) + fmt.Sprint(row)
	if width <= 0 {
		// Open-ended width: whole-row notation (or the whole sheet when
		// the height is open too).
		if height <= 0 {
			return fmt.Sprintf("'%s'", sheet)
		}
		return fmt.Sprintf("'%s'!%d:%d", sheet, row, row+height-1)
	}
	endCol := columnName(col + width - 1)
	if height <= 0 {
		return fmt.Sprintf("'%s'!%s:%s", sheet, start, endCol)
	}
	return fmt.Sprintf("'%s'!%s:%s%d", sheet, start, endCol, row+height-1)
}

// columnName converts a 1-based column index to its letter form (1 -> A,
// 27 -> AA).
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

// toStringRows converts API values to display strings. The API omits
// trailing empty cells and rows, so the result is padded back out to the
// requested dimensions.
func toStringRows(values [][]interface{}, height, width int) [][]string {
	rows := make([][]string, len(values))
	for i, raw := range values {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = fmt.Sprint(v)
		}
		for width > 0 && len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	for height > 0 && len(rows) < height {
		pad := []string{}
		if width > 0 {
			pad = make([]string, width)
		}
		rows = append(rows, pad)
	}
	return rows
}

func toAnyRows(values [][]string) [][]interface{} {
	rows := make([][]interface{}, len(values))
	for i, raw := range values {
		row := make([]interface{}, len(raw))
		for j, v := range raw {
			row[j] = v
		}
		rows[i] = row
	}
	return rows
}
