package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sr-chatbot/internal/statement"
)

// formatColumns is how many columns, from A, inserted rows copy their
// format across.
const formatColumns = 10

type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values"`
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

// ReadRange returns the formatted values of rangeSpec. A range naming a
// tab that does not exist yields statement.ErrTableNotFound.
func (c *Client) ReadRange(ctx context.Context, tableID, rangeSpec string) ([][]string, error) {
	ctx, span := tracer.Start(ctx, "Sheets.ReadRange")
	defer span.End()
	span.SetAttributes(attribute.String("sheets.range", rangeSpec))

	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s", c.sheetsBase, url.PathEscape(tableID), url.PathEscape(rangeSpec))
	raw, err := c.do(ctx, request{method: http.MethodGet, url: u})
	if err != nil {
		if isMissingRange(err) {
			return nil, statement.ErrTableNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("google: read range %q: %w", rangeSpec, err)
	}
	var vr valueRange
	if err := json.Unmarshal(raw, &vr); err != nil {
		return nil, fmt.Errorf("google: decode range %q: %w", rangeSpec, err)
	}
	c.logger.Debug("google: read range", zap.String("range", rangeSpec), zap.Int("rows", len(vr.Values)))
	return vr.Values, nil
}

// isMissingRange reports whether Sheets rejected a range because its tab
// does not exist.
func isMissingRange(err error) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusBadRequest &&
		strings.Contains(se.Body, "Unable to parse range")
}

// sheetIDs maps tab titles to their numeric ids.
func (c *Client) sheetIDs(ctx context.Context, docID string) (map[string]int64, error) {
	u := fmt.Sprintf("%s/spreadsheets/%s?fields=%s", c.sheetsBase, url.PathEscape(docID), url.QueryEscape("sheets.properties(sheetId,title)"))
	raw, err := c.do(ctx, request{method: http.MethodGet, url: u})
	if err != nil {
		return nil, fmt.Errorf("google: spreadsheet metadata: %w", err)
	}
	var meta spreadsheetMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("google: decode spreadsheet metadata: %w", err)
	}
	out := make(map[string]int64, len(meta.Sheets))
	for _, s := range meta.Sheets {
		out[s.Properties.Title] = s.Properties.SheetID
	}
	return out, nil
}

func (c *Client) sheetID(ctx context.Context, docID, tab string) (int64, bool, error) {
	ids, err := c.sheetIDs(ctx, docID)
	if err != nil {
		return 0, false, err
	}
	id, ok := ids[tab]
	return id, ok, nil
}

func (c *Client) batchUpdate(ctx context.Context, docID string, requests []map[string]any) error {
	body, err := json.Marshal(map[string]any{"requests": requests})
	if err != nil {
		return fmt.Errorf("google: marshal batch update: %w", err)
	}
	u := fmt.Sprintf("%s/spreadsheets/%s:batchUpdate", c.sheetsBase, url.PathEscape(docID))
	_, err = c.do(ctx, request{method: http.MethodPost, url: u, body: body, contentType: "application/json"})
	return err
}

// DeleteTab removes tab from docID. A tab that is already gone is ignored.
func (c *Client) DeleteTab(ctx context.Context, docID, tab string) error {
	id, ok, err := c.sheetID(ctx, docID, tab)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Warn("google: tab not found, skipping deletion", zap.String("tab", tab))
		return nil
	}
	if err := c.batchUpdate(ctx, docID, []map[string]any{
		{"deleteSheet": map[string]any{"sheetId": id}},
	}); err != nil {
		return fmt.Errorf("google: delete tab %q: %w", tab, err)
	}
	return nil
}

// WriteCells writes every range in one values:batchUpdate call. Values are
// parsed as if typed by a user so numbers and dates keep their formats.
func (c *Client) WriteCells(ctx context.Context, docID, tab string, writes []statement.CellRange) error {
	if len(writes) == 0 {
		return nil
	}
	data := make([]valueRange, 0, len(writes))
	for _, w := range writes {
		data = append(data, valueRange{Range: qualify(tab, w.Anchor), Values: w.Values})
	}
	body, err := json.Marshal(map[string]any{
		"valueInputOption": "USER_ENTERED",
		"data":             data,
	})
	if err != nil {
		return fmt.Errorf("google: marshal cell writes: %w", err)
	}
	u := fmt.Sprintf("%s/spreadsheets/%s/values:batchUpdate", c.sheetsBase, url.PathEscape(docID))
	if _, err := c.do(ctx, request{method: http.MethodPost, url: u, body: body, contentType: "application/json"}); err != nil {
		return fmt.Errorf("google: write cells: %w", err)
	}
	return nil
}

// InsertRows inserts count rows before atRow and copies the format of
// formatFromRow onto them. Rows are 1-based.
func (c *Client) InsertRows(ctx context.Context, docID, tab string, atRow, count, formatFromRow int) error {
	if count <= 0 {
		return nil
	}
	id, ok, err := c.sheetID(ctx, docID, tab)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("google: insert rows: %w", statement.ErrTableNotFound)
	}
	start := atRow - 1
	reqs := []map[string]any{
		{"insertDimension": map[string]any{
			"range": map[string]any{
				"sheetId":    id,
				"dimension":  "ROWS",
				"startIndex": start,
				"endIndex":   start + count,
			},
			"inheritFromBefore": false,
		}},
		{"copyPaste": map[string]any{
			"source":      gridRange(id, formatFromRow-1, formatFromRow, formatColumns),
			"destination": gridRange(id, start, start+count, formatColumns),
			"pasteType":   "PASTE_FORMAT",
		}},
	}
	if err := c.batchUpdate(ctx, docID, reqs); err != nil {
		return fmt.Errorf("google: insert rows: %w", err)
	}
	return nil
}

// HighlightRows fills the first columns of each 1-based row with color.
func (c *Client) HighlightRows(ctx context.Context, docID, tab string, rows []int, columns int, color statement.Color) error {
	if len(rows) == 0 {
		return nil
	}
	id, ok, err := c.sheetID(ctx, docID, tab)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("google: highlight rows: %w", statement.ErrTableNotFound)
	}
	reqs := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, map[string]any{"repeatCell": map[string]any{
			"range": gridRange(id, r-1, r, columns),
			"cell": map[string]any{"userEnteredFormat": map[string]any{
				"backgroundColor": map[string]float64{"red": color.Red, "green": color.Green, "blue": color.Blue},
			}},
			"fields": "userEnteredFormat.backgroundColor",
		}})
	}
	if err := c.batchUpdate(ctx, docID, reqs); err != nil {
		return fmt.Errorf("google: highlight rows: %w", err)
	}
	return nil
}

func gridRange(sheetID int64, startRow, endRow, columns int) map[string]any {
	return map[string]any{
		"sheetId":          sheetID,
		"startRowIndex":    startRow,
		"endRowIndex":      endRow,
		"startColumnIndex": 0,
		"endColumnIndex":   columns,
	}
}

// qualify prefixes an A1 anchor with its quoted tab name.
func qualify(tab, anchor string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + anchor
}
