// Package statement aggregates account data from the spreadsheet sources,
// composes statement rows and drives template rendering into a shareable PDF.
package statement

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned by a TabularReader when the requested sheet
// does not exist. It terminates partition scans.
var ErrTableNotFound = errors.New("statement: table not found")

// TabularReader reads a range such as "Contract Report!A:M" from a table.
// The first returned row is the header row.
type TabularReader interface {
	ReadRange(ctx context.Context, tableID, rangeSpec string) ([][]string, error)
}

// AddressSplitter is the AI capability that splits an address into three
// display lines. ok is false when the model produced nothing usable.
type AddressSplitter interface {
	SplitAddress(ctx context.Context, address string) (lines [3]string, ok bool, err error)
}

// Color is an RGB fill colour with components in [0,1].
type Color struct {
	Red   float64 `yaml:"red"`
	Green float64 `yaml:"green"`
	Blue  float64 `yaml:"blue"`
}

// DocumentRenderer is the document workspace a statement is rendered in.
// Row numbers are 1-based as displayed in the spreadsheet.
type DocumentRenderer interface {
	Copy(ctx context.Context, templateID, name string) (string, error)
	DeleteTab(ctx context.Context, docID, tab string) error
	WriteCells(ctx context.Context, docID, tab string, writes []CellRange) error
	InsertRows(ctx context.Context, docID, tab string, atRow, count, formatFromRow int) error
	HighlightRows(ctx context.Context, docID, tab string, rows []int, columns int, color Color) error
	ExportAsDocument(ctx context.Context, docID, tab string) ([]byte, error)
	Store(ctx context.Context, data []byte, filename string) (string, error)
	ShareableLink(ctx context.Context, storedID string) (string, error)
	Discard(ctx context.Context, docID string) error
}

// CellRange writes a block of values whose top-left corner is Anchor
// (A1 notation without the tab name).
type CellRange struct {
	Anchor string
	Values [][]string
}
