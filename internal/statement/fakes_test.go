package statement

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// fakeTabular serves ranges keyed by "tableID|tab". Missing tabs return
// ErrTableNotFound.
type fakeTabular struct {
	tables map[string][][]string
	errs   map[string]error
	reads  []string
}

func newFakeTabular() *fakeTabular {
	return &fakeTabular{tables: map[string][][]string{}, errs: map[string]error{}}
}

func (f *fakeTabular) put(tableID, tab string, rows ...[]string) {
	f.tables[tableID+"|"+tab] = rows
}

func (f *fakeTabular) ReadRange(_ context.Context, tableID, rng string) ([][]string, error) {
	tab := rng
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		tab = rng[:i]
	}
	tab = strings.Trim(tab, "'")
	key := tableID + "|" + tab
	f.reads = append(f.reads, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	rows, ok := f.tables[key]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", key, ErrTableNotFound)
	}
	return rows, nil
}

type fakeSplitter struct {
	lines [3]string
	ok    bool
	err   error
	calls int
}

func (f *fakeSplitter) SplitAddress(context.Context, string) ([3]string, bool, error) {
	f.calls++
	return f.lines, f.ok, f.err
}

type fakeRenderer struct {
	calls       []string
	copyName    string
	deletedTab  string
	writes      map[string][]CellRange
	insertTab   string
	insertAt    int
	insertCount int
	insertFrom  int
	highlighted []int
	stored      string
	discarded   string

	exportErr error
	storeErr  error
}

func (f *fakeRenderer) Copy(_ context.Context, templateID, name string) (string, error) {
	f.calls = append(f.calls, "copy")
	f.copyName = name
	return "work-1", nil
}

func (f *fakeRenderer) DeleteTab(_ context.Context, _, tab string) error {
	f.calls = append(f.calls, "delete_tab")
	f.deletedTab = tab
	return nil
}

func (f *fakeRenderer) WriteCells(_ context.Context, _, tab string, writes []CellRange) error {
	f.calls = append(f.calls, "write")
	if f.writes == nil {
		f.writes = map[string][]CellRange{}
	}
	f.writes[tab] = append(f.writes[tab], writes...)
	return nil
}

func (f *fakeRenderer) InsertRows(_ context.Context, _, tab string, at, count, from int) error {
	f.calls = append(f.calls, "insert")
	f.insertTab, f.insertAt, f.insertCount, f.insertFrom = tab, at, count, from
	return nil
}

func (f *fakeRenderer) HighlightRows(_ context.Context, _, _ string, rows []int, _ int, _ Color) error {
	f.calls = append(f.calls, "highlight")
	f.highlighted = rows
	return nil
}

func (f *fakeRenderer) ExportAsDocument(context.Context, string, string) ([]byte, error) {
	f.calls = append(f.calls, "export")
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return []byte("%PDF"), nil
}

func (f *fakeRenderer) Store(_ context.Context, _ []byte, filename string) (string, error) {
	f.calls = append(f.calls, "store")
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.stored = filename
	return "file-9", nil
}

func (f *fakeRenderer) ShareableLink(_ context.Context, id string) (string, error) {
	f.calls = append(f.calls, "share")
	return "https://drive.google.com/file/d/" + id + "/view", nil
}

func (f *fakeRenderer) Discard(_ context.Context, id string) error {
	f.calls = append(f.calls, "discard")
	f.discarded = id
	return nil
}

func (f *fakeRenderer) cell(tab, anchor string) (string, bool) {
	for _, w := range f.writes[tab] {
		if w.Anchor == anchor && len(w.Values) > 0 && len(w.Values[0]) > 0 {
			return w.Values[0][0], true
		}
	}
	return "", false
}

var errBoom = errors.New("boom")
