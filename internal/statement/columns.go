package statement

import "strings"

// columns maps lower-cased header names to their index. Lookups report
// presence explicitly, so column A (index 0) is a valid target.
type columns map[string]int

func newColumns(header []string) columns {
	c := make(columns, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := c[key]; !dup {
			c[key] = i
		}
	}
	return c
}

func normalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

// index returns the index of the first alias present in the header.
func (c columns) index(aliases ...string) (int, bool) {
	for _, a := range aliases {
		if i, ok := c[normalizeHeader(a)]; ok {
			return i, true
		}
	}
	return 0, false
}

// cell returns the trimmed value of the first present alias, or "" when the
// column is absent or the row is too short.
func (c columns) cell(row []string, aliases ...string) string {
	i, ok := c.index(aliases...)
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columns) has(aliases ...string) bool {
	_, ok := c.index(aliases...)
	return ok
}

// normalizeID is the comparison form of a contract identifier.
func normalizeID(id string) string {
	return strings.ToLower(strings.Join(strings.Fields(id), ""))
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if n := normalizeID(id); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
