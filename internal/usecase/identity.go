package usecase

import (
	"sort"
	"strings"
	"unicode"

	"sr-chatbot/internal/domain"
)

const (
	scoreExact     = 3
	scorePrefix    = 2
	scoreSubstring = 1
)

var placeholderNames = map[string]struct{}{
	"-": {}, "—": {}, "n/a": {}, "na": {},
}

// normalizeQuery lower-cases name and drops the literal word "contract",
// which users often type alongside the customer name.
func normalizeQuery(name string) string {
	q := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSpace(strings.ReplaceAll(q, "contract", ""))
}

func fieldScore(field, query string) int {
	f := strings.ToLower(strings.TrimSpace(field))
	if f == "" || query == "" {
		return 0
	}
	switch {
	case f == query:
		return scoreExact
	case strings.HasPrefix(f, query):
		return scorePrefix
	case strings.Contains(f, query):
		return scoreSubstring
	}
	return 0
}

func scoreMatch(rec domain.ContractRecord, query string) int {
	return max(fieldScore(rec.CompanyName, query), fieldScore(rec.CustomerName, query))
}

// rankCandidates orders records by score, highest first, and keeps those
// scoring at least max(1, top). Ties keep source order.
func rankCandidates(recs []domain.ContractRecord, name string) []domain.ContractRecord {
	if len(recs) == 0 {
		return nil
	}
	query := normalizeQuery(name)
	type scored struct {
		rec   domain.ContractRecord
		score int
	}
	all := make([]scored, len(recs))
	for i, r := range recs {
		all[i] = scored{rec: r, score: scoreMatch(r, query)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	threshold := max(1, all[0].score)
	var out []domain.ContractRecord
	for _, s := range all {
		if s.score >= threshold {
			out = append(out, s.rec)
		}
	}
	return out
}

// preferredName is the company name when present, else the customer name.
// Placeholder values count as absent.
func preferredName(rec domain.ContractRecord) string {
	for _, n := range []string{rec.CompanyName, rec.CustomerName} {
		n = strings.TrimSpace(n)
		if n != "" && !isPlaceholderName(nameKey(n)) {
			return n
		}
	}
	return ""
}

func nameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func isPlaceholderName(key string) bool {
	if _, ok := placeholderNames[key]; ok {
		return true
	}
	return strings.IndexFunc(key, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) < 0
}

// uniqueNames returns display names deduplicated case and whitespace
// insensitively, in first-seen order, without placeholders.
func uniqueNames(recs []domain.ContractRecord) []string {
	seen := make(map[string]struct{}, len(recs))
	var out []string
	for _, r := range recs {
		name := preferredName(r)
		if name == "" {
			continue
		}
		k := nameKey(name)
		if isPlaceholderName(k) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, name)
	}
	return out
}

// heuristicName derives a lookup name from the raw message when the
// extractor has nothing: a single token of three or more characters, or
// the whole cleaned phrase.
func heuristicName(msg string) string {
	raw := strings.Join(strings.Fields(msg), " ")
	raw = strings.TrimFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	parts := strings.Fields(raw)
	switch {
	case len(parts) == 1 && len([]rune(parts[0])) >= 3:
		return parts[0]
	case len(parts) > 1:
		return raw
	}
	return ""
}

// parseChoice accepts a bare positive integer within [1, n].
func parseChoice(msg string, n int) (idx int, numeric bool) {
	m := strings.TrimSpace(msg)
	if m == "" {
		return 0, false
	}
	v := 0
	for _, r := range m {
		if r < '0' || r > '9' {
			return 0, false
		}
		v = v*10 + int(r-'0')
		if v > n+1 {
			v = n + 1
		}
	}
	if v < 1 || v > n {
		return -1, true
	}
	return v - 1, true
}
