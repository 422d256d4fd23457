package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sr-chatbot/internal/domain"
)

func TestNormalizeQueryStripsContractWord(t *testing.T) {
	require.Equal(t, "acme", normalizeQuery("  Acme Contract "))
	require.Equal(t, "", normalizeQuery("contract"))
}

func TestScoreMatch(t *testing.T) {
	rec := domain.ContractRecord{CompanyName: "Acme Rentals", CustomerName: "John Tan"}
	require.Equal(t, scoreExact, scoreMatch(rec, "john tan"))
	require.Equal(t, scorePrefix, scoreMatch(rec, "acme"))
	require.Equal(t, scoreSubstring, scoreMatch(rec, "rentals"))
	require.Zero(t, scoreMatch(rec, "globex"))
	require.Zero(t, scoreMatch(domain.ContractRecord{}, ""))
}

func TestRankCandidatesFiltersToTopScore(t *testing.T) {
	recs := []domain.ContractRecord{
		{ContractID: "1", CompanyName: "Big ABC Corp"},
		{ContractID: "2", CompanyName: "ABC Corp"},
		{ContractID: "3", CompanyName: "ABC Corporation"},
		{ContractID: "4", CustomerName: "abc corp"},
		{ContractID: "5", CompanyName: "Unrelated"},
	}

	ranked := rankCandidates(recs, "ABC Corp contract")
	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.ContractID)
	}
	require.Equal(t, []string{"2", "4"}, ids)
}

func TestRankCandidatesIsDeterministic(t *testing.T) {
	recs := []domain.ContractRecord{
		{ContractID: "1", CompanyName: "Acme One"},
		{ContractID: "2", CompanyName: "Acme Two"},
		{ContractID: "3", CompanyName: "The Acme"},
		{ContractID: "4", CompanyName: "Acme Three"},
	}
	first := rankCandidates(recs, "acme")
	for i := 0; i < 20; i++ {
		require.Equal(t, first, rankCandidates(recs, "acme"))
	}
	require.Len(t, first, 3)
	require.Equal(t, "1", first[0].ContractID)
	require.Equal(t, "4", first[2].ContractID)
}

func TestRankCandidatesNoMatch(t *testing.T) {
	require.Empty(t, rankCandidates(nil, "acme"))
	require.Empty(t, rankCandidates([]domain.ContractRecord{{CompanyName: "Globex"}}, "acme"))
}

func TestUniqueNames(t *testing.T) {
	recs := []domain.ContractRecord{
		{CompanyName: "ABC Corp"},
		{CompanyName: "abc   corp"},
		{CompanyName: "-", CustomerName: "Jane Lim"},
		{CompanyName: "n/a", CustomerName: "--"},
		{CustomerName: "JANE LIM"},
		{CompanyName: "Other Co"},
	}
	require.Equal(t, []string{"ABC Corp", "Jane Lim", "Other Co"}, uniqueNames(recs))
	require.Empty(t, uniqueNames([]domain.ContractRecord{{CompanyName: "—"}, {CustomerName: "..."}}))
}

func TestHeuristicName(t *testing.T) {
	cases := map[string]string{
		"Acme":            "Acme",
		"  ...Acme!!  ":   "Acme",
		"ab":              "",
		"?!":              "",
		"":                "",
		"ABC   Corp Sdn.": "ABC Corp Sdn",
		"\"Jane Lim\"":    "Jane Lim",
		"Syarikat Maju, ": "Syarikat Maju",
	}
	for in, want := range cases {
		require.Equal(t, want, heuristicName(in), in)
	}
}

func TestParseChoice(t *testing.T) {
	idx, ok := parseChoice("2", 3)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	idx, ok = parseChoice(" 3 ", 3)
	require.True(t, ok)
	require.Equal(t, 2, idx)

	idx, ok = parseChoice("4", 3)
	require.True(t, ok)
	require.Equal(t, -1, idx)

	idx, ok = parseChoice("99999999999999999999", 3)
	require.True(t, ok)
	require.Equal(t, -1, idx)

	for _, bad := range []string{"", "one", "-1", "+1", "1.5", "1 2"} {
		_, ok = parseChoice(bad, 3)
		require.False(t, ok, bad)
	}
}
