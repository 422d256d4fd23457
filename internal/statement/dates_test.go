package statement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2023-03":    "01/03/2023",
		"2023-3":     "01/03/2023",
		" 2023-11 ":  "01/11/2023",
		"15/03/2023": "15/03/2023",
		"2023-03-15": "2023-03-15",
		"":           "",
		"Mar 2023":   "Mar 2023",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeDate(in), in)
	}
}

func TestNormalizeDate_Idempotent(t *testing.T) {
	for _, in := range []string{"2023-03", "2023-3", "01/03/2023", "garbage", "", "2024-12-31"} {
		once := NormalizeDate(in)
		require.Equal(t, once, NormalizeDate(once), in)
	}
}

func TestDateBefore(t *testing.T) {
	require.True(t, dateBefore("01/01/2023", "01/02/2023"))
	require.False(t, dateBefore("01/02/2023", "01/01/2023"))
	require.True(t, dateBefore("n/a", "01/01/2023"))
	require.False(t, dateBefore("01/01/2023", "n/a"))
	require.False(t, dateBefore("x", "y"))
	require.True(t, dateBefore("2023-01-31", "01/02/2023"))
}
