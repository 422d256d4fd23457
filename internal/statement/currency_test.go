package statement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sr-chatbot/internal/domain"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]domain.Amount{
		"":            0,
		"abc":         0,
		"100":         10000,
		"100.5":       10050,
		"RM 1,234.56": 123456,
		"rm1234.56":   123456,
		"RM -50.00":   -5000,
		"-RM 50":      -5000,
		"(12.50)":     -1250,
		" 1 000.10 ":  100010,
		"0.005":       1,
		"RM":          0,
		"NaN":         0,
		"1e17":        0,
		"-1e17":       0,
		"(1e300)":     0,
		"9e16":        9000000000000000000,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseAmount(in), in)
	}
}

func TestParsePoints(t *testing.T) {
	require.Equal(t, 2.5, parsePoints("2.5"))
	require.Equal(t, 1000.0, parsePoints("1,000"))
	require.Zero(t, parsePoints("n/a"))
}
