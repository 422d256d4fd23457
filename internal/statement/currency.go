package statement

import (
	"math"
	"strconv"
	"strings"

	"sr-chatbot/internal/domain"
)

// ParseAmount parses a currency cell tolerantly. It strips the currency
// prefix, thousands separators and surrounding whitespace, and accepts
// accounting negatives such as "(12.50)". Anything else, including values
// too large to hold in cents, yields 0.
func ParseAmount(raw string) domain.Amount {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimSpace(s[1:])
	}
	if len(s) >= len(domain.CurrencyPrefix) && strings.EqualFold(s[:len(domain.CurrencyPrefix)], domain.CurrencyPrefix) {
		s = strings.TrimSpace(s[len(domain.CurrencyPrefix):])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimSpace(s[1:])
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	c := math.Round(v * 100)
	if math.Abs(c) >= float64(math.MaxInt64) {
		return 0
	}
	cents := domain.Amount(c)
	if neg {
		return -cents
	}
	return cents
}

// parsePoints parses a loyalty-point cell; non-numeric values yield 0.
func parsePoints(raw string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
