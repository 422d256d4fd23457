package statement

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// postcodePatterns are tried in order; the first match is the postcode.
var postcodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{5}(?:-\d{4})?\b`),
	regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d{1,2}[A-Z]?\s?\d[A-Z]{2}\b`),
	regexp.MustCompile(`(?i)\b\d{5}\b`),
	regexp.MustCompile(`(?i)\b\d{6}\b`),
}

var addressSeparators = regexp.MustCompile(`[,\n]+`)

// AddressParser decomposes a delivery address into three display lines.
type AddressParser struct {
	ai     AddressSplitter
	logger *zap.Logger
}

// NewAddressParser returns a parser. ai may be nil, in which case only the
// deterministic split is used.
func NewAddressParser(ai AddressSplitter, logger *zap.Logger) *AddressParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressParser{ai: ai, logger: logger}
}

// Parse returns (line1, line2, line3). The AI split is accepted when at
// least one line is non-empty; otherwise SplitAddress is used.
func (p *AddressParser) Parse(ctx context.Context, address string) [3]string {
	if strings.TrimSpace(address) == "" {
		return [3]string{}
	}
	if p.ai != nil {
		lines, ok, err := p.ai.SplitAddress(ctx, address)
		switch {
		case err != nil:
			p.logger.Warn("ai address split failed, using pattern split", zap.Error(err))
		case ok:
			for i := range lines {
				lines[i] = strings.TrimSpace(lines[i])
			}
			if lines[0] != "" || lines[1] != "" || lines[2] != "" {
				return lines
			}
		}
	}
	return SplitAddress(address)
}

// SplitAddress is the deterministic address split: line 3 is the first
// postcode found, the rest is split on commas and newlines with everything
// after the first part joined into line 2.
func SplitAddress(address string) [3]string {
	var out [3]string
	rest := address
	for _, re := range postcodePatterns {
		loc := re.FindStringIndex(address)
		if loc == nil {
			continue
		}
		out[2] = strings.TrimSpace(address[loc[0]:loc[1]])
		rest = address[:loc[0]] + address[loc[1]:]
		break
	}

	var parts []string
	for _, p := range addressSeparators.Split(rest, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
	case 1:
		out[0] = parts[0]
	default:
		out[0] = parts[0]
		out[1] = strings.Join(parts[1:], ", ")
	}
	return out
}
