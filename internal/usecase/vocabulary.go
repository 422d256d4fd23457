package usecase

import (
	"strings"
	"unicode"
)

var greetingTokens = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "start": {}, "begin": {}, "restart": {},
}

var terminationWords = map[string]struct{}{
	"no": {}, "end": {}, "stop": {}, "quit": {}, "exit": {}, "bye": {},
}

var startOverPhrases = map[string]struct{}{
	"start over": {}, "restart": {}, "start again": {}, "reset": {},
}

var scopeAllTokens = map[string]struct{}{
	"all": {}, "every": {}, "everything": {}, "multiple": {},
}

var scopeOneTokens = map[string]struct{}{
	"one": {}, "single": {}, "specific": {}, "1": {},
}

func tokens(msg string) []string {
	return strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasToken(msg string, set map[string]struct{}) bool {
	for _, t := range tokens(msg) {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func isGreeting(msg string) bool {
	return hasToken(msg, greetingTokens)
}

func isTermination(msg string) bool {
	m := strings.ToLower(strings.TrimSpace(msg))
	if _, ok := terminationWords[m]; ok {
		return true
	}
	return strings.Contains(m, "no thank")
}

// isStartOver accepts the exact phrases plus typo-tolerant variants such
// as "start ove".
func isStartOver(msg string) bool {
	m := strings.ToLower(strings.TrimSpace(msg))
	if _, ok := startOverPhrases[m]; ok {
		return true
	}
	if strings.Contains(m, "start") && (strings.Contains(m, "ove") || strings.Contains(m, "again")) {
		return true
	}
	return strings.Contains(m, "restart") || strings.Contains(m, "reset")
}

func isCancel(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "cancel") || strings.Contains(m, "none") || strings.Contains(m, "nothing")
}

func wantsContractReport(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "contract") && strings.Contains(m, "report")
}

func wantsAccountStatement(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "account") || strings.Contains(m, "statement") || strings.Contains(m, "soa")
}

// keywordScope is the deterministic classifier used when the extractor
// has no answer.
func keywordScope(msg string) (all, one bool) {
	return hasToken(msg, scopeAllTokens), hasToken(msg, scopeOneTokens)
}
