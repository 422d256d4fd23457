package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsGreeting(t *testing.T) {
	for _, m := range []string{"Hi", "hello there", "Hey!", "restart please", "let's begin"} {
		require.True(t, isGreeting(m), m)
	}
	for _, m := range []string{"", "Acme", "this", "history"} {
		require.False(t, isGreeting(m), m)
	}
}

func TestIsTermination(t *testing.T) {
	for _, m := range []string{"no", " Bye ", "EXIT", "no thanks", "ok no thank you"} {
		require.True(t, isTermination(m), m)
	}
	for _, m := range []string{"nope", "not now", "Nobody", "ending soon"} {
		require.False(t, isTermination(m), m)
	}
}

func TestIsStartOver(t *testing.T) {
	for _, m := range []string{"Start Over", "start again", "reset", "please restart", "start ove", "START OVER NOW"} {
		require.True(t, isStartOver(m), m)
	}
	for _, m := range []string{"start", "over", "SR0001", "Acme Rentals"} {
		require.False(t, isStartOver(m), m)
	}
}

func TestDocumentKeywords(t *testing.T) {
	require.True(t, wantsContractReport("Contract REPORT"))
	require.False(t, wantsContractReport("contract"))
	require.True(t, wantsAccountStatement("my account"))
	require.True(t, wantsAccountStatement("SOA please"))
	require.False(t, wantsAccountStatement("report"))
}

func TestKeywordScope(t *testing.T) {
	all, one := keywordScope("All contracts")
	require.True(t, all)
	require.False(t, one)

	all, one = keywordScope("only 1")
	require.False(t, all)
	require.True(t, one)

	all, one = keywordScope("my phone")
	require.False(t, all)
	require.False(t, one)
}
