package refresh_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/sitebid/authcore/internal/autherrors"
	"github.com/sitebid/authcore/token/refresh"
	"github.com/stretchr/testify/require"
)

var tokenFormat = regexp.MustCompile(`^[0-9a-f]{32}\.[0-9a-f]{64}$`)

func TestGeneratePairFormat(t *testing.T) {
	pair, err := refresh.GeneratePair()
	require.NoError(t, err)

	require.Len(t, pair.Selector, 32)
	require.Len(t, pair.Verifier, 64)
	require.Equal(t, pair.Selector+"."+pair.Verifier, pair.Token)
	require.Regexp(t, tokenFormat, pair.Token)
}

func TestGeneratePairIsUnpredictable(t *testing.T) {
	first, err := refresh.GeneratePair()
	require.NoError(t, err)
	second, err := refresh.GeneratePair()
	require.NoError(t, err)

	require.NotEqual(t, first.Selector, second.Selector)
	require.NotEqual(t, first.Verifier, second.Verifier)
}

func TestParseTokenRoundTrip(t *testing.T) {
	pair, err := refresh.GeneratePair()
	require.NoError(t, err)

	parsed, err := refresh.ParseToken(pair.Token)
	require.NoError(t, err)
	require.Equal(t, pair.Selector, parsed.Selector)
	require.Equal(t, pair.Verifier, parsed.Verifier)
	require.Equal(t, pair.Token, parsed.Token)
}

func TestParseTokenNormalizesCase(t *testing.T) {
	pair, err := refresh.GeneratePair()
	require.NoError(t, err)

	parsed, err := refresh.ParseToken(strings.ToUpper(pair.Selector) + "." + strings.ToUpper(pair.Verifier))
	require.NoError(t, err)
	require.Equal(t, pair.Selector, parsed.Selector)
	require.Equal(t, pair.Verifier, parsed.Verifier)
}

func TestParseTokenRejectsMalformedInput(t *testing.T) {
	valid, err := refresh.GeneratePair()
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no separator", valid.Selector + valid.Verifier},
		{"two separators", valid.Selector + "." + valid.Verifier + ".extra"},
		{"short selector", "short.deadbeef"},
		{"short verifier", valid.Selector + ".deadbeef"},
		{"long selector", valid.Selector + "00." + valid.Verifier},
		{"long verifier", valid.Selector + "." + valid.Verifier + "00"},
		{"non-hex selector", strings.Repeat("g", 32) + "." + valid.Verifier},
		{"non-hex verifier", valid.Selector + "." + strings.Repeat("z", 64)},
		{"whitespace", " " + valid.Token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := refresh.ParseToken(tt.raw)
			require.Nil(t, pair)
			require.ErrorIs(t, err, autherrors.ErrTokenMalformed)
		})
	}
}
