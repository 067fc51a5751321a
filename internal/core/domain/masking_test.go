package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMaskType_Valid(t *testing.T) {
	t.Parallel()
	for _, mt := range []MaskType{"", MaskRedact, MaskHash, MaskPartial, MaskNull} {
		assert.True(t, mt.Valid(), "%q", mt)
	}
	for _, mt := range []MaskType{"encrypt", "REDACT", "mask", "sha256"} {
		assert.False(t, mt.Valid(), "%q", mt)
	}
}

func TestApplyMask(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		display string
		mask    MaskType
		want    string
	}{
		{"redact", "'secret@email.com'", MaskRedact, "***"},
		{"redact empty", "", MaskRedact, "***"},
		{"partial keeps last four", "1234567890", MaskPartial, "******7890"},
		{"partial short value", "ab", MaskPartial, "***ab"},
		{"partial exactly four", "abcd", MaskPartial, "***abcd"},
		{"partial five", "ecret", MaskPartial, "*cret"},
		{"partial empty", "", MaskPartial, "***"},
		{"null", "'secret@email.com'", MaskNull, "NULL"},
		{"unknown keeps value", "keep-me", "unknown", "keep-me"},
		{"empty mask keeps value", "keep-me", "", "keep-me"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ApplyMask(tt.display, tt.mask))
		})
	}
}

func TestApplyMask_Hash(t *testing.T) {
	t.Parallel()
	h := ApplyMask("4111111111111111", MaskHash)
	assert.Len(t, h, 64, "hex sha256")
	assert.Equal(t, h, ApplyMask("4111111111111111", MaskHash))
	assert.NotEqual(t, h, ApplyMask("4111111111111112", MaskHash))
	assert.Len(t, ApplyMask("", MaskHash), 64)
}

func TestApplyMask_PartialCountsRunes(t *testing.T) {
	t.Parallel()
	s := ApplyMask("café résumé", MaskPartial)
	assert.Equal(t, "*******sumé", s)
	assert.Equal(t, 11, utf8.RuneCountInString(s))

	long := ApplyMask(strings.Repeat("a", 10_000), MaskPartial)
	assert.Len(t, long, 10_000)
	assert.Equal(t, strings.Repeat("*", 9_996)+"aaaa", long)
}
