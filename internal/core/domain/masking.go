package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaskType represents a bind masking strategy.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid returns true if the MaskType is a recognised masking strategy
// (including the zero value "", which means "no mask").
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// ApplyMask transforms a bind's display value according to the mask type.
// MaskNull renders as the literal NULL, so a masked value looks like a bind
// that was never supplied. Unknown or empty mask types leave the value as is.
func ApplyMask(display string, maskType MaskType) string {
	switch maskType {
	case MaskRedact:
		return "***"
	case MaskHash:
		h := sha256.Sum256([]byte(display))
		return hex.EncodeToString(h[:])
	case MaskPartial:
		return maskPartial(display)
	case MaskNull:
		return "NULL"
	default:
		return display
	}
}

// maskPartial keeps the last four runes and stars out the rest. Values of
// four runes or fewer are prefixed instead, so the mask is still visible.
func maskPartial(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***" + s
	}
	keep := len(runes) - 4
	return strings.Repeat("*", keep) + string(runes[keep:])
}
