package common

import (
	"golang.org/x/text/unicode/norm"

	coreerrors "limitlesswork/core/errors"
)

// NormalizeText returns s in Unicode NFC so that byte-length bounds and
// uniqueness checks agree for canonically equivalent input.
func NormalizeText(s string) string { return norm.NFC.String(s) }

// BoundedText normalises s and rejects it with errTooLong when it exceeds max
// bytes.
func BoundedText(s string, max int, errTooLong *coreerrors.Error) (string, error) {
	normalized := NormalizeText(s)
	if len(normalized) > max {
		return "", errTooLong.Withf("%d bytes, limit %d", len(normalized), max)
	}
	return normalized, nil
}
