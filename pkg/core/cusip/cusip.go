// Package cusip canonicalizes the security identifier column of 13F holdings tables.
//
// Filings render the CUSIP in several shapes: the 9-character code ("459200101"),
// an 8-character issuer+issue code ("45920010"), or an issuer code followed by the
// issue/check digits after a space ("459200 10 1", "12345 67"). All of them are mapped
// onto the 8-character form used by the registrant lookup table.
package cusip

import "strings"

const (
	// IssuerLen is the width of the issuer part of a canonical code.
	IssuerLen = 6
	// CanonicalLen is the width of a normalized code (issuer + issue digits).
	CanonicalLen = 8
)

// Normalize returns the canonical 8-character code for a raw identifier cell.
//
// It never fails: a value that does not look like any known shape is returned
// trimmed (and truncated to 8 characters when it has no inner whitespace).
func Normalize(raw string) string {
	value := strings.TrimSpace(raw)

	if strings.ContainsAny(value, " \t") {
		parts := strings.Fields(value)
		if len(parts) < 2 {
			return value
		}
		base := parts[0]
		suffix := parts[1]
		if len(suffix) > 2 {
			suffix = suffix[:2]
		}
		// Leading zeros are sometimes dropped from the issuer code.
		if len(base) == IssuerLen-1 {
			base = "0" + base
		}
		return base + suffix
	}

	if len(value) > CanonicalLen {
		return value[:CanonicalLen]
	}
	return value
}

// Issuer returns the 6-character issuer prefix of a normalized code, or the
// whole code when it is shorter.
func Issuer(code string) string {
	if len(code) > IssuerLen {
		return code[:IssuerLen]
	}
	return code
}
