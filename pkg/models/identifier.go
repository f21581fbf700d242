package models

import (
	"strings"
	"unicode"
)

// SanitizeIdentifier maps s onto the [A-Za-z_][A-Za-z0-9_]* alphabet of the
// generated module. Runs of invalid characters collapse into one underscore.
func SanitizeIdentifier(s string) string {
	var b strings.Builder

	lastUnderscore := false

	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)

			lastUnderscore = false

			continue
		}

		if !lastUnderscore {
			b.WriteByte('_')

			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "_"
	}

	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}

	return out
}

// PascalCase converts an arbitrary identifier such as "order-sync_v2" into
// "OrderSyncV2".
func PascalCase(s string) string {
	var b strings.Builder

	upper := true

	for _, r := range s {
		if r >= unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			upper = true

			continue
		}

		if upper {
			b.WriteRune(unicode.ToUpper(r))

			upper = false
		} else {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "W" + out
	}

	return out
}
