package pcsc

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Card text fields are TIS-620 encoded, padded with spaces and NULs. Windows
// code page 874 is a superset of TIS-620, so its decoder covers every byte
// the card can emit.
func decodeText(data []byte) string {
	decoded, err := charmap.Windows874.NewDecoder().Bytes(data)
	if err != nil {
		// Undecodable bytes degrade to the raw trimmed string rather than
		// failing the whole read.
		return strings.TrimRight(string(data), " \x00")
	}
	return strings.TrimRight(string(decoded), " \x00")
}

func decodeASCII(data []byte) string {
	return strings.TrimRight(string(data), " \x00")
}

// decodeName joins the '#'-separated name components (prefix, first, middle,
// last) with single spaces, dropping empty segments.
func decodeName(data []byte) string {
	parts := strings.Split(decodeText(data), "#")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return strings.Join(fields, " ")
}

// decodeDate hyphenates the card's YYYYMMDD fields (Buddhist-era year, kept
// as stored).
func decodeDate(data []byte) string {
	s := decodeASCII(data)
	if len(s) != 8 {
		return s
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

func decodeGender(data []byte) string {
	switch decodeASCII(data) {
	case "1":
		return "male"
	case "2":
		return "female"
	default:
		return decodeASCII(data)
	}
}
