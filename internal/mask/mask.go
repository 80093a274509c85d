// Package mask holds the deterministic masking transforms applied to
// classified field values. Each transform is a pure function from the
// original string to its masked form; transforms are registered by id and
// looked up by the mask id a field rule names.
package mask

import "strings"

// Sentinel values for transforms that discard the whole original value.
const (
	RedactedEmail   = "[REDACTED_EMAIL]"
	RedactedAddress = "[REDACTED_ADDRESS]"
	RedactedIP      = "[REDACTED_IP]"
)

// Func transforms an original value into its masked form.
type Func func(value string) string

// transforms maps mask ids (as referenced by field rules) to their
// implementation.
var transforms = map[string]Func{
	"phone":    Phone,
	"aadhar":   Aadhar,
	"passport": Passport,
	"upi":      UPI,
	"name":     Name,
	"email":    Email,
	"address":  Address,
	"ip":       IP,
}

// Lookup returns the transform registered under id, or nil if none exists.
func Lookup(id string) Func {
	return transforms[id]
}

// IDs returns the registered mask ids, for config validation.
func IDs() []string {
	ids := make([]string, 0, len(transforms))
	for id := range transforms {
		ids = append(ids, id)
	}
	return ids
}

// prefix returns up to the first n characters of s.
func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// suffix returns up to the last n characters of s.
func suffix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[len(s)-n:]
}

// Phone keeps the first two and last two characters and replaces the
// middle with a fixed six-character block.
func Phone(value string) string {
	return prefix(value, 2) + "XXXXXX" + suffix(value, 2)
}

// Aadhar keeps the first four and last four digits: "1234 XXXX XXXX 9012".
func Aadhar(value string) string {
	return prefix(value, 4) + " XXXX XXXX " + suffix(value, 4)
}

// Passport keeps the leading letter and blanks the remaining seven characters.
func Passport(value string) string {
	return prefix(value, 1) + "XXXXXXX"
}

// UPI keeps the first two characters of the handle; the original provider
// domain is discarded.
func UPI(value string) string {
	return prefix(value, 2) + "XXX@upi"
}

// Name keeps the first character of each multi-character token and appends
// a fixed block; single-character tokens pass through. Tokens are rejoined
// with single spaces.
func Name(value string) string {
	tokens := strings.Fields(value)
	masked := make([]string, len(tokens))
	for i, tok := range tokens {
		if len(tok) > 1 {
			masked[i] = tok[:1] + "XXX"
		} else {
			masked[i] = tok
		}
	}
	return strings.Join(masked, " ")
}

// Email keeps the first two characters of the local part and the full
// domain. Values that do not split into exactly two "@"-delimited parts
// are replaced wholesale with the RedactedEmail sentinel.
func Email(value string) string {
	parts := strings.Split(value, "@")
	if len(parts) != 2 {
		return RedactedEmail
	}
	return prefix(parts[0], 2) + "XXX@" + parts[1]
}

// Address discards the whole value.
func Address(string) string {
	return RedactedAddress
}

// IP discards the whole value.
func IP(string) string {
	return RedactedIP
}
