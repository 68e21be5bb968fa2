package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks common high-risk PII patterns in free text such as
// transcripts and questions.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactText is RedactPII without the changed flag.
func RedactText(input string) string {
	out, _ := RedactPII(input)
	return out
}

// RedactAddress masks a channel address such as "whatsapp:+919812345678",
// keeping the channel prefix and the last four characters so log lines
// for one user stay correlatable.
func RedactAddress(addr string) string {
	prefix, id, ok := strings.Cut(addr, ":")
	if !ok {
		prefix, id = "", addr
	} else {
		prefix += ":"
	}
	r := []rune(id)
	if len(r) <= 4 {
		return prefix + strings.Repeat("*", len(r))
	}
	return prefix + strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
