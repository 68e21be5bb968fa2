package localize

import (
	"regexp"
	"strings"
)

var (
	markupCharsPattern   = regexp.MustCompile("[*_~`|]")
	emphasisCharsPattern = regexp.MustCompile("[*_~`]")
	leadingBulletPattern = regexp.MustCompile(`(?m)^[\-*•]+\s+`)
	blankRunPattern      = regexp.MustCompile(`[\t ]+`)
	spaceBeforeNewline   = regexp.MustCompile(`\s+\n`)
	spaceAfterNewline    = regexp.MustCompile(`\n\s+`)
)

// SanitizePlainText strips markdown emphasis, table pipes and leading bullet
// markers, and collapses redundant whitespace while keeping line breaks.
func SanitizePlainText(input string) string {
	if input == "" {
		return ""
	}
	text := markupCharsPattern.ReplaceAllString(input, "")
	text = blankRunPattern.ReplaceAllString(text, " ")
	text = spaceBeforeNewline.ReplaceAllString(text, "\n")
	text = spaceAfterNewline.ReplaceAllString(text, "\n")
	text = leadingBulletPattern.ReplaceAllString(strings.TrimSpace(text), "")
	return strings.TrimSpace(text)
}

// StripEmphasis removes emphasis characters only.
func StripEmphasis(input string) string {
	return strings.TrimSpace(emphasisCharsPattern.ReplaceAllString(input, ""))
}
