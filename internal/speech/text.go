package speech

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// speakableText drops markup, links and emoji so the voice reads only
// prose. Line breaks survive; they act as sentence boundaries when chunking.
func speakableText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = speechMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechURLPattern.ReplaceAllString(raw, " ")
	raw = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"\\", " ",
		"|", " ",
		"#", " ",
		"~", " ",
		"`", " ",
		"<", " ",
		">", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case r == '\n':
			b.WriteRune(r)
		case r == '\r' || unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sk):
			continue
		case isSpeechSafePunctuation(r):
			b.WriteRune(r)
		case unicode.IsPunct(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isSpeechSafePunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')', '%', '/', '।', '॥':
		return true
	default:
		return false
	}
}
