package language

import (
	"fmt"
	"strings"
)

// Language describes one selectable conversation language.
type Language struct {
	Index       int    `json:"index"`
	Code        string `json:"code"`
	SpeechCode  string `json:"speech_code"`
	Label       string `json:"label"`
	NativeLabel string `json:"native_label"`
}

var supported = []Language{
	{Index: 1, Code: "hi", SpeechCode: "hi-IN", Label: "Hindi", NativeLabel: "हिंदी"},
	{Index: 2, Code: "en", SpeechCode: "en-IN", Label: "English", NativeLabel: "English"},
	{Index: 3, Code: "bn", SpeechCode: "bn-IN", Label: "Bengali", NativeLabel: "বাংলা"},
	{Index: 4, Code: "ta", SpeechCode: "ta-IN", Label: "Tamil", NativeLabel: "தமிழ்"},
	{Index: 5, Code: "te", SpeechCode: "te-IN", Label: "Telugu", NativeLabel: "తెలుగు"},
	{Index: 6, Code: "kn", SpeechCode: "kn-IN", Label: "Kannada", NativeLabel: "ಕನ್ನಡ"},
	{Index: 7, Code: "ml", SpeechCode: "ml-IN", Label: "Malayalam", NativeLabel: "മലയാളം"},
	{Index: 8, Code: "mr", SpeechCode: "mr-IN", Label: "Marathi", NativeLabel: "मराठी"},
	{Index: 9, Code: "gu", SpeechCode: "gu-IN", Label: "Gujarati", NativeLabel: "ગુજરાતી"},
}

// All returns the supported languages in menu order.
func All() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Default is the language used before the user picks one.
func Default() Language {
	return supported[1]
}

// IsZero reports whether no language has been chosen.
func (l Language) IsZero() bool {
	return l.Code == ""
}

// ByIndex resolves a menu reply that is exactly one digit such as "5".
// Surrounding whitespace is ignored; "05" and "+5" are rejected.
func ByIndex(reply string) (Language, bool) {
	reply = strings.TrimSpace(reply)
	if len(reply) != 1 || reply[0] < '1' || reply[0] > '9' {
		return Language{}, false
	}
	n := int(reply[0] - '0')
	if n > len(supported) {
		return Language{}, false
	}
	return supported[n-1], true
}

// ByCode accepts either a base code ("hi") or a locale code ("hi-IN").
func ByCode(code string) (Language, bool) {
	base := BaseCode(code)
	for _, l := range supported {
		if l.Code == base {
			return l, true
		}
	}
	return Language{}, false
}

// BaseCode lowercases a language tag and drops any region suffix.
func BaseCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}

// MenuText is the chat menu listing every language by native label.
func MenuText() string {
	var b strings.Builder
	b.WriteString("🗣️ In which language would you like to hear the summary?\n")
	for _, l := range supported {
		fmt.Fprintf(&b, "%d. %s\n", l.Index, l.NativeLabel)
	}
	fmt.Fprintf(&b, "\n👉 Reply with the number (1–%d).\n\n", len(supported))
	b.WriteString(`💡 Tip: Type "LINK" or "🔗" anytime to access your health dashboard!`)
	return b.String()
}

// MenuSpeech is the spoken form of the menu.
func MenuSpeech() string {
	var b strings.Builder
	for _, l := range supported {
		fmt.Fprintf(&b, "%d %s\n", l.Index, l.Label)
	}
	b.WriteString("\nPlease send the number of your preferred language.")
	return b.String()
}

// MenuSpeechLanguage is the voice the spoken menu is rendered in.
func MenuSpeechLanguage() Language {
	return supported[0]
}
