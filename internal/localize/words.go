package localize

import (
	"math"
	"strings"

	"github.com/swaasthya/saathi/internal/language"
)

var hindiUnits = [20]string{
	"शून्य", "एक", "दो", "तीन", "चार", "पाँच", "छह", "सात", "आठ", "नौ",
	"दस", "ग्यारह", "बारह", "तेरह", "चौदह", "पंद्रह", "सोलह", "सत्रह", "अठारह", "उन्नीस",
}

// Hindi numbers 20-99 do not compose regularly from tens and units.
var hindiTwentyToNinetyNine = [80]string{
	"बीस", "इक्कीस", "बाईस", "तेईस", "चौबीस", "पच्चीस", "छब्बीस", "सत्ताईस", "अट्ठाईस", "उनतीस",
	"तीस", "इकतीस", "बत्तीस", "तैंतीस", "चौंतीस", "पैंतीस", "छत्तीस", "सैंतीस", "अड़तीस", "उनतालीस",
	"चालीस", "इकतालीस", "बयालीस", "तैंतालीस", "चवालीस", "पैंतालीस", "छियालीस", "सैंतालीस", "अड़तालीस", "उनचास",
	"पचास", "इक्यावन", "बावन", "तिरपन", "चौवन", "पचपन", "छप्पन", "सत्तावन", "अट्ठावन", "उनसठ",
	"साठ", "इकसठ", "बासठ", "तिरसठ", "चौंसठ", "पैंसठ", "छियासठ", "सड़सठ", "अड़सठ", "उनहत्तर",
	"सत्तर", "इकहत्तर", "बहत्तर", "तिहत्तर", "चौहत्तर", "पचहत्तर", "छिहत्तर", "सतहत्तर", "अठहत्तर", "उन्यासी",
	"अस्सी", "इक्यासी", "बयासी", "तिरासी", "चौरासी", "पचासी", "छियासी", "सतासी", "अठासी", "नवासी",
	"नब्बे", "इक्यानवे", "बानवे", "तिरानवे", "चौरानवे", "पचानवे", "छियानवे", "सत्तानवे", "अट्ठानवे", "निन्यानवे",
}

const (
	hindiHundred  = "सौ"
	hindiThousand = "हज़ार"
	hindiLakh     = "लाख"
	hindiCrore    = "करोड़"
	hindiPoint    = "दशमलव"
	hindiMinus    = "ऋण"
)

// Dosage units that may be written directly after a number ("500mg").
var dosageUnits = map[string]bool{
	"mg": true, "mcg": true, "ml": true, "g": true, "gm": true,
	"kg": true, "iu": true, "l": true,
}

// HindiIntegerWords spells n using the Indian numbering system.
func HindiIntegerWords(n int64) string {
	if n < 0 {
		return hindiMinus + " " + HindiIntegerWords(-n)
	}
	if n < 20 {
		return hindiUnits[n]
	}
	if n < 100 {
		return hindiTwentyToNinetyNine[n-20]
	}
	if n < 1000 {
		words := hindiUnits[n/100] + " " + hindiHundred
		if rem := n % 100; rem != 0 {
			words += " " + HindiIntegerWords(rem)
		}
		return words
	}

	var parts []string
	for _, scale := range []struct {
		size int64
		name string
	}{
		{10000000, hindiCrore},
		{100000, hindiLakh},
		{1000, hindiThousand},
		{100, hindiHundred},
	} {
		if q := n / scale.size; q != 0 {
			parts = append(parts, HindiIntegerWords(q)+" "+scale.name)
			n %= scale.size
		}
	}
	if n != 0 {
		parts = append(parts, HindiIntegerWords(n))
	}
	return strings.Join(parts, " ")
}

// NumberToWords spells out embedded numerals for Hindi. ASCII and Devanagari
// digits are both recognized. Other languages are returned unchanged.
func NumberToWords(text, lang string) string {
	if language.BaseCode(lang) != "hi" || !containsDigit(text) {
		return text
	}

	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text) * 2)

	i := 0
	for i < len(runes) {
		r := runes[i]
		start := i
		negative := r == '-' && i+1 < len(runes) && isDigit(runes[i+1]) && (i == 0 || isSpace(runes[i-1]))
		if !negative && (!isDigit(r) || (i > 0 && isWordRune(runes[i-1]))) {
			b.WriteRune(r)
			i++
			continue
		}
		if negative {
			i++
		}

		num, end := scanNumber(runes, i)
		unit, unitEnd := scanUnit(runes, end)
		switch {
		case unit == "" && end < len(runes) && isWordRune(runes[end]),
			end+1 < len(runes) && (runes[end] == '.' || runes[end] == ',') && isDigit(runes[end+1]),
			!num.ok:
			// Part of a larger token (identifier, version string, overflow): keep verbatim.
			j := end
			for j < len(runes) && (isWordRune(runes[j]) || ((runes[j] == '.' || runes[j] == ',') && j+1 < len(runes) && isDigit(runes[j+1]))) {
				j++
			}
			b.WriteString(string(runes[start:j]))
			i = j
			continue
		}

		words := num.words()
		if negative {
			words = hindiMinus + " " + words
		}
		b.WriteString(words)
		if unit != "" {
			b.WriteByte(' ')
			b.WriteString(unit)
			end = unitEnd
		}
		i = end
	}
	return b.String()
}

type scannedNumber struct {
	integer  int64
	fraction []int
	ok       bool
}

func (n scannedNumber) words() string {
	words := HindiIntegerWords(n.integer)
	if len(n.fraction) == 0 {
		return words
	}
	parts := make([]string, 0, len(n.fraction)+2)
	parts = append(parts, words, hindiPoint)
	for _, d := range n.fraction {
		parts = append(parts, hindiUnits[d])
	}
	return strings.Join(parts, " ")
}

// scanNumber reads digits with optional grouping commas and one decimal point.
func scanNumber(runes []rune, i int) (scannedNumber, int) {
	n := scannedNumber{ok: true}
	for i < len(runes) {
		r := runes[i]
		if isDigit(r) {
			d := int64(digitValue(r))
			if n.integer > (math.MaxInt64-d)/10 {
				n.ok = false
			} else {
				n.integer = n.integer*10 + d
			}
			i++
			continue
		}
		if r == ',' && i+1 < len(runes) && isDigit(runes[i+1]) && i > 0 && isDigit(runes[i-1]) {
			i++
			continue
		}
		break
	}
	if i+1 < len(runes) && runes[i] == '.' && isDigit(runes[i+1]) {
		i++
		for i < len(runes) && isDigit(runes[i]) {
			n.fraction = append(n.fraction, digitValue(runes[i]))
			i++
		}
	}
	return n, i
}

// scanUnit matches a dosage unit glued to the number and not followed by more letters.
func scanUnit(runes []rune, i int) (string, int) {
	j := i
	for j < len(runes) && isASCIILetter(runes[j]) {
		j++
	}
	if j == i || (j < len(runes) && isWordRune(runes[j])) {
		return "", i
	}
	unit := string(runes[i:j])
	if !dosageUnits[strings.ToLower(unit)] {
		return "", i
	}
	return unit, j
}

func containsDigit(s string) bool {
	for _, r := range s {
		if isDigit(r) {
			return true
		}
	}
	return false
}

func isDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= '०' && r <= '९')
}

func digitValue(r rune) int {
	if r >= '०' && r <= '९' {
		return int(r - '०')
	}
	return int(r - '0')
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isWordRune(r rune) bool {
	return isASCIILetter(r) || isDigit(r) || r == '_'
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\u00a0':
		return true
	}
	return false
}

// Localize prepares text for speech: numbers are spelled out first, then any
// remaining ASCII digits are rendered in the native script.
func Localize(text, lang string) string {
	return ConvertDigitsToNative(NumberToWords(text, lang), lang)
}
