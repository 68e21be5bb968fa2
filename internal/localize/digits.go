package localize

import (
	"strings"

	"github.com/swaasthya/saathi/internal/language"
)

var (
	devanagariDigits = [10]rune{'०', '१', '२', '३', '४', '५', '६', '७', '८', '९'}
	bengaliDigits    = [10]rune{'০', '১', '২', '৩', '৪', '৫', '৬', '৭', '৮', '৯'}
	gujaratiDigits   = [10]rune{'૦', '૧', '૨', '૩', '૪', '૫', '૬', '૭', '૮', '૯'}
	gurmukhiDigits   = [10]rune{'੦', '੧', '੨', '੩', '੪', '੫', '੬', '੭', '੮', '੯'}
	odiaDigits       = [10]rune{'୦', '୧', '୨', '୩', '୪', '୫', '୬', '୭', '୮', '୯'}
	tamilDigits      = [10]rune{'௦', '௧', '௨', '௩', '௪', '௫', '௬', '௭', '௮', '௯'}
	teluguDigits     = [10]rune{'౦', '౧', '౨', '౩', '౪', '౫', '౬', '౭', '౮', '౯'}
	kannadaDigits    = [10]rune{'೦', '೧', '೨', '೩', '೪', '೫', '೬', '೭', '೮', '೯'}
	malayalamDigits  = [10]rune{'൦', '൧', '൨', '൩', '൪', '൫', '൬', '൭', '൮', '൯'}
)

var digitScripts = map[string]*[10]rune{
	"hi": &devanagariDigits,
	"mr": &devanagariDigits,
	"ne": &devanagariDigits,
	"bn": &bengaliDigits,
	"gu": &gujaratiDigits,
	"pa": &gurmukhiDigits,
	"or": &odiaDigits,
	"ta": &tamilDigits,
	"te": &teluguDigits,
	"kn": &kannadaDigits,
	"ml": &malayalamDigits,
}

// HasNativeDigits reports whether lang has a native numeral table.
func HasNativeDigits(lang string) bool {
	_, ok := digitScripts[language.BaseCode(lang)]
	return ok
}

// ConvertDigitsToNative maps ASCII 0-9 to the native numerals of lang.
// Languages without a table are returned unchanged.
func ConvertDigitsToNative(text, lang string) string {
	table, ok := digitScripts[language.BaseCode(lang)]
	if !ok || !strings.ContainsAny(text, "0123456789") {
		return text
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return table[r-'0']
		}
		return r
	}, text)
}
