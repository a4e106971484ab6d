package nlp

import "strings"

// Stopword sets for Latin-script voting. Small on purpose: the goal is
// telling English from Spanish in short event text, not general language ID.
var (
	englishStopwords = map[string]struct{}{
		"the": {}, "is": {}, "are": {}, "was": {}, "has": {}, "have": {},
		"in": {}, "on": {}, "at": {}, "of": {}, "and": {}, "near": {},
		"after": {}, "with": {}, "from": {}, "this": {}, "that": {},
	}
	spanishStopwords = map[string]struct{}{
		"el": {}, "la": {}, "los": {}, "las": {}, "es": {}, "son": {},
		"en": {}, "de": {}, "del": {}, "por": {}, "con": {}, "una": {},
		"cerca": {}, "después": {}, "tras": {}, "este": {}, "esta": {},
	}
)

// DetectLanguage guesses the dominant language of short event text. An
// explicit hint wins. Devanagari and Bengali script presence decide hi/bn;
// Latin text is settled by stopword voting with English as the tie-break,
// matching the dominant share of the intake.
func DetectLanguage(text, hint string) string {
	if hint != "" {
		return hint
	}
	var devanagari, bengali int
	for _, r := range text {
		switch {
		case r >= 0x0900 && r <= 0x097F:
			devanagari++
		case r >= 0x0980 && r <= 0x09FF:
			bengali++
		}
	}
	// A handful of script runes is already decisive; transliterated tails
	// and embedded hashtags do not outweigh them.
	if devanagari >= 3 || bengali >= 3 {
		if bengali > devanagari {
			return "bn"
		}
		return "hi"
	}
	var en, es int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if _, ok := englishStopwords[w]; ok {
			en++
		}
		if _, ok := spanishStopwords[w]; ok {
			es++
		}
	}
	if es > en {
		return "es"
	}
	return "en"
}
