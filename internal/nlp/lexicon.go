package nlp

import (
	"context"
	"strings"
	"unicode"

	"github.com/veritymap/event-intel/internal/domain"
)

// Category keyword sets for the fallback extractor. Matching is per-token
// after lowercasing, so inflections must be listed explicitly.
var categoryKeywords = map[domain.ClaimCategory]map[string]struct{}{
	domain.ClaimEnvironmental: toSet(
		"flood", "floods", "flooding", "deluge", "monsoon", "rainfall", "rain",
		"earthquake", "quake", "tremor", "cyclone", "storm", "landslide",
		"drought", "fire", "wildfire", "heatwave", "tsunami", "erosion",
		"embankment", "submerged",
	),
	domain.ClaimPolitical: toSet(
		"election", "elections", "minister", "government", "parliament",
		"protest", "protests", "rally", "curfew", "strike", "coup", "vote",
		"opposition", "resignation", "bandh",
	),
	domain.ClaimHealth: toSet(
		"outbreak", "virus", "disease", "hospital", "hospitals", "vaccine",
		"infection", "epidemic", "cholera", "dengue", "malaria", "fever",
		"quarantine",
	),
}

// reportVerbs mark a sentence as asserting something, which qualifies it as a
// claim even without a category keyword.
var reportVerbs = toSet(
	"reported", "confirmed", "announced", "says", "said", "claims", "claimed",
	"killed", "injured", "destroyed", "collapsed", "evacuated", "stranded",
	"rescued", "declared", "warns", "warned", "spotted",
)

func toSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// categoryOrder fixes tie-breaking between equal keyword votes.
var categoryOrder = []domain.ClaimCategory{
	domain.ClaimEnvironmental,
	domain.ClaimPolitical,
	domain.ClaimHealth,
}

// SplitSentences cuts text at terminal punctuation and newlines. Spans are
// returned verbatim so claim text stays a substring of the original.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', '…', '\n':
			if s := strings.TrimSpace(text[start:i]); s != "" {
				out = append(out, s)
			}
			start = i + len(string(r))
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// Lexicon is the keyword fallback extractor. It implements Model so the
// extractor can swap it in transparently when the remote backend is down or
// none is configured.
type Lexicon struct {
	regions *RegionIndex
}

// NewLexicon builds the fallback extractor over the given region index.
func NewLexicon(regions *RegionIndex) *Lexicon {
	return &Lexicon{regions: regions}
}

// Annotate extracts claims and entities by keyword lookup. It never fails;
// text with no claim-like sentences yields an empty claim list.
func (l *Lexicon) Annotate(_ context.Context, text, languageHint string) (Annotation, error) {
	ann := Annotation{
		Language: DetectLanguage(text, languageHint),
		Entities: extractEntities(text, l.regions),
	}
	for _, sentence := range SplitSentences(text) {
		if claim, ok := l.classify(sentence); ok {
			ann.Claims = append(ann.Claims, claim)
		}
	}
	return ann, nil
}

// classify decides whether a sentence asserts something and buckets it.
func (l *Lexicon) classify(sentence string) (domain.Claim, bool) {
	words := tokenize(sentence)
	votes := map[domain.ClaimCategory]int{}
	asserts := false
	for _, w := range words {
		for cat, set := range categoryKeywords {
			if _, ok := set[w]; ok {
				votes[cat]++
			}
		}
		if _, ok := reportVerbs[w]; ok {
			asserts = true
		}
	}
	best := domain.ClaimOther
	bestVotes := 0
	for _, cat := range categoryOrder {
		if votes[cat] > bestVotes {
			best, bestVotes = cat, votes[cat]
		}
	}
	if bestVotes == 0 && !asserts {
		return domain.Claim{}, false
	}
	claim := domain.Claim{TextSpan: sentence, Category: best}
	if region, ok := l.regions.ScanText(sentence); ok {
		claim.LocationHint = region.Name
	}
	return claim, true
}

// extractEntities pulls capitalized phrases and hashtags out of the text.
// Heuristic, not NER: a lone capitalized word at sentence start only counts
// when the region lexicon knows it, which filters ordinary sentence case.
func extractEntities(text string, regions *RegionIndex) []string {
	var entities []string
	seen := map[string]struct{}{}
	add := func(e string) {
		key := strings.ToLower(e)
		if _, dup := seen[key]; dup || e == "" {
			return
		}
		seen[key] = struct{}{}
		entities = append(entities, e)
	}

	for _, sentence := range SplitSentences(text) {
		words := strings.Fields(sentence)
		var run []string
		runStart := -1
		flush := func() {
			if len(run) == 0 {
				return
			}
			phrase := strings.Join(run, " ")
			atStart := runStart == 0
			run, runStart = nil, -1
			if atStart && !multiWordOrKnown(phrase, regions) {
				return
			}
			add(phrase)
		}
		for i, w := range words {
			if h, ok := hashtag(w); ok {
				flush()
				add(h)
				continue
			}
			trimmed := strings.Trim(w, ".,;:!?\"'()[]")
			if isCapitalized(trimmed) {
				if len(run) == 0 {
					runStart = i
				}
				run = append(run, trimmed)
				continue
			}
			flush()
		}
		flush()
	}
	return entities
}

// multiWordOrKnown accepts multi-word phrases, acronyms, and region aliases.
func multiWordOrKnown(phrase string, regions *RegionIndex) bool {
	if strings.Contains(phrase, " ") {
		return true
	}
	if phrase == strings.ToUpper(phrase) && len(phrase) > 1 {
		return true
	}
	_, known := regions.Lookup(phrase)
	return known
}

func hashtag(w string) (string, bool) {
	if !strings.HasPrefix(w, "#") {
		return "", false
	}
	tag := strings.Trim(w[1:], ".,;:!?\"'()[]")
	if len(tag) < 3 {
		return "", false
	}
	return tag, true
}

func isCapitalized(w string) bool {
	if w == "" {
		return false
	}
	r := []rune(w)[0]
	return unicode.IsUpper(r)
}
