package nlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritymap/event-intel/internal/domain"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		hint string
		want string
	}{
		{"hint wins", "the flood is here", "bn", "bn"},
		{"english stopwords", "the river is rising near the bridge", "", "en"},
		{"spanish stopwords", "las aguas del río cerca de la ciudad", "", "es"},
		{"devanagari script", "नदी का पानी पुल के पास बढ़ रहा है", "", "hi"},
		{"bengali script", "ব্রহ্মপুত্রের পানি দ্রুত বাড়ছে", "", "bn"},
		{"script beats embedded english", "BREAKING ব্রহ্মপুত্রের পানি বাড়ছে এখনই", "", "bn"},
		{"no signal defaults to english", "xyzzy plugh", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text, tt.hint))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"terminal punctuation", "Water rising fast. Bridge closed! Send help?", []string{"Water rising fast", "Bridge closed", "Send help"}},
		{"newlines split", "first line\nsecond line", []string{"first line", "second line"}},
		{"no terminator", "single span without punctuation", []string{"single span without punctuation"}},
		{"ellipsis", "it keeps raining… nobody knows", []string{"it keeps raining", "nobody knows"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestLexicon_Annotate(t *testing.T) {
	lex := NewLexicon(testIndex(t))
	ctx := context.Background()

	t.Run("classifies category keywords", func(t *testing.T) {
		ann, err := lex.Annotate(ctx, "Flood waters submerged the highway in Assam. Election rally cancelled in Patna.", "")
		require.NoError(t, err)
		require.Len(t, ann.Claims, 2)
		assert.Equal(t, domain.ClaimEnvironmental, ann.Claims[0].Category)
		assert.Equal(t, "Assam", ann.Claims[0].LocationHint)
		assert.Equal(t, domain.ClaimPolitical, ann.Claims[1].Category)
		assert.Equal(t, "Bihar", ann.Claims[1].LocationHint)
	})

	t.Run("report verb without category is other", func(t *testing.T) {
		ann, err := lex.Annotate(ctx, "Officials confirmed the bridge collapsed overnight", "")
		require.NoError(t, err)
		require.Len(t, ann.Claims, 1)
		assert.Equal(t, domain.ClaimOther, ann.Claims[0].Category)
	})

	t.Run("health keywords", func(t *testing.T) {
		ann, err := lex.Annotate(ctx, "Dengue outbreak reported near the hospital", "")
		require.NoError(t, err)
		require.Len(t, ann.Claims, 1)
		assert.Equal(t, domain.ClaimHealth, ann.Claims[0].Category)
	})

	t.Run("non-assertive text yields no claims", func(t *testing.T) {
		ann, err := lex.Annotate(ctx, "what a lovely evening by the river", "")
		require.NoError(t, err)
		assert.Empty(t, ann.Claims)
	})

	t.Run("claim spans are substrings", func(t *testing.T) {
		text := "Flood waters rising near Guwahati. Roads destroyed across the district."
		ann, err := lex.Annotate(ctx, text, "")
		require.NoError(t, err)
		for _, c := range ann.Claims {
			assert.Contains(t, text, c.TextSpan)
		}
	})

	t.Run("detects language", func(t *testing.T) {
		ann, err := lex.Annotate(ctx, "las inundaciones destruyeron el puente cerca de la aldea", "")
		require.NoError(t, err)
		assert.Equal(t, "es", ann.Language)
	})
}

func TestExtractEntities(t *testing.T) {
	regions := testIndex(t)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"capitalized phrase mid-sentence",
			"water levels of the Brahmaputra River are rising",
			[]string{"Brahmaputra River"},
		},
		{
			"sentence-start lone word filtered",
			"Flooding continues in the valley",
			nil,
		},
		{
			"sentence-start region kept",
			"Assam braces for more rain",
			[]string{"Assam"},
		},
		{
			"sentence-start acronym kept",
			"NDRF teams deployed to the district",
			[]string{"NDRF"},
		},
		{
			"hashtags stripped and kept",
			"bridge out near the market #AssamFloods",
			[]string{"AssamFloods"},
		},
		{
			"dedupes case-insensitively",
			"teams reached Majuli today. MAJULI remains cut off.",
			[]string{"Majuli"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractEntities(tt.text, regions))
		})
	}
}
