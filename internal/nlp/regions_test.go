package nlp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *RegionIndex {
	t.Helper()
	x, err := NewRegionIndex(DefaultRegions(), 0)
	require.NoError(t, err)
	return x
}

func TestNewRegionIndex(t *testing.T) {
	t.Run("rejects empty lexicon", func(t *testing.T) {
		_, err := NewRegionIndex(nil, 0)
		assert.Error(t, err)
	})

	t.Run("rejects ambiguous alias", func(t *testing.T) {
		regions := []Region{
			{Name: "Assam", Lat: 26.2, Lon: 92.9, Aliases: []string{"guwahati"}},
			{Name: "Meghalaya", Lat: 25.4, Lon: 91.3, Aliases: []string{"Guwahati"}},
		}
		_, err := NewRegionIndex(regions, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "guwahati")
	})

	t.Run("tolerates repeated alias within one region", func(t *testing.T) {
		regions := []Region{
			{Name: "Assam", Lat: 26.2, Lon: 92.9, Aliases: []string{"assam", "Assam"}},
		}
		_, err := NewRegionIndex(regions, 0)
		assert.NoError(t, err)
	})
}

func TestRegionIndex_Resolve(t *testing.T) {
	x := testIndex(t)

	tests := []struct {
		name string
		hint string
		want string
		ok   bool
	}{
		{"canonical name", "Assam", "Assam", true},
		{"alias", "Calcutta", "West Bengal", true},
		{"case and spacing", "  WEST   bengal ", "West Bengal", true},
		{"single typo", "Asam", "Assam", true},
		{"typo in longer name", "Keralla", "Kerala", true},
		{"legacy name", "Orissa", "Odisha", true},
		{"too short for fuzzy", "asm", "", false},
		{"unrelated word", "flooding", "", false},
		{"empty", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := x.Resolve(tt.hint)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, r.Name)
		})
	}
}

func TestRegionIndex_ScanText(t *testing.T) {
	x := testIndex(t)

	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"direct mention", "flood waters rising across Assam tonight", "Assam", true},
		{"multi-word region", "power cuts reported in west bengal districts", "West Bengal", true},
		{"alias with punctuation", "evacuations underway near Guwahati, officials say", "Assam", true},
		{"first mention wins", "aid moving from Bihar to Assam", "Bihar", true},
		{"hashtag mention", "rescue teams deployed #kerala", "Kerala", true},
		{"no mention", "heavy rain expected along the coast", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := x.ScanText(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, r.Name)
		})
	}
}

func TestRegionIndex_Nearest(t *testing.T) {
	x := testIndex(t)

	t.Run("snaps to closest centroid", func(t *testing.T) {
		r, ok := x.Nearest(28.6, 77.2)
		require.True(t, ok)
		assert.Equal(t, "Delhi", r.Name)
	})

	t.Run("rejects far away coordinates", func(t *testing.T) {
		_, ok := x.Nearest(48.85, 2.35)
		assert.False(t, ok)
	})
}

func TestLoadRegions(t *testing.T) {
	t.Run("loads override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "regions.yaml")
		content := `regions:
  - name: Dhaka
    lat: 23.8103
    lon: 90.4125
    aliases: [dacca]
  - name: Chittagong
    lat: 22.3569
    lon: 91.7832
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		regions, err := LoadRegions(path)
		require.NoError(t, err)
		require.Len(t, regions, 2)
		assert.Equal(t, "Dhaka", regions[0].Name)
		assert.Equal(t, []string{"dacca"}, regions[0].Aliases)
		assert.InDelta(t, 22.3569, regions[1].Lat, 1e-9)
	})

	t.Run("rejects region without centroid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "regions.yaml")
		require.NoError(t, os.WriteFile(path, []byte("regions:\n  - name: Nowhere\n"), 0o600))
		_, err := LoadRegions(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "centroid")
	})

	t.Run("rejects empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "regions.yaml")
		require.NoError(t, os.WriteFile(path, []byte("regions: []\n"), 0o600))
		_, err := LoadRegions(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRegions(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
