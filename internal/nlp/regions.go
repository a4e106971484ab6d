package nlp

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/agext/levenshtein"
	"gopkg.in/yaml.v3"
)

const (
	// defaultMinSimilarity is the Levenshtein similarity floor for fuzzy
	// alias matches; one edit on a five-letter name scores 0.8.
	defaultMinSimilarity = 0.78
	// defaultMaxCentroidKm bounds coordinate→region snapping; coordinates
	// farther than this from every centroid resolve to no region.
	defaultMaxCentroidKm = 300.0
	// minFuzzyLen: hints shorter than this only match exactly, fuzzy
	// matching on 2-3 letter strings is all noise.
	minFuzzyLen = 4
)

// Region is one administrative area the heatmap aggregates over. Lat/Lon is
// the centroid used when a claim names the region but carries no coordinates.
type Region struct {
	Name    string   `yaml:"name"`
	Lat     float64  `yaml:"lat"`
	Lon     float64  `yaml:"lon"`
	Aliases []string `yaml:"aliases"`
}

type regionsFile struct {
	Regions []Region `yaml:"regions"`
}

// LoadRegions reads a region lexicon override from a YAML file.
func LoadRegions(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}
	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("regions file %s defines no regions", path)
	}
	for i, r := range f.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("region %d has no name", i)
		}
		if r.Lat == 0 && r.Lon == 0 {
			return nil, fmt.Errorf("region %q has no centroid", r.Name)
		}
	}
	return f.Regions, nil
}

// DefaultRegions returns the built-in lexicon: Indian states and union
// territories inside the default coverage box, with common city and legacy
// name aliases.
func DefaultRegions() []Region {
	return []Region{
		{Name: "Assam", Lat: 26.2006, Lon: 92.9376, Aliases: []string{"guwahati", "dispur", "brahmaputra valley"}},
		{Name: "West Bengal", Lat: 22.9868, Lon: 87.8550, Aliases: []string{"kolkata", "calcutta", "bengal"}},
		{Name: "Bihar", Lat: 25.0961, Lon: 85.3131, Aliases: []string{"patna"}},
		{Name: "Uttar Pradesh", Lat: 26.8467, Lon: 80.9462, Aliases: []string{"lucknow", "varanasi"}},
		{Name: "Maharashtra", Lat: 19.7515, Lon: 75.7139, Aliases: []string{"mumbai", "bombay", "pune"}},
		{Name: "Kerala", Lat: 10.8505, Lon: 76.2711, Aliases: []string{"kochi", "cochin", "thiruvananthapuram"}},
		{Name: "Tamil Nadu", Lat: 11.1271, Lon: 78.6569, Aliases: []string{"chennai", "madras"}},
		{Name: "Karnataka", Lat: 15.3173, Lon: 75.7139, Aliases: []string{"bengaluru", "bangalore"}},
		{Name: "Gujarat", Lat: 22.2587, Lon: 71.1924, Aliases: []string{"ahmedabad", "surat"}},
		{Name: "Rajasthan", Lat: 27.0238, Lon: 74.2179, Aliases: []string{"jaipur"}},
		{Name: "Odisha", Lat: 20.9517, Lon: 85.0985, Aliases: []string{"orissa", "bhubaneswar"}},
		{Name: "Delhi", Lat: 28.7041, Lon: 77.1025, Aliases: []string{"new delhi"}},
		{Name: "Punjab", Lat: 31.1471, Lon: 75.3412, Aliases: []string{"amritsar", "ludhiana"}},
		{Name: "Meghalaya", Lat: 25.4670, Lon: 91.3662, Aliases: []string{"shillong", "cherrapunji"}},
		{Name: "Uttarakhand", Lat: 30.0668, Lon: 79.0193, Aliases: []string{"dehradun", "uttaranchal"}},
	}
}

// RegionIndex resolves free-text location hints, event text, and coordinates
// to canonical region names. Safe for concurrent use after construction.
type RegionIndex struct {
	regions []Region
	byAlias map[string]int // lowercased alias → regions slice index
	ordered []string       // alias keys in lexicon order, for deterministic fuzzy ties
	minSim  float64
	maxKm   float64
}

// NewRegionIndex builds an index over the given lexicon. minSimilarity <= 0
// picks the default fuzzy threshold.
func NewRegionIndex(regions []Region, minSimilarity float64) (*RegionIndex, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("empty region lexicon")
	}
	if minSimilarity <= 0 {
		minSimilarity = defaultMinSimilarity
	}
	x := &RegionIndex{
		regions: regions,
		byAlias: make(map[string]int),
		minSim:  minSimilarity,
		maxKm:   defaultMaxCentroidKm,
	}
	for i, r := range regions {
		for _, alias := range append([]string{r.Name}, r.Aliases...) {
			key := normalizeAlias(alias)
			if key == "" {
				continue
			}
			if prev, ok := x.byAlias[key]; ok {
				if prev != i {
					return nil, fmt.Errorf("alias %q maps to both %s and %s", alias, regions[prev].Name, r.Name)
				}
				continue
			}
			x.byAlias[key] = i
			x.ordered = append(x.ordered, key)
		}
	}
	return x, nil
}

// Names returns the canonical region names in lexicon order.
func (x *RegionIndex) Names() []string {
	names := make([]string, len(x.regions))
	for i, r := range x.regions {
		names[i] = r.Name
	}
	return names
}

// Lookup finds a region by its canonical name or any alias, exact match only.
func (x *RegionIndex) Lookup(name string) (Region, bool) {
	i, ok := x.byAlias[normalizeAlias(name)]
	if !ok {
		return Region{}, false
	}
	return x.regions[i], true
}

// Resolve maps a free-text location hint to a region. Exact alias matches win;
// otherwise the best fuzzy alias match above the similarity floor is taken.
func (x *RegionIndex) Resolve(hint string) (Region, bool) {
	key := normalizeAlias(hint)
	if key == "" {
		return Region{}, false
	}
	if i, ok := x.byAlias[key]; ok {
		return x.regions[i], true
	}
	if len([]rune(key)) < minFuzzyLen {
		return Region{}, false
	}
	best, bestScore := -1, 0.0
	for _, alias := range x.ordered {
		if score := editSimilarity(key, alias); score > bestScore {
			best, bestScore = x.byAlias[alias], score
		}
	}
	if best < 0 || bestScore < x.minSim {
		return Region{}, false
	}
	return x.regions[best], true
}

// ScanText finds the first region mention in running text, checking alias
// phrases up to three words long. Fuzzy matching is deliberately not applied
// here; over a whole text it produces far too many false hits.
func (x *RegionIndex) ScanText(text string) (Region, bool) {
	words := tokenize(text)
	for i := range words {
		for n := 3; n >= 1; n-- {
			if i+n > len(words) {
				continue
			}
			phrase := strings.Join(words[i:i+n], " ")
			if j, ok := x.byAlias[phrase]; ok {
				return x.regions[j], true
			}
		}
	}
	return Region{}, false
}

// Nearest snaps a coordinate pair to the closest region centroid, or reports
// false when everything is farther than the distance cap.
func (x *RegionIndex) Nearest(lat, lon float64) (Region, bool) {
	best, bestKm := -1, x.maxKm
	for i, r := range x.regions {
		if d := haversineKm(lat, lon, r.Lat, r.Lon); d <= bestKm {
			best, bestKm = i, d
		}
	}
	if best < 0 {
		return Region{}, false
	}
	return x.regions[best], true
}

// editSimilarity normalizes Levenshtein distance to [0,1], where 1 is an
// exact match.
func editSimilarity(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(longest)
}

func normalizeAlias(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// tokenize lowercases and splits text into words, stripping surrounding
// punctuation so "Assam," matches the "assam" alias.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]#@")
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
