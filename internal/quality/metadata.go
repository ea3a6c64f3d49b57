package quality

import "unicode/utf8"

// MetadataFields are the station fields that contribute to metadata richness.
type MetadataFields struct {
	MetadataAPIURL  string
	MetadataAPIType string
	LocalImageURL   string
	Logo            string
	Favicon         string
	Description     string
	Language        string
}

// MetadataRichness scores how well-described a station is, from 0 to 100.
func MetadataRichness(f MetadataFields) int {
	score := 0

	// 1. Now-playing API configured
	if f.MetadataAPIURL != "" && f.MetadataAPIType != "" {
		score += 40
	}

	// 2. Any artwork
	if f.LocalImageURL != "" || f.Logo != "" || f.Favicon != "" {
		score += 25
	}

	// 3. Description length, counted in characters
	switch n := utf8.RuneCountInString(f.Description); {
	case n > 50:
		score += 20
	case n > 10:
		score += 10
	}

	// 4. Language
	if f.Language != "" {
		score += 10
	}

	return clampInt(score, 0, 100)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
