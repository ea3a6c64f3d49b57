// Package classify guesses a station's genre bucket and programming type
// from its name, description and tags.
package classify

import (
	"strings"
	"unicode"
)

// Station types.
const (
	TypeMusic     = "music"
	TypeNews      = "news"
	TypeTalk      = "talk"
	TypeSports    = "sports"
	TypeReligious = "religious"
)

// Genre buckets.
const (
	GenreOther = "other"
)

type rule struct {
	name     string
	keywords []string
}

// Order matters: the first bucket with the most hits wins ties.
var genreRules = []rule{
	{"jazz", []string{"jazz", "swing", "bebop", "smooth jazz", "big band"}},
	{"classical", []string{"classical", "classic fm", "symphony", "opera", "baroque", "orchestra", "klassik"}},
	{"rock", []string{"rock", "metal", "punk", "grunge", "alternative", "indie", "hard rock"}},
	{"electronic", []string{"electronic", "techno", "house", "trance", "edm", "dance", "dubstep", "drum and bass", "dnb", "ambient", "chillout", "lounge"}},
	{"hiphop", []string{"hip hop", "hiphop", "hip-hop", "rap", "trap", "rnb", "r&b", "urban"}},
	{"pop", []string{"pop", "top 40", "top40", "hits", "charts", "chart"}},
	{"country", []string{"country", "bluegrass", "americana", "western"}},
	{"latin", []string{"latin", "salsa", "reggaeton", "bachata", "cumbia", "tango", "merengue"}},
	{"reggae", []string{"reggae", "dancehall", "ska", "dub"}},
	{"blues", []string{"blues", "soul", "funk", "motown"}},
	{"folk", []string{"folk", "acoustic", "celtic", "traditional"}},
	{"oldies", []string{"oldies", "60s", "70s", "80s", "90s", "retro", "classic hits", "golden"}},
	{"world", []string{"world music", "african", "bollywood", "k-pop", "kpop", "j-pop", "arabic", "greek"}},
}

var typeRules = []rule{
	{TypeNews, []string{"news", "nachrichten", "noticias", "info", "bbc world service", "npr", "public radio"}},
	{TypeTalk, []string{"talk", "podcast", "comedy", "spoken", "discussion", "interview"}},
	{TypeSports, []string{"sport", "sports", "football", "soccer", "espn", "cricket", "baseball"}},
	{TypeReligious, []string{"christian", "gospel", "catholic", "church", "worship", "islam", "quran", "bible", "praise"}},
}

// Input is what the heuristics read.
type Input struct {
	Name        string
	Description string
	Tags        []string
}

// Result is the classification outcome.
type Result struct {
	Genre       string
	StationType string
}

// Classify returns the best genre bucket and station type for in.
// Tags weigh twice as much as words in the name or description.
func Classify(in Input) Result {
	text := normalize(in.Name + " " + in.Description)
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if n := normalize(t); n != "" {
			tags = append(tags, n)
		}
	}

	res := Result{Genre: GenreOther, StationType: TypeMusic}
	if g := best(genreRules, text, tags); g != "" {
		res.Genre = g
	}
	if st := best(typeRules, text, tags); st != "" {
		res.StationType = st
	}
	return res
}

func best(rules []rule, text string, tags []string) string {
	var (
		winner string
		top    int
	)
	for _, r := range rules {
		score := 0
		for _, kw := range r.keywords {
			if containsWord(text, kw) {
				score++
			}
			for _, tag := range tags {
				if tag == kw || containsWord(tag, kw) {
					score += 2
				}
			}
		}
		if score > top {
			winner, top = r.name, score
		}
	}
	return winner
}

// normalize lowercases s and collapses everything but letters, digits and
// '&' into single spaces.
func normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteRune(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// containsWord matches kw on word boundaries so "rap" does not hit "therapy".
func containsWord(text, kw string) bool {
	kw = normalize(kw)
	if kw == "" {
		return false
	}
	padded := " " + text + " "
	return strings.Contains(padded, " "+kw+" ")
}
