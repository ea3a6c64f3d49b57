package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		genre string
		typ   string
	}{
		{"jazz tags", Input{Name: "Radio Swiss", Tags: []string{"jazz", "smooth jazz"}}, "jazz", TypeMusic},
		{"name only", Input{Name: "Classic Rock Legends"}, "rock", TypeMusic},
		{"news", Input{Name: "BBC World Service", Tags: []string{"news", "talk"}}, GenreOther, TypeNews},
		{"sports", Input{Name: "ESPN Radio", Tags: []string{"sports"}}, GenreOther, TypeSports},
		{"religious", Input{Name: "Gospel Praise FM"}, GenreOther, TypeReligious},
		{"word boundary", Input{Name: "Therapy Talk"}, GenreOther, TypeTalk},
		{"hyphenated tag", Input{Name: "Beats", Tags: []string{"Hip-Hop"}}, "hiphop", TypeMusic},
		{"nothing matches", Input{Name: "Radio 1"}, GenreOther, TypeMusic},
		{"tags outweigh name", Input{Name: "Pop Rock Radio", Tags: []string{"rock"}}, "rock", TypeMusic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			if got.Genre != tt.genre {
				t.Errorf("genre = %q, want %q", got.Genre, tt.genre)
			}
			if got.StationType != tt.typ {
				t.Errorf("type = %q, want %q", got.StationType, tt.typ)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("  R&B / Soul -- Hits!! "); got != "r&b soul hits" {
		t.Errorf("normalize = %q", got)
	}
}
