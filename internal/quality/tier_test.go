package quality

import (
	"errors"
	"testing"
)

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{100, TierPremium},
		{90, TierPremium},
		{89.99, TierHigh},
		{80, TierHigh},
		{79.99, TierGood},
		{70, TierGood},
		{69.99, TierFair},
		{60, TierFair},
		{59.99, TierPoor},
		{0, TierPoor},
		{-5, TierPoor},
	}

	for _, tt := range tests {
		if got := ClassifyTier(tt.score); got != tt.want {
			t.Errorf("ClassifyTier(%v) = %s; want %s", tt.score, got, tt.want)
		}
	}
}

func TestLookupTier(t *testing.T) {
	for _, tier := range Tiers {
		d, err := LookupTier(tier)
		if err != nil {
			t.Fatalf("LookupTier(%s) error: %v", tier, err)
		}
		if d.Tier != tier || d.Label == "" || d.Badge == "" || d.Color == "" {
			t.Errorf("incomplete display for %s: %+v", tier, d)
		}
		// The bounds must agree with the classifier
		if got := ClassifyTier(d.MinScore); got != tier {
			t.Errorf("ClassifyTier(min of %s) = %s", tier, got)
		}
	}

	if _, err := LookupTier("legendary"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier, got %v", err)
	}
}

func TestParseTier(t *testing.T) {
	got, err := ParseTier(" Premium ")
	if err != nil || got != TierPremium {
		t.Errorf("ParseTier(\" Premium \") = %s, %v", got, err)
	}
	if _, err := ParseTier("gold"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier, got %v", err)
	}
}

func TestShouldHideStation(t *testing.T) {
	tests := []struct {
		score float64
		count int
		want  bool
	}{
		{39, 5, true},
		{40, 5, false},
		{29, 3, true},
		{35, 3, false},
		{10, 2, false},
		{39.99, 4, false},
		{29.99, 4, true},
	}

	for _, tt := range tests {
		if got := ShouldHideStation(tt.score, tt.count); got != tt.want {
			t.Errorf("ShouldHideStation(%v, %d) = %v; want %v", tt.score, tt.count, got, tt.want)
		}
	}
}

func TestEditorsPickAndFeatured(t *testing.T) {
	if !QualifiesForEditorsPick(85, 3) {
		t.Error("85 with 3 reports should be an editor's pick")
	}
	if QualifiesForEditorsPick(95, 2) {
		t.Error("editor's pick needs at least 3 reports")
	}
	if QualifiesForEditorsPick(84.99, 10) {
		t.Error("84.99 is below the editor's pick threshold")
	}

	if !QualifiesForFeatured(70) || QualifiesForFeatured(69.99) {
		t.Error("featured threshold is 70 inclusive")
	}
}
