package quality

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is a named score bucket.
type Tier string

const (
	TierPremium Tier = "premium"
	TierHigh    Tier = "high"
	TierGood    Tier = "good"
	TierFair    Tier = "fair"
	TierPoor    Tier = "poor"
)

// Tiers lists every tier from best to worst.
var Tiers = []Tier{TierPremium, TierHigh, TierGood, TierFair, TierPoor}

// ErrUnknownTier is returned for tier names outside Tiers.
var ErrUnknownTier = errors.New("unknown quality tier")

// TierDisplay is the presentation metadata of a tier.
// MaxScore is exclusive, except for premium which includes 100.
type TierDisplay struct {
	Tier        Tier    `json:"tier"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	Badge       string  `json:"badge"`
	MinScore    float64 `json:"min_score"`
	MaxScore    float64 `json:"max_score"`
}

var tierDisplays = map[Tier]TierDisplay{
	TierPremium: {
		Tier: TierPremium, Label: "Premium", Description: "Exceptional streams loved by listeners",
		Color: "#d4af37", Badge: "👑", MinScore: 90, MaxScore: 100,
	},
	TierHigh: {
		Tier: TierHigh, Label: "High Quality", Description: "Reliable streams with great audio",
		Color: "#38a169", Badge: "⭐", MinScore: 80, MaxScore: 90,
	},
	TierGood: {
		Tier: TierGood, Label: "Good", Description: "Solid stations worth a listen",
		Color: "#3182ce", Badge: "✓", MinScore: 70, MaxScore: 80,
	},
	TierFair: {
		Tier: TierFair, Label: "Fair", Description: "Playable, with some reported issues",
		Color: "#dd6b20", Badge: "○", MinScore: 60, MaxScore: 70,
	},
	TierPoor: {
		Tier: TierPoor, Label: "Poor", Description: "Frequent problems reported",
		Color: "#e53e3e", Badge: "⚠", MinScore: 0, MaxScore: 60,
	},
}

// ClassifyTier maps a score to its tier. Lower bounds are inclusive.
func ClassifyTier(score float64) Tier {
	switch {
	case score >= 90:
		return TierPremium
	case score >= 80:
		return TierHigh
	case score >= 70:
		return TierGood
	case score >= 60:
		return TierFair
	default:
		return TierPoor
	}
}

// LookupTier returns the display metadata of t.
func LookupTier(t Tier) (TierDisplay, error) {
	d, ok := tierDisplays[t]
	if !ok {
		return TierDisplay{}, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return d, nil
}

// ParseTier validates a user-supplied tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tierDisplays[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}
