package quality

import (
	"math"
	"time"
)

// Component weights. They sum to 1.0 so the overall score stays within [0,100].
const (
	WeightStreamReliability   = 0.30
	WeightAudioQuality        = 0.25
	WeightInformationAccuracy = 0.20
	WeightUserSatisfaction    = 0.15
	WeightMetadataRichness    = 0.10
)

// Cold-start baselines used when a station has no feedback yet.
const (
	baseStreamReliability   = 75.0
	baseAudioQuality        = 70.0
	baseInformationAccuracy = 80.0
	baseUserSatisfaction    = 65.0
)

// ScoreInput is the station snapshot the calculator reads.
type ScoreInput struct {
	ClickCount int
	Votes      int
	Bitrate    int // kbps, 0 when unknown
	Metadata   MetadataFields
}

// Breakdown holds the unrounded component scores.
type Breakdown struct {
	StreamReliability   float64 `json:"stream_reliability"`
	AudioQuality        float64 `json:"audio_quality"`
	InformationAccuracy float64 `json:"information_accuracy"`
	UserSatisfaction    float64 `json:"user_satisfaction"`
	MetadataRichness    float64 `json:"metadata_richness"`
}

// Result is the outcome of one scoring pass.
type Result struct {
	Overall        float64   `json:"overall"`
	Breakdown      Breakdown `json:"breakdown"`
	FeedbackCount  int       `json:"feedback_count"`
	LastCalculated time.Time `json:"last_calculated"`
}

// now is swapped in tests.
var now = time.Now

// ComputeQualityScore combines feedback and station signals into one weighted score.
// Stations with feedback are scored from the report ratios; stations without any
// fall back to popularity and bitrate heuristics.
func ComputeQualityScore(summary FeedbackSummary, in ScoreInput) Result {
	var b Breakdown

	if summary.Total > 0 {
		b = fromFeedback(summary)
	} else {
		b = coldStart(in)
	}
	b.MetadataRichness = float64(MetadataRichness(in.Metadata))

	overall := b.StreamReliability*WeightStreamReliability +
		b.AudioQuality*WeightAudioQuality +
		b.InformationAccuracy*WeightInformationAccuracy +
		b.UserSatisfaction*WeightUserSatisfaction +
		b.MetadataRichness*WeightMetadataRichness

	return Result{
		Overall:        round2(overall),
		Breakdown:      b,
		FeedbackCount:  summary.Total,
		LastCalculated: now(),
	}
}

func fromFeedback(s FeedbackSummary) Breakdown {
	total := float64(s.Total)

	return Breakdown{
		StreamReliability:   math.Max(0, 100-float64(s.StreamBroken)/total*100),
		AudioQuality:        math.Max(0, 100-float64(s.PoorQuality)/total*100),
		InformationAccuracy: math.Max(0, 100-float64(s.WrongInfo)/total*100),
		UserSatisfaction:    float64(s.GreatStation) / total * 100,
	}
}

func coldStart(in ScoreInput) Breakdown {
	b := Breakdown{
		StreamReliability:   baseStreamReliability,
		AudioQuality:        baseAudioQuality,
		InformationAccuracy: baseInformationAccuracy,
		UserSatisfaction:    baseUserSatisfaction,
	}

	// Popularity only counts when the station has both plays and likes.
	if in.ClickCount != 0 && in.Votes != 0 {
		popularity := math.Min(100, float64(in.ClickCount+in.Votes*2)/10)
		b.StreamReliability += popularity * 0.2
		b.UserSatisfaction += popularity * 0.3
	}

	switch {
	case in.Bitrate >= 128:
		b.AudioQuality += 20
	case in.Bitrate >= 96:
		b.AudioQuality += 10
	case in.Bitrate < 64:
		b.AudioQuality -= 20
	}

	b.StreamReliability = clamp(b.StreamReliability, 0, 100)
	b.AudioQuality = clamp(b.AudioQuality, 0, 100)
	b.InformationAccuracy = clamp(b.InformationAccuracy, 0, 100)
	b.UserSatisfaction = clamp(b.UserSatisfaction, 0, 100)

	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
