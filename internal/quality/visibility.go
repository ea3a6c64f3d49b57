package quality

// Visibility thresholds.
const (
	HideMinFeedback       = 5
	HideBelowScore        = 40.0
	HideStrictMinFeedback = 3
	HideStrictBelowScore  = 30.0

	EditorsPickMinScore    = 85.0
	EditorsPickMinFeedback = 3

	FeaturedMinScore = 70.0
)

// ShouldHideStation reports whether a station should be taken out of listings.
// Either enough feedback with a low score, or a little feedback with a very low score.
func ShouldHideStation(score float64, feedbackCount int) bool {
	return (feedbackCount >= HideMinFeedback && score < HideBelowScore) ||
		(feedbackCount >= HideStrictMinFeedback && score < HideStrictBelowScore)
}

// QualifiesForEditorsPick requires a high score confirmed by listener feedback.
func QualifiesForEditorsPick(score float64, feedbackCount int) bool {
	return score >= EditorsPickMinScore && feedbackCount >= EditorsPickMinFeedback
}

// QualifiesForFeatured reports whether a station may appear in featured listings.
func QualifiesForFeatured(score float64) bool {
	return score >= FeaturedMinScore
}
