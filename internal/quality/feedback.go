package quality

// FeedbackType is the closed set of reasons a listener can report about a station.
type FeedbackType string

const (
	FeedbackStreamBroken    FeedbackType = "stream_broken"
	FeedbackPoorQuality     FeedbackType = "poor_quality"
	FeedbackWrongInfo       FeedbackType = "wrong_info"
	FeedbackGreatStation    FeedbackType = "great_station"
	FeedbackMissingMetadata FeedbackType = "missing_metadata"
)

// ValidFeedbackTypes is the set of accepted feedback types.
var ValidFeedbackTypes = map[FeedbackType]bool{
	FeedbackStreamBroken:    true,
	FeedbackPoorQuality:     true,
	FeedbackWrongInfo:       true,
	FeedbackGreatStation:    true,
	FeedbackMissingMetadata: true,
}

// IsValid reports whether t belongs to the known feedback types.
func (t FeedbackType) IsValid() bool {
	return ValidFeedbackTypes[t]
}

// FeedbackRecord is the part of a stored feedback entry the aggregator needs.
type FeedbackRecord struct {
	Type FeedbackType
}

// FeedbackSummary holds per-category counts of a station's unresolved feedback.
type FeedbackSummary struct {
	Total           int `json:"total"`
	StreamBroken    int `json:"stream_broken"`
	PoorQuality     int `json:"poor_quality"`
	WrongInfo       int `json:"wrong_info"`
	GreatStation    int `json:"great_station"`
	MissingMetadata int `json:"missing_metadata"`
}

// AggregateFeedback counts records by type. Callers pass unresolved feedback only.
// Records with an unknown type still count toward Total.
func AggregateFeedback(records []FeedbackRecord) FeedbackSummary {
	summary := FeedbackSummary{Total: len(records)}

	for _, r := range records {
		switch r.Type {
		case FeedbackStreamBroken:
			summary.StreamBroken++
		case FeedbackPoorQuality:
			summary.PoorQuality++
		case FeedbackWrongInfo:
			summary.WrongInfo++
		case FeedbackGreatStation:
			summary.GreatStation++
		case FeedbackMissingMetadata:
			summary.MissingMetadata++
		}
	}

	return summary
}
