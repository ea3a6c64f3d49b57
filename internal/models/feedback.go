package models

import (
	"time"

	"stationhub/internal/quality"
)

// Feedback is a listener report about a station.
type Feedback struct {
	ID           uint                 `gorm:"primarykey" json:"id"`
	StationID    uint                 `gorm:"index;not null" json:"station_id"`
	Station      *Station             `json:"station,omitempty"`
	FeedbackType quality.FeedbackType `gorm:"size:32;not null;index" json:"feedback_type"`
	Comment      string               `gorm:"type:text" json:"comment"`
	IPHash       string               `gorm:"size:64;index" json:"-"` // sha256 hex, never the raw address
	CountryCode  string               `gorm:"size:2" json:"country_code"`
	Resolved     bool                 `gorm:"default:false;index" json:"resolved"`
	ResolvedAt   *time.Time           `json:"resolved_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// TableName sets custom table name
func (Feedback) TableName() string { return "feedback" }

// Records converts stored feedback into aggregator input.
func Records(list []Feedback) []quality.FeedbackRecord {
	records := make([]quality.FeedbackRecord, len(list))
	for i, f := range list {
		records[i] = quality.FeedbackRecord{Type: f.FeedbackType}
	}
	return records
}
