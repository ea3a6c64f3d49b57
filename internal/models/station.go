package models

import (
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"gorm.io/gorm"

	"stationhub/internal/quality"
)

// Station is a radio stream listed in the directory
type Station struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	PublicID  string         `gorm:"size:32;uniqueIndex;not null" json:"public_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Directory listing
	Name        string `gorm:"not null;index" json:"name"`
	StreamURL   string `gorm:"not null;index" json:"stream_url"`
	Homepage    string `json:"homepage"`
	Description string `gorm:"type:text" json:"description"`
	Language    string `gorm:"size:100" json:"language"`
	Country     string `gorm:"size:100" json:"country"`
	CountryCode string `gorm:"size:2;index" json:"country_code"`
	Tags        string `gorm:"type:text" json:"tags"` // CSV: "jazz,smooth jazz"
	Genre       string `gorm:"size:50;index" json:"genre"`
	StationType string `gorm:"size:20;index" json:"station_type"`

	// Artwork
	Favicon       string `json:"favicon"`
	Logo          string `json:"logo"`
	LocalImageURL string `json:"local_image_url"`

	// Stream tech details
	Codec   string `gorm:"size:20" json:"codec"`
	Bitrate int    `json:"bitrate"` // kbps

	// Now-playing integration
	MetadataAPIURL  string `json:"metadata_api_url"`
	MetadataAPIType string `gorm:"size:20" json:"metadata_api_type"`

	// Engagement
	ClickCount int `gorm:"default:0" json:"click_count"`
	Votes      int `gorm:"default:0" json:"votes"`

	// Quality
	QualityScore  float64 `gorm:"default:0;index" json:"quality_score"`
	FeedbackCount int     `gorm:"default:0" json:"feedback_count"`
	IsActive      bool    `gorm:"default:true;index" json:"is_active"`
	Version       int     `gorm:"default:0;not null" json:"-"`

	// Import bookkeeping
	RadioBrowserUUID *string `gorm:"size:36;uniqueIndex" json:"radio_browser_uuid,omitempty"`
}

// BeforeCreate assigns the public id
func (s *Station) BeforeCreate(tx *gorm.DB) error {
	if s.PublicID == "" {
		s.PublicID = shortuuid.New()
	}
	return nil
}

// TagList splits the CSV tags column
func (s *Station) TagList() []string {
	var result []string
	for _, tag := range strings.Split(s.Tags, ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// MetadataFields returns the fields that feed the richness score.
func (s *Station) MetadataFields() quality.MetadataFields {
	return quality.MetadataFields{
		MetadataAPIURL:  s.MetadataAPIURL,
		MetadataAPIType: s.MetadataAPIType,
		LocalImageURL:   s.LocalImageURL,
		Logo:            s.Logo,
		Favicon:         s.Favicon,
		Description:     s.Description,
		Language:        s.Language,
	}
}

// ScoreInput is the snapshot handed to the quality calculator.
func (s *Station) ScoreInput() quality.ScoreInput {
	return quality.ScoreInput{
		ClickCount: s.ClickCount,
		Votes:      s.Votes,
		Bitrate:    s.Bitrate,
		Metadata:   s.MetadataFields(),
	}
}
