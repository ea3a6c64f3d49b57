package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stationhub/internal/models"
	"stationhub/internal/quality"
)

// StatsHandler handles stats-related requests independently of the main server
type StatsHandler struct {
	db *gorm.DB
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(db *gorm.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// tierCase buckets quality_score in SQL using the tier table, best tier first.
func tierCase() (string, error) {
	var b strings.Builder
	b.WriteString("CASE")
	for _, t := range quality.Tiers {
		d, err := quality.LookupTier(t)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " WHEN quality_score >= %s THEN '%s'", strconv.FormatFloat(d.MinScore, 'f', -1, 64), t)
	}
	b.WriteString(" END")
	return b.String(), nil
}

// GetStats returns directory-wide counters for the dashboard.
func (h *StatsHandler) GetStats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())

	// 1. Station counts
	var total, active, withArtwork int64
	var avgScore float64
	stations := func() *gorm.DB { return db.Model(&models.Station{}) }
	for _, q := range []*gorm.DB{
		stations().Count(&total),
		stations().Where("is_active = ?", true).Count(&active),
		stations().Where("local_image_url <> ''").Count(&withArtwork),
		stations().Where("is_active = ?", true).Select("COALESCE(AVG(quality_score), 0)").Scan(&avgScore),
	} {
		if q.Error != nil {
			respondError(c, q.Error)
			return
		}
	}

	// 2. Tier distribution of listed stations
	var tierRows []struct {
		Tier  string
		Count int64
	}
	bucket, err := tierCase()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := stations().
		Select(bucket + " AS tier, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("tier").
		Scan(&tierRows).Error; err != nil {
		respondError(c, err)
		return
	}
	tiers := gin.H{}
	for _, t := range quality.Tiers {
		tiers[string(t)] = 0
	}
	for _, r := range tierRows {
		tiers[r.Tier] = r.Count
	}

	// 3. Open feedback by type
	var feedbackRows []struct {
		FeedbackType string
		Count        int64
	}
	if err := db.Model(&models.Feedback{}).
		Select("feedback_type, COUNT(*) AS count").
		Where("resolved = ?", false).
		Group("feedback_type").
		Scan(&feedbackRows).Error; err != nil {
		respondError(c, err)
		return
	}
	openFeedback := gin.H{}
	var openTotal int64
	for _, r := range feedbackRows {
		openFeedback[r.FeedbackType] = r.Count
		openTotal += r.Count
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"total_stations":        total,
			"active_stations":       active,
			"hidden_stations":       total - active,
			"stations_with_artwork": withArtwork,
			"average_quality_score": avgScore,
			"open_feedback":         openTotal,
		},
		"tiers":         tiers,
		"open_feedback": openFeedback,
	})
}
