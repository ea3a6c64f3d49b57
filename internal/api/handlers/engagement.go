package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stationhub/internal/quality"
	"stationhub/internal/station"
)

// EngagementHandler records listener actions and exposes quality controls.
type EngagementHandler struct {
	db        *gorm.DB
	svc       *station.Service
	batchSize int
}

func NewEngagementHandler(db *gorm.DB, svc *station.Service, batchSize int) *EngagementHandler {
	return &EngagementHandler{db: db, svc: svc, batchSize: batchSize}
}

func outcomeJSON(out *station.Outcome) gin.H {
	return gin.H{
		"station_id":     out.Station.ID,
		"quality_score":  out.Result.Overall,
		"feedback_count": out.Result.FeedbackCount,
		"breakdown":      out.Result.Breakdown,
		"tier":           quality.ClassifyTier(out.Result.Overall),
		"is_active":      out.Station.IsActive,
		"hidden":         out.Hidden,
	}
}

// RecordPlay counts a play for the calling client.
func (h *EngagementHandler) RecordPlay(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	out, err := h.svc.RecordPlay(c.Request.Context(), st.ID, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := outcomeJSON(out)
	resp["click_count"] = out.Station.ClickCount
	c.JSON(http.StatusOK, resp)
}

// RecordLike counts a like for the calling client.
func (h *EngagementHandler) RecordLike(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	out, err := h.svc.RecordLike(c.Request.Context(), st.ID, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := outcomeJSON(out)
	resp["votes"] = out.Station.Votes
	c.JSON(http.StatusOK, resp)
}

// SubmitFeedback stores a listener report.
func (h *EngagementHandler) SubmitFeedback(c *gin.Context) {
	var input struct {
		FeedbackType string `json:"feedback_type" binding:"required,feedback_type"`
		Comment      string `json:"comment" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, ok := findStation(c, h.db)
	if !ok {
		return
	}

	fb, out, err := h.svc.SubmitFeedback(c.Request.Context(), st.ID, c.ClientIP(), quality.FeedbackType(input.FeedbackType), input.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"feedback": fb,
		"quality":  outcomeJSON(out),
	})
}

// GetQuality returns a fresh, unpersisted quality report.
func (h *EngagementHandler) GetQuality(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	report, err := h.svc.Quality(c.Request.Context(), st.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Recalculate rescores one station on demand.
func (h *EngagementHandler) Recalculate(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	out, err := h.svc.Recalculate(c.Request.Context(), st.ID, station.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomeJSON(out))
}

// RecalculateAll rescores the whole directory synchronously.
func (h *EngagementHandler) RecalculateAll(c *gin.Context) {
	processed, hidden, err := h.svc.RecalculateAll(c.Request.Context(), h.batchSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed, "hidden": hidden})
}

// Reactivate puts a hidden station back into listings.
func (h *EngagementHandler) Reactivate(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	updated, err := h.svc.Reactivate(c.Request.Context(), st.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ResolveFeedback marks one report as handled.
func (h *EngagementHandler) ResolveFeedback(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feedback ID"})
		return
	}

	fb, out, err := h.svc.ResolveFeedback(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"feedback": fb,
		"quality":  outcomeJSON(out),
	})
}
