package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stationhub/internal/models"
	"stationhub/internal/quality"
	"stationhub/internal/station"
)

// respondError maps service errors onto status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, station.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, station.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Slow down, you already did that recently"})
	case errors.Is(err, station.ErrInvalidFeedback), errors.Is(err, quality.ErrUnknownTier):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, station.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Station is being updated, try again"})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// findStation loads the station named by :id, which is either the numeric id
// or the public id. It writes the error response itself.
func findStation(c *gin.Context, db *gorm.DB) (*models.Station, bool) {
	ref := strings.TrimSpace(c.Param("id"))

	var st models.Station
	var err error
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		err = db.WithContext(c.Request.Context()).First(&st, id).Error
	} else {
		err = db.WithContext(c.Request.Context()).Where("public_id = ?", ref).First(&st).Error
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return &st, true
}

// pagination reads page/limit query params. limit is capped at 100.
func pagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
