package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stationhub/internal/classify"
	"stationhub/internal/models"
	"stationhub/internal/quality"
	"stationhub/internal/station"
	"stationhub/internal/storage"
)

// CountryLocator resolves a client IP to a country code.
type CountryLocator interface {
	CountryCode(ctx context.Context, ip string) string
}

// ImageStore manages artwork already written by the image pipeline.
type ImageStore interface {
	KeyFromURL(url string) (key string, ok bool)
	DownloadImage(ctx context.Context, key string) (*storage.FileObject, error)
	DeleteImage(ctx context.Context, key string) error
}

// StationHandler serves the directory listings and station CRUD.
type StationHandler struct {
	db      *gorm.DB
	svc     *station.Service
	locator CountryLocator
	images  ImageStore
}

func NewStationHandler(db *gorm.DB, svc *station.Service, locator CountryLocator, images ImageStore) *StationHandler {
	return &StationHandler{db: db, svc: svc, locator: locator, images: images}
}

// active is the base query of every public listing.
func (h *StationHandler) active(c *gin.Context) *gorm.DB {
	return h.db.WithContext(c.Request.Context()).Model(&models.Station{}).Where("is_active = ?", true)
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListStations returns active stations with optional search and filters.
func (h *StationHandler) ListStations(c *gin.Context) {
	// 1. Parse query
	page, limit, offset := pagination(c)
	search := strings.TrimSpace(c.Query("search"))
	country := strings.ToUpper(strings.TrimSpace(c.Query("country")))
	genre := strings.ToLower(strings.TrimSpace(c.Query("genre")))
	stationType := strings.ToLower(strings.TrimSpace(c.Query("type")))

	// 2. Filters
	query := h.active(c)
	if search != "" {
		term := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\'`, term, term)
	}
	if country != "" {
		query = query.Where("country_code = ?", country)
	}
	if genre != "" {
		query = query.Where("genre = ?", genre)
	}
	if stationType != "" {
		query = query.Where("station_type = ?", stationType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	// 3. Sorting
	switch c.DefaultQuery("sort", "quality") {
	case "name":
		query = query.Order("name ASC")
	case "popular":
		query = query.Order("click_count DESC").Order("id ASC")
	case "newest":
		query = query.Order("id DESC")
	default:
		query = query.Order("quality_score DESC").Order("id ASC")
	}

	var stations []models.Station
	if err := query.Limit(limit).Offset(offset).Find(&stations).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stations,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// GetStation returns one station by numeric or public id.
func (h *StationHandler) GetStation(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetFeatured lists stations that pass the featured threshold.
func (h *StationHandler) GetFeatured(c *gin.Context) {
	_, limit, _ := pagination(c)

	var stations []models.Station
	err := h.active(c).
		Where("quality_score >= ?", quality.FeaturedMinScore).
		Order("quality_score DESC").Order("click_count DESC").
		Limit(limit).
		Find(&stations).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stations})
}

// GetEditorsPicks lists high scorers whose score is backed by listener feedback.
func (h *StationHandler) GetEditorsPicks(c *gin.Context) {
	_, limit, _ := pagination(c)

	var stations []models.Station
	err := h.active(c).
		Where("quality_score >= ? AND feedback_count >= ?", quality.EditorsPickMinScore, quality.EditorsPickMinFeedback).
		Order("quality_score DESC").
		Limit(limit).
		Find(&stations).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stations})
}

// GetByTier lists stations whose persisted score falls into the tier.
func (h *StationHandler) GetByTier(c *gin.Context) {
	tier, err := quality.ParseTier(c.Param("tier"))
	if err != nil {
		respondError(c, err)
		return
	}
	display, err := quality.LookupTier(tier)
	if err != nil {
		respondError(c, err)
		return
	}
	page, limit, offset := pagination(c)

	query := h.active(c).Where("quality_score >= ?", display.MinScore)
	if tier != quality.TierPremium {
		query = query.Where("quality_score < ?", display.MaxScore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var stations []models.Station
	if err := query.Order("quality_score DESC").Limit(limit).Offset(offset).Find(&stations).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier": display,
		"data": stations,
		"meta": gin.H{"total": total, "page": page, "limit": limit},
	})
}

// GetTiers returns the presentation metadata of every tier.
func (h *StationHandler) GetTiers(c *gin.Context) {
	out := make([]quality.TierDisplay, 0, len(quality.Tiers))
	for _, t := range quality.Tiers {
		d, err := quality.LookupTier(t)
		if err != nil {
			respondError(c, err)
			return
		}
		out = append(out, d)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// GetNearby lists the best stations of the caller's country. ?country= overrides
// the geolocated one.
func (h *StationHandler) GetNearby(c *gin.Context) {
	_, limit, _ := pagination(c)

	country := strings.ToUpper(strings.TrimSpace(c.Query("country")))
	if country == "" && h.locator != nil {
		country = h.locator.CountryCode(c.Request.Context(), c.ClientIP())
	}

	query := h.active(c)
	if country != "" {
		query = query.Where("country_code = ?", country)
	}

	var stations []models.Station
	if err := query.Order("quality_score DESC").Order("click_count DESC").Limit(limit).Find(&stations).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"country": country, "data": stations})
}

type stationInput struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=200"`
	StreamURL       *string `json:"stream_url" binding:"omitempty,url"`
	Homepage        *string `json:"homepage" binding:"omitempty,url"`
	Description     *string `json:"description" binding:"omitempty,max=2000"`
	Language        *string `json:"language" binding:"omitempty,max=100"`
	Country         *string `json:"country" binding:"omitempty,max=100"`
	CountryCode     *string `json:"country_code" binding:"omitempty,len=2"`
	Tags            *string `json:"tags"`
	Genre           *string `json:"genre" binding:"omitempty,max=50"`
	StationType     *string `json:"station_type" binding:"omitempty,max=20"`
	Favicon         *string `json:"favicon" binding:"omitempty,url"`
	Logo            *string `json:"logo" binding:"omitempty,url"`
	Codec           *string `json:"codec" binding:"omitempty,max=20"`
	Bitrate         *int    `json:"bitrate" binding:"omitempty,min=0,max=1411"`
	MetadataAPIURL  *string `json:"metadata_api_url" binding:"omitempty,url"`
	MetadataAPIType *string `json:"metadata_api_type" binding:"omitempty,metadata_api_type"`
}

// updates turns the set fields into a column map.
func (in stationInput) updates() map[string]interface{} {
	m := map[string]interface{}{}
	set := func(col string, v *string, transform func(string) string) {
		if v != nil {
			s := strings.TrimSpace(*v)
			if transform != nil {
				s = transform(s)
			}
			m[col] = s
		}
	}
	set("name", in.Name, nil)
	set("stream_url", in.StreamURL, nil)
	set("homepage", in.Homepage, nil)
	set("description", in.Description, nil)
	set("language", in.Language, nil)
	set("country", in.Country, nil)
	set("country_code", in.CountryCode, strings.ToUpper)
	set("tags", in.Tags, nil)
	set("genre", in.Genre, strings.ToLower)
	set("station_type", in.StationType, strings.ToLower)
	set("favicon", in.Favicon, nil)
	set("logo", in.Logo, nil)
	set("codec", in.Codec, nil)
	set("metadata_api_url", in.MetadataAPIURL, nil)
	set("metadata_api_type", in.MetadataAPIType, strings.ToLower)
	if in.Bitrate != nil {
		m["bitrate"] = *in.Bitrate
	}
	return m
}

// CreateStation adds a station and gives it its first score.
func (h *StationHandler) CreateStation(c *gin.Context) {
	var in stationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" || in.StreamURL == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and stream_url are required"})
		return
	}

	st := models.Station{Name: strings.TrimSpace(*in.Name), StreamURL: strings.TrimSpace(*in.StreamURL)}

	fields := in.updates()
	// Fill in what the editor left blank
	if in.Genre == nil || in.StationType == nil {
		tags := []string{}
		if in.Tags != nil {
			tags = strings.Split(*in.Tags, ",")
		}
		desc := ""
		if in.Description != nil {
			desc = *in.Description
		}
		class := classify.Classify(classify.Input{Name: st.Name, Description: desc, Tags: tags})
		if in.Genre == nil {
			fields["genre"] = class.Genre
		}
		if in.StationType == nil {
			fields["station_type"] = class.StationType
		}
	}

	// Row and fields land together or not at all
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&st).Error; err != nil {
			return err
		}
		return tx.Model(&st).Updates(fields).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := h.svc.Recalculate(c.Request.Context(), st.ID, station.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out.Station)
}

// UpdateStation applies a partial update and rescores the station.
func (h *StationHandler) UpdateStation(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}

	var in stationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := in.updates()
	if name, ok := fields["name"]; ok && name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(st).Updates(fields).Error; err != nil {
		respondError(c, err)
		return
	}

	out, err := h.svc.Recalculate(c.Request.Context(), st.ID, station.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out.Station)
}

// DeleteStation soft-deletes a station.
func (h *StationHandler) DeleteStation(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(st).Error; err != nil {
		respondError(c, err)
		return
	}

	// The row is gone either way; a failed cleanup is left to stationctl images --prune
	if key, ok := h.imageKey(st); ok {
		if err := h.images.DeleteImage(c.Request.Context(), key); err != nil {
			slog.Warn("artwork cleanup failed", "station_id", st.ID, "key", key, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Station deleted"})
}

// imageKey returns the storage key of the station's own thumbnail. ok is
// false when there is none or it lives outside our storage.
func (h *StationHandler) imageKey(st *models.Station) (string, bool) {
	if h.images == nil || st.LocalImageURL == "" {
		return "", false
	}
	return h.images.KeyFromURL(st.LocalImageURL)
}

// GetImage streams the station's stored thumbnail. Buckets need not be public.
func (h *StationHandler) GetImage(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}
	key, ok := h.imageKey(st)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Station has no stored artwork"})
		return
	}

	obj, err := h.images.DownloadImage(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Station has no stored artwork"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.ContentLength, obj.ContentType, obj.Body, map[string]string{
		"Cache-Control": storage.ImageCacheControl,
	})
}
