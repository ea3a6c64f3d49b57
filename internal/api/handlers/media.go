package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"stationhub/internal/images"
	"stationhub/internal/models"
	"stationhub/internal/nowplaying"
	"stationhub/internal/probe"
	"stationhub/internal/station"
)

// StreamProber checks a live stream.
type StreamProber interface {
	Probe(ctx context.Context, url string) (*probe.Result, error)
}

// ArtworkPipeline stores station artwork.
type ArtworkPipeline interface {
	Fetch(ctx context.Context, st *models.Station) (string, error)
	Store(ctx context.Context, st *models.Station, r io.Reader) (string, error)
}

// TrackSource reads the current track of a station.
type TrackSource interface {
	Current(ctx context.Context, apiURL, apiType string) (nowplaying.Track, error)
}

// MediaHandler deals with the station's stream, artwork and now-playing data.
type MediaHandler struct {
	db      *gorm.DB
	svc     *station.Service
	prober  StreamProber
	artwork ArtworkPipeline
	tracks  TrackSource
}

func NewMediaHandler(db *gorm.DB, svc *station.Service, prober StreamProber, artwork ArtworkPipeline, tracks TrackSource) *MediaHandler {
	return &MediaHandler{db: db, svc: svc, prober: prober, artwork: artwork, tracks: tracks}
}

// ProbeStation connects to the stream and stores the advertised codec and bitrate.
func (h *MediaHandler) ProbeStation(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}

	res, err := h.prober.Probe(c.Request.Context(), st.StreamURL)
	if err != nil {
		if errors.Is(err, probe.ErrUnreachable) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "probe": res})
			return
		}
		respondError(c, err)
		return
	}

	if fields := res.Fields(); len(fields) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(st).Updates(fields).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	out, err := h.svc.Recalculate(c.Request.Context(), st.ID, station.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"probe": res, "quality": outcomeJSON(out)})
}

// UploadImage stores artwork from a multipart "image" file, or downloads the
// station's logo when no file is sent.
func (h *MediaHandler) UploadImage(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}

	var (
		url string
		err error
	)
	if fh, ferr := c.FormFile("image"); ferr == nil {
		f, oerr := fh.Open()
		if oerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read upload"})
			return
		}
		defer f.Close()
		url, err = h.artwork.Store(c.Request.Context(), st, f)
	} else {
		url, err = h.artwork.Fetch(c.Request.Context(), st)
	}

	switch {
	case errors.Is(err, images.ErrNoSource), errors.Is(err, images.ErrNotImage),
		errors.Is(err, images.ErrUnsupported), errors.Is(err, images.ErrTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Warn("artwork processing failed", "station_id", st.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not process artwork"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(st).Update("local_image_url", url).Error; err != nil {
		respondError(c, err)
		return
	}

	out, err := h.svc.Recalculate(c.Request.Context(), st.ID, station.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"local_image_url": url, "quality": outcomeJSON(out)})
}

// NowPlaying returns the station's current track.
func (h *MediaHandler) NowPlaying(c *gin.Context) {
	st, ok := findStation(c, h.db)
	if !ok {
		return
	}

	track, err := h.tracks.Current(c.Request.Context(), st.MetadataAPIURL, st.MetadataAPIType)
	switch {
	case errors.Is(err, nowplaying.ErrNotConfigured), errors.Is(err, nowplaying.ErrUnknownType):
		c.JSON(http.StatusNotFound, gin.H{"error": "Station does not publish now-playing data"})
		return
	case errors.Is(err, nowplaying.ErrNothingPlaying):
		c.JSON(http.StatusOK, gin.H{"station_id": st.ID, "track": nil})
		return
	case err != nil:
		slog.Debug("now playing lookup failed", "station_id", st.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Metadata server unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"station_id": st.ID, "track": track})
}
