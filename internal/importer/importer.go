// Package importer fills the directory from Radio Browser and from curated
// YAML seed files.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stationhub/internal/classify"
	"stationhub/internal/metrics"
	"stationhub/internal/models"
	"stationhub/internal/station"
)

const (
	SourceRadioBrowser = "radiobrowser"
	SourceSeed         = "seed"
)

// AreaResolver maps a city or region to a country code.
type AreaResolver interface {
	CountryFromArea(ctx context.Context, area string) (string, error)
}

// Rescorer recalculates a station after its data changed.
type Rescorer interface {
	Recalculate(ctx context.Context, stationID uint, trigger string) (*station.Outcome, error)
}

// Stats summarizes one import run.
type Stats struct {
	Fetched int `json:"fetched"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Created int `json:"created"`
}

type Importer struct {
	db      *gorm.DB
	rb      *RadioBrowser
	areas   AreaResolver
	rescore Rescorer
}

type Option func(*Importer)

func WithRadioBrowser(rb *RadioBrowser) Option { return func(i *Importer) { i.rb = rb } }
func WithAreaResolver(r AreaResolver) Option   { return func(i *Importer) { i.areas = r } }
func WithRescorer(r Rescorer) Option           { return func(i *Importer) { i.rescore = r } }

func New(db *gorm.DB, opts ...Option) *Importer {
	im := &Importer{db: db}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Columns refreshed when a Radio Browser station is imported again. Local
// counters, quality and artwork are never overwritten.
var radioBrowserUpdateColumns = []string{
	"name", "stream_url", "homepage", "favicon", "tags", "country",
	"country_code", "language", "codec", "bitrate", "genre", "station_type", "updated_at",
}

// ImportRadioBrowser upserts stations keyed by their Radio Browser UUID.
func (im *Importer) ImportRadioBrowser(ctx context.Context, q Query) (Stats, error) {
	if im.rb == nil {
		return Stats{}, errors.New("importer: radio browser client not configured")
	}

	list, err := im.rb.Stations(ctx, q)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Fetched: len(list)}

	seen := make(map[string]bool, len(list))
	rows := make([]models.Station, 0, len(list))
	uuids := make([]string, 0, len(list))
	for _, rbs := range list {
		uuid := strings.TrimSpace(rbs.StationUUID)
		if uuid == "" || seen[uuid] || strings.TrimSpace(rbs.Name) == "" || rbs.StreamURL() == "" {
			stats.Skipped++
			continue
		}
		seen[uuid] = true
		rows = append(rows, fromRadioBrowser(rbs, uuid))
		uuids = append(uuids, uuid)
	}
	if len(rows) == 0 {
		return stats, nil
	}

	var before int64
	if err := im.db.WithContext(ctx).Model(&models.Station{}).Where("radio_browser_uuid IN ?", uuids).Count(&before).Error; err != nil {
		return stats, err
	}

	err = im.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "radio_browser_uuid"}},
		DoUpdates: clause.AssignmentColumns(radioBrowserUpdateColumns),
	}).CreateInBatches(&rows, 100).Error
	if err != nil {
		return stats, fmt.Errorf("upsert stations: %w", err)
	}
	stats.Written = len(rows)
	stats.Created = len(rows) - int(before)
	metrics.ImportedStations.WithLabelValues(SourceRadioBrowser).Add(float64(stats.Written))

	var ids []uint
	if err := im.db.WithContext(ctx).Model(&models.Station{}).Where("radio_browser_uuid IN ?", uuids).Pluck("id", &ids).Error; err != nil {
		return stats, err
	}
	im.rescoreAll(ctx, ids)

	slog.Info("radio browser import complete",
		"fetched", stats.Fetched, "written", stats.Written, "created", stats.Created, "skipped", stats.Skipped)
	return stats, nil
}

func fromRadioBrowser(rbs RadioBrowserStation, uuid string) models.Station {
	tags := splitTags(rbs.Tags)
	class := classify.Classify(classify.Input{Name: rbs.Name, Tags: tags})

	return models.Station{
		Name:             strings.TrimSpace(rbs.Name),
		StreamURL:        rbs.StreamURL(),
		Homepage:         rbs.Homepage,
		Favicon:          rbs.Favicon,
		Tags:             strings.Join(tags, ","),
		Country:          rbs.Country,
		CountryCode:      strings.ToUpper(rbs.CountryCode),
		Language:         rbs.Language,
		Codec:            rbs.Codec,
		Bitrate:          rbs.Bitrate,
		ClickCount:       rbs.ClickCount,
		Votes:            rbs.Votes,
		Genre:            class.Genre,
		StationType:      class.StationType,
		RadioBrowserUUID: &uuid,
	}
}

// ImportSeed creates or updates curated stations matched by stream URL.
func (im *Importer) ImportSeed(ctx context.Context, seeds []SeedStation) (Stats, error) {
	stats := Stats{Fetched: len(seeds)}
	var ids []uint

	for _, s := range seeds {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		st, created, err := im.upsertSeed(ctx, s)
		if err != nil {
			slog.Error("seed station failed", "name", s.Name, "error", err)
			stats.Skipped++
			continue
		}
		stats.Written++
		if created {
			stats.Created++
		}
		ids = append(ids, st.ID)
	}

	metrics.ImportedStations.WithLabelValues(SourceSeed).Add(float64(stats.Written))
	im.rescoreAll(ctx, ids)

	slog.Info("seed import complete", "written", stats.Written, "created", stats.Created, "skipped", stats.Skipped)
	return stats, nil
}

func (im *Importer) upsertSeed(ctx context.Context, s SeedStation) (*models.Station, bool, error) {
	countryCode := strings.ToUpper(strings.TrimSpace(s.CountryCode))
	if countryCode == "" && s.Area != "" && im.areas != nil {
		code, err := im.areas.CountryFromArea(ctx, s.Area)
		if err != nil {
			slog.Warn("could not resolve seed area", "area", s.Area, "error", err)
		}
		countryCode = code
	}

	class := classify.Classify(classify.Input{Name: s.Name, Description: s.Description, Tags: s.Tags})
	if s.Genre != "" {
		class.Genre = strings.ToLower(s.Genre)
	}
	if s.StationType != "" {
		class.StationType = strings.ToLower(s.StationType)
	}

	fields := models.Station{
		Name:            strings.TrimSpace(s.Name),
		StreamURL:       strings.TrimSpace(s.StreamURL),
		Homepage:        s.Homepage,
		Description:     s.Description,
		Language:        s.Language,
		Country:         s.Country,
		CountryCode:     countryCode,
		Tags:            strings.Join(s.Tags, ","),
		Genre:           class.Genre,
		StationType:     class.StationType,
		Logo:            s.Logo,
		Favicon:         s.Favicon,
		Codec:           s.Codec,
		Bitrate:         s.Bitrate,
		MetadataAPIURL:  s.MetadataAPIURL,
		MetadataAPIType: strings.ToLower(s.MetadataAPIType),
	}

	var existing models.Station
	err := im.db.WithContext(ctx).Where("stream_url = ?", fields.StreamURL).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := im.db.WithContext(ctx).Create(&fields).Error; err != nil {
			return nil, false, err
		}
		return &fields, true, nil
	case err != nil:
		return nil, false, err
	}

	// Struct updates skip zero values, so blank seed fields keep what is stored
	if err := im.db.WithContext(ctx).Model(&existing).Updates(fields).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (im *Importer) rescoreAll(ctx context.Context, ids []uint) {
	if im.rescore == nil {
		return
	}
	for _, id := range ids {
		if _, err := im.rescore.Recalculate(ctx, id, station.TriggerImport); err != nil {
			slog.Warn("rescore after import failed", "station_id", id, "error", err)
		}
	}
}

func splitTags(csv string) []string {
	var tags []string
	for _, t := range strings.Split(csv, ",") {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
