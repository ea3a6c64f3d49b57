// Package station orchestrates listener engagement and quality recalculation
// on top of the pure scoring rules in package quality.
package station

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stationhub/internal/metrics"
	"stationhub/internal/models"
	"stationhub/internal/quality"
	"stationhub/internal/ratelimit"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidFeedback = errors.New("invalid feedback type")
	ErrConflict        = errors.New("concurrent score update")
)

// Recalculation triggers, used as metric labels.
const (
	TriggerPlay     = "play"
	TriggerLike     = "like"
	TriggerFeedback = "feedback"
	TriggerResolve  = "resolve"
	TriggerManual   = "manual"
	TriggerBulk     = "bulk"
	TriggerImport   = "import"
)

const maxSaveAttempts = 3

// Windows configures how often one client may repeat an action on one station.
type Windows struct {
	Play     time.Duration
	Like     time.Duration
	Feedback time.Duration
}

// DefaultWindows mirrors the configuration defaults.
var DefaultWindows = Windows{
	Play:     5 * time.Minute,
	Like:     24 * time.Hour,
	Feedback: time.Hour,
}

// CountryResolver maps a client IP to an ISO country code, "" when unknown.
type CountryResolver interface {
	CountryCode(ctx context.Context, ip string) string
}

// Outcome is the result of one recalculation.
type Outcome struct {
	Station *models.Station `json:"station"`
	Result  quality.Result  `json:"result"`
	Hidden  bool            `json:"hidden"` // deactivated by this recalculation
}

// Report is the read-only quality view of a station.
type Report struct {
	StationID        uint                    `json:"station_id"`
	PublicID         string                  `json:"public_id"`
	IsActive         bool                    `json:"is_active"`
	Summary          quality.FeedbackSummary `json:"summary"`
	ResolvedCount    int64                   `json:"resolved_count"`
	Result           quality.Result          `json:"result"`
	Tier             quality.TierDisplay     `json:"tier"`
	Featured         bool                    `json:"featured"`
	EditorsPick      bool                    `json:"editors_pick"`
	AtRiskOfHiding   bool                    `json:"at_risk_of_hiding"`
	PersistedScore   float64                 `json:"persisted_score"`
	PersistedReports int                     `json:"persisted_feedback_count"`
}

// HidePolicy decides whether a freshly scored station leaves the listings.
type HidePolicy func(score float64, feedbackCount int) bool

type Service struct {
	store      Store
	limiter    ratelimit.Store
	windows    Windows
	geo        CountryResolver
	shouldHide HidePolicy
	locks      *keyedLocks
}

type Option func(*Service)

// WithHidePolicy replaces quality.ShouldHideStation.
func WithHidePolicy(p HidePolicy) Option {
	return func(s *Service) { s.shouldHide = p }
}

// WithCountryResolver tags new feedback with the submitter's country.
func WithCountryResolver(r CountryResolver) Option {
	return func(s *Service) { s.geo = r }
}

func NewService(store Store, limiter ratelimit.Store, windows Windows, opts ...Option) *Service {
	s := &Service{
		store:      store,
		limiter:    limiter,
		windows:    windows,
		shouldHide: quality.ShouldHideStation,
		locks:      newKeyedLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPlay counts a play and rescores the station.
func (s *Service) RecordPlay(ctx context.Context, stationID uint, clientIP string) (*Outcome, error) {
	return s.engage(ctx, stationID, clientIP, TriggerPlay, CounterPlays, s.windows.Play)
}

// RecordLike counts a like and rescores the station.
func (s *Service) RecordLike(ctx context.Context, stationID uint, clientIP string) (*Outcome, error) {
	return s.engage(ctx, stationID, clientIP, TriggerLike, CounterLikes, s.windows.Like)
}

func (s *Service) engage(ctx context.Context, stationID uint, clientIP, action, column string, window time.Duration) (*Outcome, error) {
	if _, err := s.store.GetStation(ctx, stationID); err != nil {
		return nil, err
	}
	if err := s.allow(ctx, action, stationID, clientIP, window); err != nil {
		return nil, err
	}
	if err := s.store.IncrementCounter(ctx, stationID, column); err != nil {
		s.release(ctx, action, stationID, clientIP)
		return nil, err
	}
	return s.Recalculate(ctx, stationID, action)
}

// SubmitFeedback stores a listener report and rescores the station.
func (s *Service) SubmitFeedback(ctx context.Context, stationID uint, clientIP string, ft quality.FeedbackType, comment string) (*models.Feedback, *Outcome, error) {
	if !ft.IsValid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidFeedback, ft)
	}
	if _, err := s.store.GetStation(ctx, stationID); err != nil {
		return nil, nil, err
	}
	if err := s.allow(ctx, TriggerFeedback, stationID, clientIP, s.windows.Feedback); err != nil {
		return nil, nil, err
	}

	fb := &models.Feedback{
		StationID:    stationID,
		FeedbackType: ft,
		Comment:      strings.TrimSpace(comment),
		IPHash:       HashIP(clientIP),
	}
	if s.geo != nil {
		fb.CountryCode = s.geo.CountryCode(ctx, clientIP)
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		s.release(ctx, TriggerFeedback, stationID, clientIP)
		return nil, nil, fmt.Errorf("store feedback: %w", err)
	}
	metrics.FeedbackSubmissions.WithLabelValues(string(ft)).Inc()

	out, err := s.Recalculate(ctx, stationID, TriggerFeedback)
	if err != nil {
		return fb, nil, err
	}
	return fb, out, nil
}

// ResolveFeedback marks a report handled and rescores its station.
// Resolution never reactivates a hidden station.
func (s *Service) ResolveFeedback(ctx context.Context, feedbackID uint) (*models.Feedback, *Outcome, error) {
	fb, err := s.store.ResolveFeedback(ctx, feedbackID)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.Recalculate(ctx, fb.StationID, TriggerResolve)
	if err != nil {
		return fb, nil, err
	}
	return fb, out, nil
}

// Recalculate scores a station from its unresolved feedback and writes the
// result back. Recalculations of one station are serialized in-process and
// guarded across processes by a version check.
func (s *Service) Recalculate(ctx context.Context, stationID uint, trigger string) (*Outcome, error) {
	unlock := s.locks.Lock(stationID)
	defer unlock()

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		st, err := s.store.GetStation(ctx, stationID)
		if err != nil {
			return nil, err
		}
		feedback, err := s.store.UnresolvedFeedback(ctx, stationID)
		if err != nil {
			return nil, err
		}

		res := quality.ComputeQualityScore(quality.AggregateFeedback(models.Records(feedback)), st.ScoreInput())
		hide := st.IsActive && s.shouldHide(res.Overall, res.FeedbackCount)

		saved, err := s.store.SaveScore(ctx, stationID, st.Version, res, hide)
		if err != nil {
			return nil, err
		}
		if !saved {
			slog.Debug("score write lost a version race, retrying", "station_id", stationID, "attempt", attempt)
			continue
		}

		st.QualityScore = res.Overall
		st.FeedbackCount = res.FeedbackCount
		st.Version++
		if hide {
			st.IsActive = false
			metrics.StationsHidden.Inc()
			slog.Warn("station hidden by quality policy",
				"station_id", stationID,
				"score", res.Overall,
				"feedback_count", res.FeedbackCount,
				"trigger", trigger,
			)
		}

		metrics.ScoreRecalculations.WithLabelValues(trigger).Inc()
		metrics.ScoreDistribution.Observe(res.Overall)

		return &Outcome{Station: st, Result: res, Hidden: hide}, nil
	}

	return nil, fmt.Errorf("station %d: %w", stationID, ErrConflict)
}

// RecalculateAll rescores every station in id order, batch by batch.
func (s *Service) RecalculateAll(ctx context.Context, batchSize int) (processed, hidden int, err error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	var after uint
	for {
		if err := ctx.Err(); err != nil {
			return processed, hidden, err
		}

		ids, err := s.store.StationIDs(ctx, after, batchSize)
		if err != nil {
			return processed, hidden, fmt.Errorf("list stations: %w", err)
		}
		if len(ids) == 0 {
			return processed, hidden, nil
		}

		for _, id := range ids {
			out, err := s.Recalculate(ctx, id, TriggerBulk)
			switch {
			case errors.Is(err, ErrNotFound):
				// Deleted since the page was read
			case err != nil:
				slog.Error("bulk recalculation failed", "station_id", id, "error", err)
			default:
				processed++
				if out.Hidden {
					hidden++
				}
			}
		}
		after = ids[len(ids)-1]
	}
}

// Reactivate puts a hidden station back into listings. This is the only way
// out of the hidden state.
func (s *Service) Reactivate(ctx context.Context, stationID uint) (*models.Station, error) {
	unlock := s.locks.Lock(stationID)
	defer unlock()

	if err := s.store.SetActive(ctx, stationID, true); err != nil {
		return nil, err
	}
	slog.Info("station reactivated", "station_id", stationID)
	return s.store.GetStation(ctx, stationID)
}

// Quality computes a fresh report without persisting anything.
func (s *Service) Quality(ctx context.Context, stationID uint) (*Report, error) {
	st, err := s.store.GetStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	feedback, err := s.store.UnresolvedFeedback(ctx, stationID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.store.CountResolvedFeedback(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("count resolved feedback: %w", err)
	}

	summary := quality.AggregateFeedback(models.Records(feedback))
	res := quality.ComputeQualityScore(summary, st.ScoreInput())
	tier, err := quality.LookupTier(quality.ClassifyTier(res.Overall))
	if err != nil {
		return nil, err
	}

	return &Report{
		StationID:        st.ID,
		PublicID:         st.PublicID,
		IsActive:         st.IsActive,
		Summary:          summary,
		ResolvedCount:    resolved,
		Result:           res,
		Tier:             tier,
		Featured:         quality.QualifiesForFeatured(res.Overall),
		EditorsPick:      quality.QualifiesForEditorsPick(res.Overall, res.FeedbackCount),
		AtRiskOfHiding:   s.shouldHide(res.Overall, res.FeedbackCount),
		PersistedScore:   st.QualityScore,
		PersistedReports: st.FeedbackCount,
	}, nil
}

func (s *Service) allow(ctx context.Context, action string, stationID uint, clientIP string, window time.Duration) error {
	ok, err := s.limiter.Allow(ctx, ratelimit.Key(action, stationID, HashIP(clientIP)), window)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if !ok {
		metrics.RateLimited.WithLabelValues(action).Inc()
		return fmt.Errorf("%s on station %d: %w", action, stationID, ErrRateLimited)
	}
	return nil
}

// release hands back a slot taken by allow when the action was not recorded.
func (s *Service) release(ctx context.Context, action string, stationID uint, clientIP string) {
	if err := s.limiter.Release(ctx, ratelimit.Key(action, stationID, HashIP(clientIP))); err != nil {
		slog.Warn("rate limit release failed", "action", action, "station_id", stationID, "error", err)
	}
}

// HashIP returns the hex sha256 of an address so raw IPs are never stored.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(ip)))
	return hex.EncodeToString(sum[:])
}
