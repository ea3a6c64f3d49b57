package station

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"stationhub/internal/models"
	"stationhub/internal/quality"
)

// Counter columns that listener actions may increment.
const (
	CounterPlays = "click_count"
	CounterLikes = "votes"
)

// Store is the persistence the station service needs.
type Store interface {
	GetStation(ctx context.Context, id uint) (*models.Station, error)
	UnresolvedFeedback(ctx context.Context, stationID uint) ([]models.Feedback, error)
	CountResolvedFeedback(ctx context.Context, stationID uint) (int64, error)
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	ResolveFeedback(ctx context.Context, feedbackID uint) (*models.Feedback, error)
	IncrementCounter(ctx context.Context, stationID uint, column string) error
	// SaveScore writes a score only if the station still has the given version.
	SaveScore(ctx context.Context, stationID uint, version int, res quality.Result, hide bool) (bool, error)
	SetActive(ctx context.Context, stationID uint, active bool) error
	StationIDs(ctx context.Context, afterID uint, limit int) ([]uint, error)
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetStation(ctx context.Context, id uint) (*models.Station, error) {
	var st models.Station
	if err := s.db.WithContext(ctx).First(&st, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("station %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load station %d: %w", id, err)
	}
	return &st, nil
}

func (s *GormStore) UnresolvedFeedback(ctx context.Context, stationID uint) ([]models.Feedback, error) {
	var list []models.Feedback
	err := s.db.WithContext(ctx).
		Where("station_id = ? AND resolved = ?", stationID, false).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("load feedback for station %d: %w", stationID, err)
	}
	return list, nil
}

func (s *GormStore) CountResolvedFeedback(ctx context.Context, stationID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("station_id = ? AND resolved = ?", stationID, true).
		Count(&n).Error
	return n, err
}

func (s *GormStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	return s.db.WithContext(ctx).Create(f).Error
}

func (s *GormStore) ResolveFeedback(ctx context.Context, feedbackID uint) (*models.Feedback, error) {
	var f models.Feedback
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&f, feedbackID).Error; err != nil {
			return err
		}
		if f.Resolved {
			return nil
		}
		now := time.Now()
		f.Resolved = true
		f.ResolvedAt = &now
		return tx.Model(&models.Feedback{}).Where("id = ?", feedbackID).Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": now,
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("feedback %d: %w", feedbackID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve feedback %d: %w", feedbackID, err)
	}
	return &f, nil
}

func (s *GormStore) IncrementCounter(ctx context.Context, stationID uint, column string) error {
	if column != CounterPlays && column != CounterLikes {
		return fmt.Errorf("unknown counter %q", column)
	}
	// Atomic in SQL so concurrent plays never lose increments
	result := s.db.WithContext(ctx).Model(&models.Station{}).
		Where("id = ?", stationID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("increment %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("station %d: %w", stationID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) SaveScore(ctx context.Context, stationID uint, version int, res quality.Result, hide bool) (bool, error) {
	updates := map[string]interface{}{
		"quality_score":  res.Overall,
		"feedback_count": res.FeedbackCount,
		"version":        gorm.Expr("version + 1"),
	}
	if hide {
		updates["is_active"] = false
	}

	result := s.db.WithContext(ctx).Model(&models.Station{}).
		Where("id = ? AND version = ?", stationID, version).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("save score for station %d: %w", stationID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) SetActive(ctx context.Context, stationID uint, active bool) error {
	result := s.db.WithContext(ctx).Model(&models.Station{}).
		Where("id = ?", stationID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("set active on station %d: %w", stationID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("station %d: %w", stationID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) StationIDs(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Station{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
