package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository handles database operations for WatchProgress
type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert writes progress for (user, title) in one statement, overwriting any
// existing row unconditionally
func (r *ProgressRepository) Upsert(ctx context.Context, p *model.WatchProgress) (*model.WatchProgress, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "title_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"position_seconds",
			"progress_percentage",
			"completed",
			"last_watched_at",
			"last_watched_device_type",
			"last_watched_device_id",
			"last_watched_device_name",
		}),
	}).Create(p).Error
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// FindByTitle returns the user's progress on a title
func (r *ProgressRepository) FindByTitle(ctx context.Context, userID uuid.UUID, titleID uint) (*model.WatchProgress, error) {
	var p model.WatchProgress
	err := r.db.WithContext(ctx).Where("user_id = ? AND title_id = ?", userID, titleID).First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListByUser returns all progress rows of a user, most recently watched first
func (r *ProgressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.WatchProgress, error) {
	var rows []model.WatchProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_watched_at DESC").
		Find(&rows).Error
	return rows, translate(err)
}

// DeleteByTitle removes the user's progress on a title
func (r *ProgressRepository) DeleteByTitle(ctx context.Context, userID uuid.UUID, titleID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND title_id = ?", userID, titleID).Delete(&model.WatchProgress{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
