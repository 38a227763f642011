package repository

import (
	"context"

	"github.com/quocanhngo/reelsync/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TitleRepository reads the title catalog
type TitleRepository struct {
	db *gorm.DB
}

func NewTitleRepository(db *gorm.DB) *TitleRepository {
	return &TitleRepository{db: db}
}

// FindByID finds a title by its numeric id
func (r *TitleRepository) FindByID(ctx context.Context, id uint) (*model.Title, error) {
	var title model.Title
	err := r.db.WithContext(ctx).First(&title, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &title, nil
}

// Save inserts or replaces a title. Only the seeder writes titles.
func (r *TitleRepository) Save(ctx context.Context, title *model.Title) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "duration_seconds"}),
	}).Create(title).Error
}
