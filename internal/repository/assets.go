package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// AdRepository stores paid promotions.
type AdRepository interface {
	Create(ctx context.Context, ad *models.Ad) error
	Save(ctx context.Context, ad *models.Ad) error
	ListActiveByIdea(ctx context.Context, ideaID uint) ([]*models.Ad, error)
	Reassign(ctx context.Context, fromIdeaID, toIdeaID uint) error
}

type adRepository struct {
	db *gorm.DB
}

func NewAdRepository(db *gorm.DB) AdRepository {
	return &adRepository{db: db}
}

func (r *adRepository) Create(ctx context.Context, ad *models.Ad) error {
	return r.db.WithContext(ctx).Create(ad).Error
}

func (r *adRepository) Save(ctx context.Context, ad *models.Ad) error {
	return r.db.WithContext(ctx).Save(ad).Error
}

func (r *adRepository) ListActiveByIdea(ctx context.Context, ideaID uint) ([]*models.Ad, error) {
	var ads []*models.Ad
	err := r.db.WithContext(ctx).Where("idea_id = ? AND status = ?", ideaID, models.AdStatusActive).
		Order("id ASC").Find(&ads).Error
	return ads, err
}

func (r *adRepository) Reassign(ctx context.Context, fromIdeaID, toIdeaID uint) error {
	return r.db.WithContext(ctx).Model(&models.Ad{}).Where("idea_id = ?", fromIdeaID).
		UpdateColumn("idea_id", toIdeaID).Error
}

// ChangeRepository stores pending replacement proposals.
type ChangeRepository interface {
	Create(ctx context.Context, c *models.Change) error
	DeleteByIdea(ctx context.Context, ideaID uint) error
}

type changeRepository struct {
	db *gorm.DB
}

func NewChangeRepository(db *gorm.DB) ChangeRepository {
	return &changeRepository{db: db}
}

func (r *changeRepository) Create(ctx context.Context, c *models.Change) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *changeRepository) DeleteByIdea(ctx context.Context, ideaID uint) error {
	return r.db.WithContext(ctx).Where("idea_id = ?", ideaID).Delete(&models.Change{}).Error
}

// TagRepository stores idea labels.
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	ClearTopIdea(ctx context.Context, ideaID uint) error
}

type tagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepository) ClearTopIdea(ctx context.Context, ideaID uint) error {
	return r.db.WithContext(ctx).Model(&models.Tag{}).Where("top_idea_id = ?", ideaID).
		UpdateColumn("top_idea_id", nil).Error
}

// RankingRepository stores position snapshots.
type RankingRepository interface {
	Create(ctx context.Context, ranking *models.Ranking) error
	Purge(ctx context.Context, ideaID uint) error
}

type rankingRepository struct {
	db *gorm.DB
}

func NewRankingRepository(db *gorm.DB) RankingRepository {
	return &rankingRepository{db: db}
}

func (r *rankingRepository) Create(ctx context.Context, ranking *models.Ranking) error {
	return r.db.WithContext(ctx).Create(ranking).Error
}

// Purge removes every snapshot of the idea. Rankings are derived data.
func (r *rankingRepository) Purge(ctx context.Context, ideaID uint) error {
	return r.db.WithContext(ctx).Exec("DELETE FROM rankings WHERE idea_id = ?", ideaID).Error
}
