package repository

import (
	"context"
	"fmt"

	"agora/internal/models"

	"gorm.io/gorm"
)

// Scope narrows or orders an idea query.
type Scope = func(*gorm.DB) *gorm.DB

// VoteCounts is the result of the fresh counter query.
type VoteCounts struct {
	Up   int
	Down int
}

// Total is up plus down.
func (c VoteCounts) Total() int { return c.Up + c.Down }

// IdeaRepository defines interface for idea operations
type IdeaRepository interface {
	Create(ctx context.Context, idea *models.Idea) error
	GetByID(ctx context.Context, id uint) (*models.Idea, error)
	GetDetail(ctx context.Context, id uint) (*models.Idea, error)
	// Save writes every column without domain validation.
	Save(ctx context.Context, idea *models.Idea) error
	UpdateColumns(ctx context.Context, id uint, values map[string]interface{}) error
	SetCounters(ctx context.Context, id uint, counts VoteCounts) error
	IncrementFlags(ctx context.Context, id uint) error
	PublishedNameExists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, limit, offset int, scopes ...Scope) ([]*models.Idea, error)
	Count(ctx context.Context, scopes ...Scope) (int64, error)
	// Destroy deletes the idea and everything it owns.
	Destroy(ctx context.Context, id uint) error
}

type ideaRepository struct {
	db *gorm.DB
}

// NewIdeaRepository creates a new IdeaRepository
func NewIdeaRepository(db *gorm.DB) IdeaRepository {
	return &ideaRepository{db: db}
}

func (r *ideaRepository) Create(ctx context.Context, idea *models.Idea) error {
	return r.db.WithContext(ctx).Create(idea).Error
}

func (r *ideaRepository) GetByID(ctx context.Context, id uint) (*models.Idea, error) {
	var idea models.Idea
	if err := r.db.WithContext(ctx).First(&idea, id).Error; err != nil {
		return nil, notFoundOr(err, "Idea", id)
	}
	return &idea, nil
}

func (r *ideaRepository) GetDetail(ctx context.Context, id uint) (*models.Idea, error) {
	var idea models.Idea
	err := r.db.WithContext(ctx).Preload("Category").Preload("Change").First(&idea, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Idea", id)
	}
	return &idea, nil
}

func (r *ideaRepository) Save(ctx context.Context, idea *models.Idea) error {
	return r.db.WithContext(ctx).Omit("Category", "Change").Save(idea).Error
}

func (r *ideaRepository) UpdateColumns(ctx context.Context, id uint, values map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Idea{}).Where("id = ?", id).UpdateColumns(values).Error
}

func (r *ideaRepository) SetCounters(ctx context.Context, id uint, counts VoteCounts) error {
	return r.UpdateColumns(ctx, id, map[string]interface{}{
		"endorsements_count":      counts.Total(),
		"up_endorsements_count":   counts.Up,
		"down_endorsements_count": counts.Down,
	})
}

func (r *ideaRepository) IncrementFlags(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Idea{}).Where("id = ?", id).
		UpdateColumn("flags_count", gorm.Expr("flags_count + ?", 1)).Error
}

func (r *ideaRepository) PublishedNameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Idea{}).
		Where("status = ? AND LOWER(name) = LOWER(?)", models.IdeaStatusPublished, name).
		Count(&count).Error
	return count > 0, err
}

func (r *ideaRepository) List(ctx context.Context, limit, offset int, scopes ...Scope) ([]*models.Idea, error) {
	var ideas []*models.Idea
	q := r.db.WithContext(ctx).Scopes(scopes...)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&ideas).Error
	return ideas, err
}

func (r *ideaRepository) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Idea{}).Scopes(scopes...).Count(&count).Error
	return count, err
}

// Destroy removes owned rows explicitly; not every backend enforces the foreign keys.
func (r *ideaRepository) Destroy(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)

	activityIDs := db.Model(&models.Activity{}).Select("id").Where("idea_id = ?", id)
	if err := db.Where("activity_id IN (?)", activityIDs).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}

	owned := []struct {
		name  string
		model interface{}
	}{
		{"activities", &models.Activity{}},
		{"endorsements", &models.Endorsement{}},
		{"points", &models.Point{}},
		{"rankings", &models.Ranking{}},
		{"ads", &models.Ad{}},
		{"notifications", &models.Notification{}},
		{"changes", &models.Change{}},
	}
	for _, o := range owned {
		if err := db.Where("idea_id = ?", id).Delete(o.model).Error; err != nil {
			return fmt.Errorf("delete %s: %w", o.name, err)
		}
	}

	if err := db.Model(&models.Point{}).Where("other_idea_id = ?", id).UpdateColumn("other_idea_id", nil).Error; err != nil {
		return fmt.Errorf("clear point references: %w", err)
	}
	if err := db.Delete(&models.Idea{}, id).Error; err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	return nil
}
