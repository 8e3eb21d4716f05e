package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// PointRepository stores arguments attached to ideas.
type PointRepository interface {
	Create(ctx context.Context, p *models.Point) error
	Save(ctx context.Context, p *models.Point) error
	// ListByIdea includes deleted points.
	ListByIdea(ctx context.Context, ideaID uint) ([]*models.Point, error)
	ListReferencing(ctx context.Context, ideaID uint) ([]*models.Point, error)
}

type pointRepository struct {
	db *gorm.DB
}

func NewPointRepository(db *gorm.DB) PointRepository {
	return &pointRepository{db: db}
}

func (r *pointRepository) Create(ctx context.Context, p *models.Point) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *pointRepository) Save(ctx context.Context, p *models.Point) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *pointRepository) ListByIdea(ctx context.Context, ideaID uint) ([]*models.Point, error) {
	var points []*models.Point
	err := r.db.WithContext(ctx).Where("idea_id = ?", ideaID).Order("id ASC").Find(&points).Error
	return points, err
}

func (r *pointRepository) ListReferencing(ctx context.Context, ideaID uint) ([]*models.Point, error) {
	var points []*models.Point
	err := r.db.WithContext(ctx).Where("other_idea_id = ?", ideaID).Order("id ASC").Find(&points).Error
	return points, err
}

// ActivityRepository stores the idea event log.
type ActivityRepository interface {
	Create(ctx context.Context, a *models.Activity) error
	Save(ctx context.Context, a *models.Activity) error
	SaveComment(ctx context.Context, c *models.Comment) error
	// ListByIdea preloads comments.
	ListByIdea(ctx context.Context, ideaID uint) ([]*models.Activity, error)
	SetStatusByIdea(ctx context.Context, ideaID uint, status models.ActivityStatus) error
	DeleteKinds(ctx context.Context, ideaID uint, kinds []models.ActivityKind) error
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, a *models.Activity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *activityRepository) Save(ctx context.Context, a *models.Activity) error {
	return r.db.WithContext(ctx).Omit("Comments").Save(a).Error
}

func (r *activityRepository) SaveComment(ctx context.Context, c *models.Comment) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *activityRepository) ListByIdea(ctx context.Context, ideaID uint) ([]*models.Activity, error) {
	var activities []*models.Activity
	err := r.db.WithContext(ctx).Preload("Comments").Where("idea_id = ?", ideaID).Order("id ASC").Find(&activities).Error
	return activities, err
}

func (r *activityRepository) SetStatusByIdea(ctx context.Context, ideaID uint, status models.ActivityStatus) error {
	return r.db.WithContext(ctx).Model(&models.Activity{}).Where("idea_id = ?", ideaID).
		UpdateColumn("status", status).Error
}

// DeleteKinds hard-deletes the idea's activities of the given kinds with their comments.
func (r *activityRepository) DeleteKinds(ctx context.Context, ideaID uint, kinds []models.ActivityKind) error {
	if len(kinds) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	ids := db.Model(&models.Activity{}).Select("id").Where("idea_id = ? AND kind IN ?", ideaID, kinds)
	if err := db.Where("activity_id IN (?)", ids).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	return db.Where("idea_id = ? AND kind IN ?", ideaID, kinds).Delete(&models.Activity{}).Error
}
