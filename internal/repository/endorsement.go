package repository

import (
	"context"
	"errors"

	"agora/internal/models"

	"gorm.io/gorm"
)

var countedStatuses = []models.EndorsementStatus{models.EndorsementStatusActive, models.EndorsementStatusInactive}

// EndorsementRepository is the vote ledger store.
type EndorsementRepository interface {
	// Find returns nil, nil when the user has no row for the idea.
	Find(ctx context.Context, ideaID, userID uint) (*models.Endorsement, error)
	Create(ctx context.Context, e *models.Endorsement) error
	Save(ctx context.Context, e *models.Endorsement) error
	Delete(ctx context.Context, id uint) error
	DeleteByIdea(ctx context.Context, ideaID uint) error
	ListByIdea(ctx context.Context, ideaID uint) ([]*models.Endorsement, error)
	ListCountedByIdea(ctx context.Context, ideaID uint) ([]*models.Endorsement, error)
	ListActiveByUser(ctx context.Context, userID uint) ([]*models.Endorsement, error)
	CountByIdea(ctx context.Context, ideaID uint) (VoteCounts, error)
	SetPosition(ctx context.Context, id uint, position int) error
	MaxPosition(ctx context.Context) (int, error)
}

type endorsementRepository struct {
	db *gorm.DB
}

func NewEndorsementRepository(db *gorm.DB) EndorsementRepository {
	return &endorsementRepository{db: db}
}

func (r *endorsementRepository) Find(ctx context.Context, ideaID, userID uint) (*models.Endorsement, error) {
	var e models.Endorsement
	err := r.db.WithContext(ctx).Where("idea_id = ? AND user_id = ?", ideaID, userID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts inside a savepoint so a unique violation leaves the outer transaction usable.
func (r *endorsementRepository) Create(ctx context.Context, e *models.Endorsement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(e).Error
	})
}

func (r *endorsementRepository) Save(ctx context.Context, e *models.Endorsement) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *endorsementRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Endorsement{}, id).Error
}

func (r *endorsementRepository) DeleteByIdea(ctx context.Context, ideaID uint) error {
	return r.db.WithContext(ctx).Where("idea_id = ?", ideaID).Delete(&models.Endorsement{}).Error
}

func (r *endorsementRepository) ListByIdea(ctx context.Context, ideaID uint) ([]*models.Endorsement, error) {
	var rows []*models.Endorsement
	err := r.db.WithContext(ctx).Where("idea_id = ?", ideaID).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *endorsementRepository) ListCountedByIdea(ctx context.Context, ideaID uint) ([]*models.Endorsement, error) {
	var rows []*models.Endorsement
	err := r.db.WithContext(ctx).
		Where("idea_id = ? AND status IN ?", ideaID, countedStatuses).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *endorsementRepository) ListActiveByUser(ctx context.Context, userID uint) ([]*models.Endorsement, error) {
	var rows []*models.Endorsement
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.EndorsementStatusActive).
		Order("position ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// CountByIdea is the fresh count query behind the idea's vote counters.
func (r *endorsementRepository) CountByIdea(ctx context.Context, ideaID uint) (VoteCounts, error) {
	var counts VoteCounts
	err := r.db.WithContext(ctx).Model(&models.Endorsement{}).
		Select(
			"COALESCE(SUM(CASE WHEN value > 0 THEN 1 ELSE 0 END), 0) AS up, "+
				"COALESCE(SUM(CASE WHEN value < 0 THEN 1 ELSE 0 END), 0) AS down",
		).
		Where("idea_id = ? AND status IN ?", ideaID, countedStatuses).
		Scan(&counts).Error
	return counts, err
}

func (r *endorsementRepository) SetPosition(ctx context.Context, id uint, position int) error {
	return r.db.WithContext(ctx).Model(&models.Endorsement{}).Where("id = ?", id).
		UpdateColumn("position", position).Error
}

func (r *endorsementRepository) MaxPosition(ctx context.Context) (int, error) {
	var maxPos int
	err := r.db.WithContext(ctx).Model(&models.Endorsement{}).
		Where("status = ?", models.EndorsementStatusActive).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	return maxPos, err
}
