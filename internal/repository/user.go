package repository

import (
	"context"

	"agora/internal/models"

	"gorm.io/gorm"
)

// UserRepository reads and updates the voter records the core touches.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	ListActiveAdmins(ctx context.Context) ([]*models.User, error)
	SetTopEndorsement(ctx context.Context, userID uint, endorsementID *uint) error
	// Increment credits capital to the user and records the movement.
	Increment(ctx context.Context, userID uint, amount int, record *models.Capital) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) ListActiveAdmins(ctx context.Context) ([]*models.User, error) {
	var admins []*models.User
	err := r.db.WithContext(ctx).
		Where("is_admin = ? AND status = ?", true, models.UserStatusActive).
		Order("id ASC").
		Find(&admins).Error
	return admins, err
}

func (r *userRepository) SetTopEndorsement(ctx context.Context, userID uint, endorsementID *uint) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("top_endorsement_id", endorsementID).Error
}

func (r *userRepository) Increment(ctx context.Context, userID uint, amount int, record *models.Capital) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("capital_count", gorm.Expr("capital_count + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", userID)
	}
	if record == nil {
		return nil
	}
	record.RecipientID = userID
	record.Amount = amount
	return db.Create(record).Error
}

// NotificationRepository stores notifications addressed to users.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID uint) ([]*models.Notification, error)
	ListByIdea(ctx context.Context, ideaID uint) ([]*models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uint) ([]*models.Notification, error) {
	var out []*models.Notification
	err := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID).Order("id DESC").Find(&out).Error
	return out, err
}

func (r *notificationRepository) ListByIdea(ctx context.Context, ideaID uint) ([]*models.Notification, error) {
	var out []*models.Notification
	err := r.db.WithContext(ctx).Where("idea_id = ?", ideaID).Order("id ASC").Find(&out).Error
	return out, err
}
