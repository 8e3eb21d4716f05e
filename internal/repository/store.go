// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"agora/internal/models"

	"gorm.io/gorm"
)

// Store groups the repositories bound to one database handle. Transaction hands the
// callback a Store bound to the open transaction; everything done through it commits or
// rolls back together.
type Store interface {
	Ideas() IdeaRepository
	Endorsements() EndorsementRepository
	Points() PointRepository
	Activities() ActivityRepository
	Ads() AdRepository
	Changes() ChangeRepository
	Tags() TagRepository
	Rankings() RankingRepository
	Users() UserRepository
	Notifications() NotificationRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type store struct {
	db *gorm.DB
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Ideas() IdeaRepository                 { return NewIdeaRepository(s.db) }
func (s *store) Endorsements() EndorsementRepository   { return NewEndorsementRepository(s.db) }
func (s *store) Points() PointRepository               { return NewPointRepository(s.db) }
func (s *store) Activities() ActivityRepository        { return NewActivityRepository(s.db) }
func (s *store) Ads() AdRepository                     { return NewAdRepository(s.db) }
func (s *store) Changes() ChangeRepository             { return NewChangeRepository(s.db) }
func (s *store) Tags() TagRepository                   { return NewTagRepository(s.db) }
func (s *store) Rankings() RankingRepository           { return NewRankingRepository(s.db) }
func (s *store) Users() UserRepository                 { return NewUserRepository(s.db) }
func (s *store) Notifications() NotificationRepository { return NewNotificationRepository(s.db) }

// Transaction runs fn in a database transaction. Nested calls open a savepoint.
func (s *store) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx})
	})
}

func notFoundOr(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}
