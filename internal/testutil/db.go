// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"agora/internal/database"
	"agora/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database. The pool is pinned to one connection so
// every query sees the same memory database; code running inside a transaction must use the
// transaction handle or it will block.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Silent))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Fixtures creates rows with sensible defaults.
type Fixtures struct {
	t  *testing.T
	db *gorm.DB
	n  int
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) User(mutators ...func(*models.User)) *models.User {
	f.t.Helper()
	f.n++
	u := &models.User{Login: fmt.Sprintf("user%d", f.n), Status: models.UserStatusActive}
	for _, m := range mutators {
		m(u)
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func (f *Fixtures) Category(name string) *models.Category {
	f.t.Helper()
	c := &models.Category{Name: name}
	require.NoError(f.t, f.db.Create(c).Error)
	return c
}

// Idea creates a published idea owned by ownerID without running lifecycle callbacks.
func (f *Fixtures) Idea(ownerID uint, mutators ...func(*models.Idea)) *models.Idea {
	f.t.Helper()
	f.n++
	published := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	i := &models.Idea{
		Name:        fmt.Sprintf("Idea number %d", f.n),
		Description: "A fixture idea",
		CategoryID:  1,
		UserID:      ownerID,
		Status:      models.IdeaStatusPublished,
		PublishedAt: &published,
	}
	for _, m := range mutators {
		m(i)
	}
	require.NoError(f.t, f.db.Create(i).Error)
	return i
}

// Endorsement creates an active ledger row.
func (f *Fixtures) Endorsement(ideaID, userID uint, value int, mutators ...func(*models.Endorsement)) *models.Endorsement {
	f.t.Helper()
	e := &models.Endorsement{IdeaID: ideaID, UserID: userID, Value: value, Status: models.EndorsementStatusActive}
	for _, m := range mutators {
		m(e)
	}
	require.NoError(f.t, f.db.Create(e).Error)
	return e
}

// Activity creates an activity of kind on ideaID.
func (f *Fixtures) Activity(ideaID uint, kind models.ActivityKind) *models.Activity {
	f.t.Helper()
	a := &models.Activity{IdeaID: ideaID, Kind: kind, Status: models.ActivityStatusActive}
	require.NoError(f.t, f.db.Create(a).Error)
	return a
}
