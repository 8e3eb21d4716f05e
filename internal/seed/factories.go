// Package seed creates demo data for development databases. Ideas and votes go through the
// services so counters, positions and activities come out consistent.
package seed

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"agora/internal/models"
	"agora/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities from a seeded faker.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	n     int
}

// NewFactory creates a Factory. The same seed produces the same sequence of values.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	return &Factory{db: db, faker: gofakeit.New(seed)}
}

// CreateUser persists a user. Optional overrides run before the insert.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	f.n++
	user := &models.User{
		Login:        fmt.Sprintf("%s%d", strings.ToLower(f.faker.Username()), f.n),
		Email:        f.faker.Email(),
		Status:       models.UserStatusActive,
		CapitalCount: f.faker.Number(0, 50),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// CreateCategory returns the category with name, creating it when missing.
func (f *Factory) CreateCategory(name string) (*models.Category, error) {
	category := &models.Category{}
	if err := f.db.Where(models.Category{Name: name}).FirstOrCreate(category).Error; err != nil {
		return nil, fmt.Errorf("create category %q: %w", name, err)
	}
	return category, nil
}

// IdeaInput builds a valid idea submission for the owner.
func (f *Factory) IdeaInput(ownerID, categoryID uint) service.CreateIdeaInput {
	return service.CreateIdeaInput{
		UserID:      ownerID,
		Name:        clip(strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 6)), "."), 5, 60),
		Description: clip(f.faker.Sentence(f.faker.Number(8, 20)), 5, 300),
		CategoryID:  categoryID,
		IPAddress:   f.faker.IPv4Address(),
		UserAgent:   f.faker.UserAgent(),
	}
}

// Direction picks up with probability upShare.
func (f *Factory) Direction(upShare float64) service.VoteDirection {
	if f.faker.Float64Range(0, 1) < upShare {
		return service.DirectionUp
	}
	return service.DirectionDown
}

// Pick returns up to n distinct users in random order.
func (f *Factory) Pick(users []*models.User, n int) []*models.User {
	shuffled := make([]*models.User, len(users))
	copy(shuffled, users)
	f.faker.ShuffleAnySlice(shuffled)
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// clip trims s to at most maxRunes and pads it to minRunes.
func clip(s string, minRunes, maxRunes int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxRunes]))
	}
	for utf8.RuneCountInString(s) < minRunes {
		s += "!"
	}
	return s
}
