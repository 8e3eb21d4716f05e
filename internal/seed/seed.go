package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/service"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Users        int
	Admins       int
	Ideas        int
	VotesPerIdea int
	// UpShare is the probability that a seeded vote is an endorsement.
	UpShare float64
	Clean   bool
}

// DefaultOptions is a small but lively data set.
var DefaultOptions = Options{
	Users:        40,
	Admins:       2,
	Ideas:        60,
	VotesPerIdea: 12,
	UpShare:      0.7,
	Clean:        true,
}

var categoryNames = []string{
	"Transit", "Parks", "Housing", "Schools", "Safety", "Libraries", "Streets", "Environment",
}

// Summary reports what a run created.
type Summary struct {
	Users  []*models.User
	Admins []*models.User
	Ideas  int
	Votes  int
}

// Seeder populates a database.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	ideas   *service.IdeaService
	votes   *service.VoteService
}

// NewSeeder wires the services without cache or notification fan-out.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	store := repository.NewStore(db)
	lifecycleSvc := service.NewLifecycleService(store, nil, nil, time.Now)
	return &Seeder{
		db:      db,
		factory: NewFactory(db, seed),
		ideas:   service.NewIdeaService(store, repository.NewIdeaScopes(false), lifecycleSvc, nil, nil, time.Now),
		votes:   service.NewVoteService(store, nil),
	}
}

// ClearAll deletes every row from the application tables, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	all := models.All()
	slices.Reverse(all)
	for _, m := range all {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "database cleared")
	return nil
}

// Run seeds users, ideas and votes according to opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	categories := make([]*models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		c, err := s.factory.CreateCategory(name)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	summary := &Summary{}
	for i := 0; i < opts.Admins; i++ {
		admin, err := s.factory.CreateUser(func(u *models.User) { u.IsAdmin = true })
		if err != nil {
			return nil, err
		}
		summary.Admins = append(summary.Admins, admin)
	}
	for i := 0; i < opts.Users; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			return nil, err
		}
		summary.Users = append(summary.Users, user)
	}
	if len(summary.Users) == 0 {
		return summary, nil
	}

	for i := 0; i < opts.Ideas; i++ {
		owner := summary.Users[i%len(summary.Users)]
		category := categories[i%len(categories)]
		idea, err := s.ideas.CreateIdea(ctx, s.factory.IdeaInput(owner.ID, category.ID))
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
				// Faker produced a name already taken.
				continue
			}
			return nil, fmt.Errorf("create idea: %w", err)
		}
		summary.Ideas++

		for _, voter := range s.factory.Pick(summary.Users, opts.VotesPerIdea) {
			_, err := s.votes.CastVote(ctx, service.VoteInput{
				IdeaID:    idea.ID,
				UserID:    &voter.ID,
				Direction: s.factory.Direction(opts.UpShare),
			})
			if err != nil {
				return nil, fmt.Errorf("cast vote on idea %d: %w", idea.ID, err)
			}
			summary.Votes++
		}
	}

	middleware.Logger.InfoContext(ctx, "database seeded",
		slog.Int("users", len(summary.Users)),
		slog.Int("admins", len(summary.Admins)),
		slog.Int("ideas", summary.Ideas),
		slog.Int("votes", summary.Votes),
	)
	return summary, nil
}
