package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"agora/internal/cache"
	"agora/internal/lifecycle"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"
)

const (
	minNameLen        = 5
	maxNameLen        = 60
	minDescriptionLen = 5
	maxDescriptionLen = 300
	defaultListLimit  = 25
	maxListLimit      = 100
)

type IdeaService struct {
	store     repository.Store
	scopes    repository.IdeaScopes
	lifecycle *LifecycleService
	notifier  NotificationDispatcher
	cache     *cache.Cache
	now       Clock
}

type CreateIdeaInput struct {
	UserID        uint
	Name          string
	Description   string
	CategoryID    uint
	Status        models.IdeaStatus
	SubInstanceID *uint
	IPAddress     string
	UserAgent     string
}

type ListIdeasInput struct {
	Scope  string
	UserID *uint
	Limit  int
	Offset int
}

// IdeaView is the detail representation of an idea with its derived fields.
type IdeaView struct {
	*models.Idea
	CategoryName       string              `json:"category_name"`
	OfficialStatusName string              `json:"official_status_name"`
	ValueName          string              `json:"value_name"`
	MovementText       string              `json:"movement_text"`
	ChangePercent      map[string]*float64 `json:"change_percent"`
	IsNew              bool                `json:"is_new"`
	IsTop              bool                `json:"is_top"`
	IsControversial    bool                `json:"is_controversial_now"`
	HasChange          bool                `json:"has_change"`
	Events             []lifecycle.Event   `json:"events"`
}

func NewIdeaService(
	store repository.Store,
	scopes repository.IdeaScopes,
	lifecycleSvc *LifecycleService,
	notifier NotificationDispatcher,
	c *cache.Cache,
	now Clock,
) *IdeaService {
	return &IdeaService{
		store:     store,
		scopes:    scopes,
		lifecycle: lifecycleSvc,
		notifier:  dispatcherOrNoop(notifier),
		cache:     c,
		now:       clockOrNow(now),
	}
}

// CreateIdea validates and stores a new idea, running the entry actions of its initial state.
func (s *IdeaService) CreateIdea(ctx context.Context, in CreateIdeaInput) (*models.Idea, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)

	if n := utf8.RuneCountInString(name); n < minNameLen || n > maxNameLen {
		return nil, models.NewValidationError(fmt.Sprintf("Name must be between %d and %d characters", minNameLen, maxNameLen))
	}
	if n := utf8.RuneCountInString(description); n < minDescriptionLen || n > maxDescriptionLen {
		return nil, models.NewValidationError(fmt.Sprintf("Description must be between %d and %d characters", minDescriptionLen, maxDescriptionLen))
	}
	if in.CategoryID == 0 {
		return nil, models.NewValidationError("Category is required")
	}

	status := in.Status
	switch status {
	case "":
		status = models.IdeaStatusPublished
	case models.IdeaStatusPublished, models.IdeaStatusDraft, models.IdeaStatusPassive:
	default:
		return nil, models.NewValidationError("Ideas start as published, draft or passive")
	}

	idea := &models.Idea{
		Name:          name,
		Description:   description,
		CategoryID:    in.CategoryID,
		UserID:        in.UserID,
		SubInstanceID: in.SubInstanceID,
		Status:        status,
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
	}

	var entered *transitionTx
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if status == models.IdeaStatusPublished {
			taken, err := tx.Ideas().PublishedNameExists(ctx, name)
			if err != nil {
				return fmt.Errorf("check name: %w", err)
			}
			if taken {
				return models.NewValidationError("An idea with this name already exists")
			}
		}
		if err := tx.Ideas().Create(ctx, idea); err != nil {
			return fmt.Errorf("create idea: %w", err)
		}
		var err error
		if entered, err = s.lifecycle.enter(ctx, tx, idea); err != nil {
			return err
		}
		return tx.Ideas().Save(ctx, idea)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateIdeas(ctx)
	entered.committed(ctx, idea.ID)
	middleware.Logger.InfoContext(ctx, "idea created",
		slog.Uint64("idea_id", uint64(idea.ID)),
		slog.String("status", string(idea.Status)),
	)
	return idea, nil
}

// FlagIdea records a user's report and notifies every active admin.
func (s *IdeaService) FlagIdea(ctx context.Context, ideaID, userID uint) error {
	var notes []*models.Notification
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		idea, err := tx.Ideas().GetByID(ctx, ideaID)
		if err != nil {
			return err
		}
		if err := tx.Ideas().IncrementFlags(ctx, idea.ID); err != nil {
			return fmt.Errorf("increment flags: %w", err)
		}
		if _, err := recordActivity(ctx, tx, models.ActivityIdeaFlag, idea.ID, uintPtr(userID)); err != nil {
			return err
		}

		admins, err := tx.Users().ListActiveAdmins(ctx)
		if err != nil {
			return fmt.Errorf("list admins: %w", err)
		}
		for _, admin := range admins {
			note := &models.Notification{
				IdeaID:      idea.ID,
				Kind:        models.NotificationIdeaFlagged,
				SenderID:    uintPtr(userID),
				RecipientID: admin.ID,
			}
			if err := tx.Notifications().Create(ctx, note); err != nil {
				return fmt.Errorf("create notification: %w", err)
			}
			notes = append(notes, note)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateIdeas(ctx, ideaID)
	for _, note := range notes {
		if err := s.notifier.Dispatch(ctx, note); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to dispatch notification",
				slog.Uint64("notification_id", uint64(note.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	middleware.Logger.InfoContext(ctx, "idea flagged",
		slog.Uint64("idea_id", uint64(ideaID)),
		slog.Int("admins_notified", len(notes)),
	)
	return nil
}

// ListIdeas returns a page of ideas from a named listing.
func (s *IdeaService) ListIdeas(ctx context.Context, in ListIdeasInput) ([]*models.Idea, error) {
	scopes, ok := s.scopes.Named(in.Scope)
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("Unknown listing %q", in.Scope))
	}
	if in.UserID != nil {
		scopes = append(scopes, s.scopes.ByUserID(*in.UserID))
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}
	return s.store.Ideas().List(ctx, limit, offset, scopes...)
}

// GetIdea returns the detail view, served from cache when possible.
func (s *IdeaService) GetIdea(ctx context.Context, ideaID uint) (*IdeaView, error) {
	var view IdeaView
	err := s.cache.Aside(ctx, cache.IdeaKey(ideaID), &view, cache.IdeaTTL, func() error {
		idea, err := s.store.Ideas().GetDetail(ctx, ideaID)
		if err != nil {
			return err
		}
		maxPosition, err := s.MaxPosition(ctx)
		if err != nil {
			return err
		}
		view = s.viewOf(idea, maxPosition)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *IdeaService) viewOf(idea *models.Idea, maxPosition int) IdeaView {
	now := s.now()
	return IdeaView{
		Idea:               idea,
		CategoryName:       idea.CategoryName(),
		OfficialStatusName: idea.OfficialStatusName(),
		ValueName:          idea.ValueName(),
		MovementText:       idea.MovementText(now),
		ChangePercent: map[string]*float64{
			string(models.Window24hr):   finite(idea.ChangePercent(models.Window24hr)),
			string(models.Window7days):  finite(idea.ChangePercent(models.Window7days)),
			string(models.Window30days): finite(idea.ChangePercent(models.Window30days)),
		},
		IsNew:           idea.IsNew(now),
		IsTop:           idea.IsTop(maxPosition),
		IsControversial: idea.IsControversial(),
		HasChange:       idea.HasChange(now),
		Events:          s.lifecycle.Events(idea.Status),
	}
}

// finite drops NaN and infinite percentages, which have no JSON encoding.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Endorsers returns the voters counted on the idea.
func (s *IdeaService) Endorsers(ctx context.Context, ideaID uint) (models.EndorserSet, error) {
	if _, err := s.store.Ideas().GetByID(ctx, ideaID); err != nil {
		return models.EndorserSet{}, err
	}
	rows, err := s.store.Endorsements().ListCountedByIdea(ctx, ideaID)
	if err != nil {
		return models.EndorserSet{}, err
	}
	return models.NewEndorserSet(rows), nil
}

// MaxPosition is the deepest position any active endorsement holds.
func (s *IdeaService) MaxPosition(ctx context.Context) (int, error) {
	var maxPos int
	err := s.cache.Aside(ctx, cache.MaxPositionKey(), &maxPos, cache.MaxPositionTTL, func() error {
		var err error
		maxPos, err = s.store.Endorsements().MaxPosition(ctx)
		return err
	})
	return maxPos, err
}
