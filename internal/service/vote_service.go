package service

import (
	"context"
	"fmt"
	"log/slog"

	"agora/internal/cache"
	"agora/internal/database"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// VoteDirection is the side a user takes on an idea.
type VoteDirection string

const (
	DirectionUp   VoteDirection = "up"
	DirectionDown VoteDirection = "down"
)

func (d VoteDirection) value() (int, bool) {
	switch d {
	case DirectionUp:
		return models.VoteUp, true
	case DirectionDown:
		return models.VoteDown, true
	}
	return 0, false
}

// defaultSubInstanceID is the main community; votes cast there store no sub-instance.
const defaultSubInstanceID = 1

type voteOutcome string

const (
	outcomeCreated     voteOutcome = "created"
	outcomeFlipped     voteOutcome = "flipped"
	outcomeReactivated voteOutcome = "reactivated"
	outcomeUnchanged   voteOutcome = "unchanged"
)

type VoteService struct {
	store repository.Store
	cache *cache.Cache
}

// VoteInput is a request to record a vote. A nil UserID means there is nobody to vote as.
type VoteInput struct {
	IdeaID    uint
	UserID    *uint
	Direction VoteDirection
	Context   models.VoteContext
}

func NewVoteService(store repository.Store, c *cache.Cache) *VoteService {
	return &VoteService{store: store, cache: c}
}

// Endorse casts an up vote.
func (s *VoteService) Endorse(ctx context.Context, ideaID uint, userID *uint, vc models.VoteContext) (*models.Endorsement, error) {
	return s.CastVote(ctx, VoteInput{IdeaID: ideaID, UserID: userID, Direction: DirectionUp, Context: vc})
}

// Oppose casts a down vote.
func (s *VoteService) Oppose(ctx context.Context, ideaID uint, userID *uint, vc models.VoteContext) (*models.Endorsement, error) {
	return s.CastVote(ctx, VoteInput{IdeaID: ideaID, UserID: userID, Direction: DirectionDown, Context: vc})
}

// CastVote records the user's vote on the idea and refreshes the idea's counters in the
// same transaction. The user keeps a single ledger row per idea: a vote in the other
// direction flips it, a vote on a replaced row reactivates it.
func (s *VoteService) CastVote(ctx context.Context, in VoteInput) (*models.Endorsement, error) {
	if in.UserID == nil {
		return nil, nil
	}
	value, ok := in.Direction.value()
	if !ok {
		return nil, models.NewValidationError("Direction must be up or down")
	}

	span, ctx := observability.StartSpan(ctx, "vote.cast",
		attribute.Int64("idea.id", int64(in.IdeaID)),
		attribute.Int64("user.id", int64(*in.UserID)),
		attribute.String("vote.direction", string(in.Direction)),
	)

	var (
		result  *models.Endorsement
		outcome voteOutcome
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		idea, err := tx.Ideas().GetByID(ctx, in.IdeaID)
		if err != nil {
			return err
		}
		result, outcome, err = applyVote(ctx, tx, idea.ID, *in.UserID, value, in.Context)
		if err != nil {
			return err
		}
		if outcome == outcomeUnchanged {
			return nil
		}
		if _, err := recordActivity(ctx, tx, voteActivity(outcome, value), idea.ID, in.UserID); err != nil {
			return err
		}
		return recount(ctx, tx, idea)
	})
	span.End(err)
	if err != nil {
		return nil, err
	}

	observability.VotesCast.WithLabelValues(string(in.Direction), string(outcome)).Inc()
	if outcome != outcomeUnchanged {
		s.cache.InvalidateIdeas(ctx, in.IdeaID)
	}
	middleware.Logger.InfoContext(ctx, "vote cast",
		slog.Uint64("idea_id", uint64(in.IdeaID)),
		slog.String("direction", string(in.Direction)),
		slog.String("outcome", string(outcome)),
	)
	return result, nil
}

// WithdrawVote removes the user's ledger row for the idea.
func (s *VoteService) WithdrawVote(ctx context.Context, ideaID, userID uint) error {
	var withdrawn *models.Endorsement
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		idea, err := tx.Ideas().GetByID(ctx, ideaID)
		if err != nil {
			return err
		}
		e, err := tx.Endorsements().Find(ctx, ideaID, userID)
		if err != nil {
			return fmt.Errorf("find endorsement: %w", err)
		}
		if e == nil {
			return models.NewNotFoundError("Endorsement", fmt.Sprintf("%d/%d", ideaID, userID))
		}
		if err := tx.Endorsements().Delete(ctx, e.ID); err != nil {
			return fmt.Errorf("delete endorsement: %w", err)
		}
		kind := models.ActivityEndorsementDelete
		if e.IsDown() {
			kind = models.ActivityOppositionDelete
		}
		if _, err := recordActivity(ctx, tx, kind, ideaID, uintPtr(userID)); err != nil {
			return err
		}
		withdrawn = e
		return recount(ctx, tx, idea)
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateIdeas(ctx, ideaID)
	middleware.Logger.InfoContext(ctx, "vote withdrawn",
		slog.Uint64("idea_id", uint64(ideaID)),
		slog.String("direction", withdrawn.Direction()),
	)
	return nil
}

// applyVote creates or updates the (idea, user) ledger row. The unique index decides
// concurrent inserts: the loser re-reads the winning row and applies its vote to it.
func applyVote(ctx context.Context, tx repository.Store, ideaID, userID uint, value int, vc models.VoteContext) (*models.Endorsement, voteOutcome, error) {
	if !models.ValidVote(value) {
		return nil, "", models.NewValidationError(fmt.Sprintf("Invalid vote value %d", value))
	}
	ledger := tx.Endorsements()

	existing, err := ledger.Find(ctx, ideaID, userID)
	if err != nil {
		return nil, "", fmt.Errorf("find endorsement: %w", err)
	}

	if existing == nil {
		e, err := insertVote(ctx, tx, ideaID, userID, value, vc)
		if err == nil {
			return e, outcomeCreated, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, "", fmt.Errorf("create endorsement: %w", err)
		}

		observability.VoteConflicts.Inc()
		middleware.Logger.WarnContext(ctx, "concurrent vote insert, retrying as update",
			slog.Uint64("idea_id", uint64(ideaID)),
			slog.Uint64("user_id", uint64(userID)),
		)
		existing, err = ledger.Find(ctx, ideaID, userID)
		if err != nil {
			return nil, "", fmt.Errorf("reload endorsement: %w", err)
		}
		if existing == nil {
			return nil, "", models.NewIntegrityViolationError("Vote conflicts with a concurrent change", nil)
		}
	}

	outcome := reconcileVote(existing, value)
	if outcome == outcomeUnchanged {
		return existing, outcome, nil
	}
	if err := ledger.Save(ctx, existing); err != nil {
		return nil, "", fmt.Errorf("save endorsement: %w", err)
	}
	return existing, outcome, nil
}

func insertVote(ctx context.Context, tx repository.Store, ideaID, userID uint, value int, vc models.VoteContext) (*models.Endorsement, error) {
	active, err := tx.Endorsements().ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user endorsements: %w", err)
	}

	e := &models.Endorsement{
		IdeaID:        ideaID,
		UserID:        userID,
		Value:         value,
		Status:        models.EndorsementStatusActive,
		Position:      len(active) + 1,
		SubInstanceID: vc.SubInstanceID,
		ReferralID:    vc.ReferralID,
		IPAddress:     vc.IPAddress,
		UserAgent:     vc.UserAgent,
	}
	if e.SubInstanceID != nil && *e.SubInstanceID == defaultSubInstanceID {
		e.SubInstanceID = nil
	}
	if err := tx.Endorsements().Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// reconcileVote applies value to an existing row and reports what changed.
func reconcileVote(e *models.Endorsement, value int) voteOutcome {
	switch {
	case e.Value != value:
		e.Value = value
		if e.Status == models.EndorsementStatusReplaced {
			e.Status = models.EndorsementStatusActive
		}
		return outcomeFlipped
	case e.Status == models.EndorsementStatusReplaced:
		e.Status = models.EndorsementStatusActive
		return outcomeReactivated
	}
	return outcomeUnchanged
}

func voteActivity(outcome voteOutcome, value int) models.ActivityKind {
	up := value == models.VoteUp
	switch {
	case outcome == outcomeFlipped && up:
		return models.ActivityEndorsementFlipped
	case outcome == outcomeFlipped:
		return models.ActivityOppositionFlipped
	case up:
		return models.ActivityEndorsementNew
	}
	return models.ActivityOppositionNew
}
