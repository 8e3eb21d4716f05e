package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agora/internal/cache"
	"agora/internal/lifecycle"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// LifecycleService moves ideas through their lifecycle and applies administrative
// official-status decisions. Every call runs in one transaction.
type LifecycleService struct {
	store    repository.Store
	notifier NotificationDispatcher
	cache    *cache.Cache
	now      Clock
	machine  *lifecycle.Machine[*transitionTx]
}

// transitionTx is the transaction an entry action writes through, plus the side effects
// that may only run once it has committed.
type transitionTx struct {
	repository.Store
	afterCommit []func(ctx context.Context) error
}

func newTransitionTx(tx repository.Store) *transitionTx {
	return &transitionTx{Store: tx}
}

func (t *transitionTx) onCommit(fn func(ctx context.Context) error) {
	t.afterCommit = append(t.afterCommit, fn)
}

// committed runs the deferred side effects. Failures are logged; the transition already stands.
func (t *transitionTx) committed(ctx context.Context, ideaID uint) {
	if t == nil {
		return
	}
	for _, fn := range t.afterCommit {
		if err := fn(ctx); err != nil {
			middleware.Logger.WarnContext(ctx, "post-commit transition step failed",
				slog.Uint64("idea_id", uint64(ideaID)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func NewLifecycleService(
	store repository.Store,
	notifier NotificationDispatcher,
	c *cache.Cache,
	now Clock,
) *LifecycleService {
	s := &LifecycleService{
		store:    store,
		notifier: dispatcherOrNoop(notifier),
		cache:    c,
		now:      clockOrNow(now),
	}
	s.machine = lifecycle.NewIdeaMachine[*transitionTx]().
		OnEnter(models.IdeaStatusPublished, s.enterPublished).
		OnEnter(models.IdeaStatusDeleted, s.enterDeleted).
		OnExit(models.IdeaStatusDeleted, s.leaveDeleted).
		OnEnter(models.IdeaStatusAbusive, s.enterAbusive).
		OnEnter(models.IdeaStatusBuried, s.enterBuried)
	return s
}

// Events lists the events an idea in state can accept.
func (s *LifecycleService) Events(state models.IdeaStatus) []lifecycle.Event {
	return s.machine.Events(state)
}

func (s *LifecycleService) Publish(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.Fire(ctx, ideaID, lifecycle.EventPublish)
}

func (s *LifecycleService) Delete(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.Fire(ctx, ideaID, lifecycle.EventDelete)
}

func (s *LifecycleService) Undelete(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.Fire(ctx, ideaID, lifecycle.EventUndelete)
}

func (s *LifecycleService) Bury(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.Fire(ctx, ideaID, lifecycle.EventBury)
}

func (s *LifecycleService) Deactivate(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.Fire(ctx, ideaID, lifecycle.EventDeactivate)
}

func (s *LifecycleService) MarkAbusive(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.Fire(ctx, ideaID, lifecycle.EventAbusive)
}

// Fire applies event to the idea and persists the result together with everything the
// entry actions wrote. An illegal event leaves the idea as it was.
func (s *LifecycleService) Fire(ctx context.Context, ideaID uint, event lifecycle.Event) (*models.Idea, error) {
	span, ctx := observability.StartSpan(ctx, "idea.transition",
		attribute.Int64("idea.id", int64(ideaID)),
		attribute.String("idea.event", string(event)),
	)

	var (
		idea *models.Idea
		t    lifecycle.Transition
		ttx  *transitionTx
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		idea, err = tx.Ideas().GetByID(ctx, ideaID)
		if err != nil {
			return err
		}
		ttx = newTransitionTx(tx)
		t, err = s.machine.Fire(ctx, ttx, idea, event, s.now())
		if err != nil {
			return err
		}
		span.AddAttributes(
			attribute.String("idea.from", string(t.From)),
			attribute.String("idea.to", string(t.To)),
		)
		if err := tx.Ideas().Save(ctx, idea); err != nil {
			return fmt.Errorf("save idea: %w", err)
		}
		return nil
	})
	span.End(err)
	if err != nil {
		return nil, err
	}

	observability.IdeaTransitions.WithLabelValues(string(t.Event), string(t.To)).Inc()
	s.cache.InvalidateIdeas(ctx, ideaID)
	ttx.committed(ctx, ideaID)
	middleware.Logger.InfoContext(ctx, "idea transitioned",
		slog.Uint64("idea_id", uint64(ideaID)),
		slog.String("event", string(t.Event)),
		slog.String("from", string(t.From)),
		slog.String("to", string(t.To)),
	)
	return idea, nil
}

// enter runs the entry actions for an idea created directly in its current state. The
// caller runs the returned transaction's committed hook once its own transaction commits.
func (s *LifecycleService) enter(ctx context.Context, tx repository.Store, idea *models.Idea) (*transitionTx, error) {
	ttx := newTransitionTx(tx)
	return ttx, s.machine.Enter(ctx, ttx, idea, s.now())
}

func (s *LifecycleService) enterPublished(ctx context.Context, tx *transitionTx, idea *models.Idea, t lifecycle.Transition) error {
	at := t.At
	idea.PublishedAt = &at
	_, err := recordActivity(ctx, tx, models.ActivityIdeaNew, idea.ID, uintPtr(idea.UserID))
	return err
}

func (s *LifecycleService) enterDeleted(ctx context.Context, tx *transitionTx, idea *models.Idea, t lifecycle.Transition) error {
	if err := tx.Activities().SetStatusByIdea(ctx, idea.ID, models.ActivityStatusDeleted); err != nil {
		return fmt.Errorf("delete activities: %w", err)
	}
	if err := tx.Endorsements().DeleteByIdea(ctx, idea.ID); err != nil {
		return fmt.Errorf("destroy endorsements: %w", err)
	}
	if err := recount(ctx, tx, idea); err != nil {
		return err
	}
	at := t.At
	idea.DeletedAt = &at
	return nil
}

func (s *LifecycleService) leaveDeleted(_ context.Context, _ *transitionTx, idea *models.Idea, t lifecycle.Transition) error {
	if t.Event == lifecycle.EventUndelete {
		idea.DeletedAt = nil
	}
	return nil
}

func (s *LifecycleService) enterAbusive(ctx context.Context, tx *transitionTx, idea *models.Idea, _ lifecycle.Transition) error {
	related, err := tx.Notifications().ListByIdea(ctx, idea.ID)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	ideaID, ownerID := idea.ID, idea.UserID
	tx.onCommit(func(ctx context.Context) error {
		if err := s.notifier.DoAbusive(ctx, ideaID, ownerID, related); err != nil {
			return fmt.Errorf("report abusive idea: %w", err)
		}
		return nil
	})
	idea.FlagsCount = 0
	return nil
}

func (s *LifecycleService) enterBuried(ctx context.Context, _ *transitionTx, idea *models.Idea, t lifecycle.Transition) error {
	middleware.Logger.InfoContext(ctx, "idea buried",
		slog.Uint64("idea_id", uint64(idea.ID)),
		slog.String("from", string(t.From)),
	)
	return nil
}

// officialCall describes one administrative official-status decision. An empty status
// leaves the lifecycle state untouched.
type officialCall struct {
	name   string
	code   int
	status models.IdeaStatus
	kind   models.ActivityKind
	extra  func(ctx context.Context, tx repository.Store, idea *models.Idea, now time.Time) (int, error)
}

// Reactivate returns a finished idea to the published listings and re-ranks its endorsers.
func (s *LifecycleService) Reactivate(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.changeOfficial(ctx, ideaID, officialCall{
		name:   "reactivate",
		code:   models.OfficialStatusUnknown,
		status: models.IdeaStatusPublished,
		kind:   models.ActivityOfficialStatusReactivated,
		extra: func(ctx context.Context, tx repository.Store, idea *models.Idea, _ time.Time) (int, error) {
			idea.ChangeID = nil
			idea.Change = nil
			return 0, rerankEndorsers(ctx, tx, idea.ID)
		},
	})
}

func (s *LifecycleService) MarkFailed(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.changeOfficial(ctx, ideaID, officialCall{
		name:   "failed",
		code:   models.OfficialStatusFailed,
		status: models.IdeaStatusInactive,
		kind:   models.ActivityOfficialStatusFailed,
	})
}

func (s *LifecycleService) MarkSuccessful(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.changeOfficial(ctx, ideaID, officialCall{
		name:   "successful",
		code:   models.OfficialStatusSuccessful,
		status: models.IdeaStatusInactive,
		kind:   models.ActivityOfficialStatusSuccessful,
	})
}

// MarkInTheWorks also finishes the idea's running ads and refunds their unspent capital.
func (s *LifecycleService) MarkInTheWorks(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.changeOfficial(ctx, ideaID, officialCall{
		name:   "in_the_works",
		code:   models.OfficialStatusInProgress,
		status: models.IdeaStatusInactive,
		kind:   models.ActivityOfficialStatusInTheWorks,
		extra: func(ctx context.Context, tx repository.Store, idea *models.Idea, now time.Time) (int, error) {
			return refundAds(ctx, tx, tx.Users(), idea, now)
		},
	})
}

func (s *LifecycleService) MarkCompromised(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.changeOfficial(ctx, ideaID, officialCall{
		name:   "compromised",
		code:   models.OfficialStatusInProgress,
		status: models.IdeaStatusInactive,
		kind:   models.ActivityOfficialStatusCompromised,
	})
}

// MarkPublishedInWorks records that the idea was picked up, without changing its state.
func (s *LifecycleService) MarkPublishedInWorks(ctx context.Context, ideaID uint) (*models.Idea, error) {
	return s.changeOfficial(ctx, ideaID, officialCall{
		name: "published_in_works",
		code: models.OfficialStatusPublishedInWorks,
		kind: models.ActivityOfficialStatusInTheWorks,
	})
}

// ChangeOfficialStatus dispatches an official status code to its call.
func (s *LifecycleService) ChangeOfficialStatus(ctx context.Context, ideaID uint, code int) (*models.Idea, error) {
	switch code {
	case models.OfficialStatusUnknown:
		return s.Reactivate(ctx, ideaID)
	case models.OfficialStatusSuccessful:
		return s.MarkSuccessful(ctx, ideaID)
	case models.OfficialStatusFailed:
		return s.MarkFailed(ctx, ideaID)
	case models.OfficialStatusInProgress:
		return s.MarkInTheWorks(ctx, ideaID)
	case models.OfficialStatusPublishedInWorks:
		return s.MarkPublishedInWorks(ctx, ideaID)
	}
	return nil, models.NewValidationError(fmt.Sprintf("Unknown official status %d", code))
}

func (s *LifecycleService) changeOfficial(ctx context.Context, ideaID uint, call officialCall) (*models.Idea, error) {
	span, ctx := observability.StartSpan(ctx, "idea.official_status",
		attribute.Int64("idea.id", int64(ideaID)),
		attribute.String("official.call", call.name),
	)

	var (
		idea     *models.Idea
		note     *models.Notification
		refunded int
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		idea, err = tx.Ideas().GetByID(ctx, ideaID)
		if err != nil {
			return err
		}
		now := s.now()
		if _, err := recordActivity(ctx, tx, call.kind, idea.ID, nil); err != nil {
			return err
		}

		idea.StatusChangedAt = &now
		idea.OfficialStatus = call.code
		if call.status != "" {
			idea.Status = call.status
		}
		if call.extra != nil {
			if refunded, err = call.extra(ctx, tx, idea, now); err != nil {
				return err
			}
		}
		if err := tx.Ideas().Save(ctx, idea); err != nil {
			return fmt.Errorf("save idea: %w", err)
		}

		note = &models.Notification{
			IdeaID:      idea.ID,
			Kind:        models.NotificationOfficialChanged,
			RecipientID: idea.UserID,
		}
		if err := tx.Notifications().Create(ctx, note); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		return nil
	})
	span.End(err)
	if err != nil {
		return nil, err
	}

	observability.OfficialStatusChanges.WithLabelValues(call.name).Inc()
	if refunded > 0 {
		observability.AdRefunds.Add(float64(refunded))
	}
	s.cache.InvalidateIdeas(ctx, ideaID)
	if err := s.notifier.Dispatch(ctx, note); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to dispatch notification",
			slog.Uint64("idea_id", uint64(ideaID)),
			slog.String("error", err.Error()),
		)
	}
	middleware.Logger.InfoContext(ctx, "official status changed",
		slog.Uint64("idea_id", uint64(ideaID)),
		slog.String("call", call.name),
		slog.Int("official_status", call.code),
		slog.String("status", string(idea.Status)),
	)
	return idea, nil
}

// rerankEndorsers activates the idea's counted endorsements, then renumbers each affected
// user's active endorsements from 1 and points the user's top endorsement at row 1.
func rerankEndorsers(ctx context.Context, tx repository.Store, ideaID uint) error {
	rows, err := tx.Endorsements().ListCountedByIdea(ctx, ideaID)
	if err != nil {
		return fmt.Errorf("list endorsements: %w", err)
	}

	users := make([]uint, 0, len(rows))
	seen := make(map[uint]struct{}, len(rows))
	for _, e := range rows {
		if e.Status != models.EndorsementStatusActive {
			e.Status = models.EndorsementStatusActive
			if err := tx.Endorsements().Save(ctx, e); err != nil {
				return fmt.Errorf("activate endorsement %d: %w", e.ID, err)
			}
		}
		if _, ok := seen[e.UserID]; !ok {
			seen[e.UserID] = struct{}{}
			users = append(users, e.UserID)
		}
	}

	for _, userID := range users {
		if err := renumberUser(ctx, tx, userID); err != nil {
			return err
		}
	}
	return nil
}

func renumberUser(ctx context.Context, tx repository.Store, userID uint) error {
	active, err := tx.Endorsements().ListActiveByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list user endorsements: %w", err)
	}
	for i, e := range active {
		row := i + 1
		if e.Position == row {
			continue
		}
		if err := tx.Endorsements().SetPosition(ctx, e.ID, row); err != nil {
			return fmt.Errorf("renumber endorsement %d: %w", e.ID, err)
		}
	}
	if len(active) == 0 {
		return nil
	}

	user, err := tx.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	top := active[0].ID
	if user.TopEndorsementID != nil && *user.TopEndorsementID == top {
		return nil
	}
	return tx.Users().SetTopEndorsement(ctx, userID, &top)
}

// refundAds finishes the idea's active ads and credits each owner the unspent capital.
// It returns the total refunded.
func refundAds(ctx context.Context, tx repository.Store, ledger CapitalLedger, idea *models.Idea, now time.Time) (int, error) {
	ads, err := tx.Ads().ListActiveByIdea(ctx, idea.ID)
	if err != nil {
		return 0, fmt.Errorf("list ads: %w", err)
	}

	total := 0
	for _, ad := range ads {
		ad.Status = models.AdStatusFinished
		ad.FinishedAt = &now
		if err := tx.Ads().Save(ctx, ad); err != nil {
			return 0, fmt.Errorf("finish ad %d: %w", ad.ID, err)
		}

		refund := ad.Refund()
		if refund == 0 {
			continue
		}
		capital := &models.Capital{IdeaID: uintPtr(idea.ID), Kind: models.CapitalKindAdRefund}
		if err := ledger.Increment(ctx, ad.UserID, refund, capital); err != nil {
			return 0, fmt.Errorf("refund ad %d: %w", ad.ID, err)
		}
		a := &models.Activity{
			Kind:      models.ActivityCapitalAdRefunded,
			IdeaID:    idea.ID,
			UserID:    uintPtr(ad.UserID),
			CapitalID: uintPtr(capital.ID),
			Status:    models.ActivityStatusActive,
		}
		if err := tx.Activities().Create(ctx, a); err != nil {
			return 0, fmt.Errorf("record refund activity: %w", err)
		}
		total += refund
	}
	return total, nil
}
