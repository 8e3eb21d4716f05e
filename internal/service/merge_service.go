package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agora/internal/cache"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// MergeOptions controls a merge. Preserve keeps the source idea and its changes; Flip turns
// the source's supporters into opponents of the target and vice versa.
type MergeOptions struct {
	Preserve bool
	Flip     bool
}

func (o MergeOptions) mode() string {
	mode := "merge"
	if o.Flip {
		mode = "flip"
	}
	if o.Preserve {
		mode += "_preserve"
	}
	return mode
}

type MergeService struct {
	store   repository.Store
	cache   *cache.Cache
	timeout time.Duration
}

// NewMergeService creates a MergeService. A zero timeout leaves the caller's deadline alone.
func NewMergeService(store repository.Store, c *cache.Cache, timeout time.Duration) *MergeService {
	return &MergeService{store: store, cache: c, timeout: timeout}
}

// FlipInto merges source into target with every vote and argument inverted.
func (s *MergeService) FlipInto(ctx context.Context, sourceID, targetID uint, preserve bool) (*models.Idea, error) {
	return s.MergeInto(ctx, sourceID, targetID, MergeOptions{Preserve: preserve, Flip: true})
}

// MergeInto folds the source idea into the target and returns the reloaded target. The
// whole merge is one transaction; a failing step rolls everything back.
func (s *MergeService) MergeInto(ctx context.Context, sourceID, targetID uint, opts MergeOptions) (*models.Idea, error) {
	if sourceID == targetID {
		return nil, models.NewValidationError("Cannot merge an idea into itself")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	mode := opts.mode()
	span, ctx := observability.StartSpan(ctx, "idea.merge",
		attribute.Int64("merge.source_id", int64(sourceID)),
		attribute.Int64("merge.target_id", int64(targetID)),
		attribute.String("merge.mode", mode),
	)
	start := time.Now()

	var target *models.Idea
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		m, err := loadMerge(ctx, tx, sourceID, targetID, opts)
		if err != nil {
			return err
		}
		target, err = m.run(ctx)
		return err
	})
	observability.MergeDuration.Observe(time.Since(start).Seconds())
	span.End(err)
	if err != nil {
		observability.Merges.WithLabelValues(mode, "failed").Inc()
		middleware.Logger.WarnContext(ctx, "idea merge failed",
			slog.Uint64("source_id", uint64(sourceID)),
			slog.Uint64("target_id", uint64(targetID)),
			slog.String("mode", mode),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	observability.Merges.WithLabelValues(mode, "ok").Inc()
	s.cache.InvalidateIdeas(ctx, sourceID, targetID)
	middleware.Logger.InfoContext(ctx, "idea merged",
		slog.Uint64("source_id", uint64(sourceID)),
		slog.Uint64("target_id", uint64(targetID)),
		slog.String("mode", mode),
	)
	return target, nil
}

type merge struct {
	tx     repository.Store
	source *models.Idea
	target *models.Idea
	opts   MergeOptions
}

func loadMerge(ctx context.Context, tx repository.Store, sourceID, targetID uint, opts MergeOptions) (*merge, error) {
	target, err := tx.Ideas().GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	source, err := tx.Ideas().GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return &merge{tx: tx, source: source, target: target, opts: opts}, nil
}

func (m *merge) run(ctx context.Context) (*models.Idea, error) {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"move endorsements", m.moveEndorsements},
		{"recount target", m.recountTarget},
		{"drop source activities", m.dropSourceActivities},
		{"move activities", m.moveActivities},
		{"move ads", m.moveAds},
		{"move points", m.movePoints},
		{"repoint incoming points", m.repointIncoming},
		{"destroy changes", m.destroyChanges},
		{"clear tags", m.clearTags},
		{"purge rankings", m.purgeRankings},
		{"retire source", m.retireSource},
	}
	// Step 1 is loading both ideas.
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, models.NewMergeFailedError(fmt.Sprintf("step %d: %s", i+2, step.name), err)
		}
		if err := step.fn(ctx); err != nil {
			return nil, models.NewMergeFailedError(fmt.Sprintf("step %d: %s", i+2, step.name), err)
		}
	}

	target, err := m.tx.Ideas().GetByID(ctx, m.target.ID)
	if err != nil {
		return nil, models.NewMergeFailedError(fmt.Sprintf("step %d: reload target", len(steps)+2), err)
	}
	return target, nil
}

// moveEndorsements moves the votes of users who have not voted on the target. The rest
// stay on the source.
func (m *merge) moveEndorsements(ctx context.Context) error {
	existing, err := m.tx.Endorsements().ListByIdea(ctx, m.target.ID)
	if err != nil {
		return err
	}
	voters := models.NewEndorserSet(existing)

	rows, err := m.tx.Endorsements().ListByIdea(ctx, m.source.ID)
	if err != nil {
		return err
	}
	for _, e := range rows {
		if voters.Has(e.UserID) {
			continue
		}
		e.IdeaID = m.target.ID
		if m.opts.Flip {
			e.Value = -e.Value
		}
		if err := m.tx.Endorsements().Save(ctx, e); err != nil {
			return fmt.Errorf("move endorsement %d: %w", e.ID, err)
		}
	}
	return nil
}

func (m *merge) recountTarget(ctx context.Context) error {
	return recount(ctx, m.tx, m.target)
}

func (m *merge) dropSourceActivities(ctx context.Context) error {
	return m.tx.Activities().DeleteKinds(ctx, m.source.ID, models.NonTransferableKinds())
}

func (m *merge) moveActivities(ctx context.Context) error {
	activities, err := m.tx.Activities().ListByIdea(ctx, m.source.ID)
	if err != nil {
		return err
	}
	for _, a := range activities {
		changed := false
		if m.opts.Flip {
			for i := range a.Comments {
				c := &a.Comments[i]
				if !c.IsEndorser && !c.IsOpposer {
					continue
				}
				c.Invert()
				if err := m.tx.Activities().SaveComment(ctx, c); err != nil {
					return fmt.Errorf("invert comment %d: %w", c.ID, err)
				}
			}
			if kind, ok := a.Kind.Inverted(); ok {
				a.Kind = kind
				changed = true
			}
		}
		if !(m.opts.Preserve && a.Kind.IsAcquisition()) {
			a.IdeaID = m.target.ID
			changed = true
		}
		if !changed {
			continue
		}
		if err := m.tx.Activities().Save(ctx, a); err != nil {
			return fmt.Errorf("move activity %d: %w", a.ID, err)
		}
	}
	return nil
}

func (m *merge) moveAds(ctx context.Context) error {
	return m.tx.Ads().Reassign(ctx, m.source.ID, m.target.ID)
}

// movePoints moves every source point, deleted ones included.
func (m *merge) movePoints(ctx context.Context) error {
	points, err := m.tx.Points().ListByIdea(ctx, m.source.ID)
	if err != nil {
		return err
	}
	for _, p := range points {
		p.IdeaID = m.target.ID
		if m.opts.Flip {
			p.Invert()
		}
		if err := m.tx.Points().Save(ctx, p); err != nil {
			return fmt.Errorf("move point %d: %w", p.ID, err)
		}
	}
	return nil
}

// repointIncoming updates points on other ideas that compare against the source. A flip
// drops the comparison, as does a point that would end up comparing the target to itself.
func (m *merge) repointIncoming(ctx context.Context) error {
	points, err := m.tx.Points().ListReferencing(ctx, m.source.ID)
	if err != nil {
		return err
	}
	for _, p := range points {
		switch {
		case m.opts.Flip, p.IdeaID == m.target.ID:
			p.OtherIdeaID = nil
		default:
			p.OtherIdeaID = uintPtr(m.target.ID)
		}
		if err := m.tx.Points().Save(ctx, p); err != nil {
			return fmt.Errorf("repoint point %d: %w", p.ID, err)
		}
	}
	return nil
}

func (m *merge) destroyChanges(ctx context.Context) error {
	if m.opts.Preserve {
		return nil
	}
	return m.tx.Changes().DeleteByIdea(ctx, m.source.ID)
}

func (m *merge) clearTags(ctx context.Context) error {
	return m.tx.Tags().ClearTopIdea(ctx, m.source.ID)
}

func (m *merge) purgeRankings(ctx context.Context) error {
	return m.tx.Rankings().Purge(ctx, m.source.ID)
}

// retireSource destroys the source, or in preserve mode refreshes the counters of the votes
// it kept.
func (m *merge) retireSource(ctx context.Context) error {
	source, err := m.tx.Ideas().GetByID(ctx, m.source.ID)
	if err != nil {
		return err
	}
	m.source = source
	if m.opts.Preserve {
		return recount(ctx, m.tx, m.source)
	}
	return m.tx.Ideas().Destroy(ctx, m.source.ID)
}
