// Package service implements the idea voting core: the vote ledger, lifecycle transitions,
// official status calls and the merge engine.
package service

import (
	"context"
	"fmt"
	"time"

	"agora/internal/models"
	"agora/internal/repository"
)

// NotificationDispatcher delivers notifications outside the database. Dispatch is called
// after the notification row has been committed.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, note *models.Notification) error
	DoAbusive(ctx context.Context, ideaID, ownerID uint, related []*models.Notification) error
}

// CapitalLedger credits capital to a user and records the movement.
type CapitalLedger interface {
	Increment(ctx context.Context, userID uint, amount int, record *models.Capital) error
}

// Clock returns the current time.
type Clock func() time.Time

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, *models.Notification) error { return nil }
func (noopDispatcher) DoAbusive(context.Context, uint, uint, []*models.Notification) error {
	return nil
}

func clockOrNow(now Clock) Clock {
	if now == nil {
		return time.Now
	}
	return now
}

func dispatcherOrNoop(d NotificationDispatcher) NotificationDispatcher {
	if d == nil {
		return noopDispatcher{}
	}
	return d
}

// recount refreshes the idea's vote counters from the ledger, in the database and on idea.
func recount(ctx context.Context, tx repository.Store, idea *models.Idea) error {
	counts, err := tx.Endorsements().CountByIdea(ctx, idea.ID)
	if err != nil {
		return fmt.Errorf("count endorsements: %w", err)
	}
	if err := tx.Ideas().SetCounters(ctx, idea.ID, counts); err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	idea.EndorsementsCount = counts.Total()
	idea.UpEndorsementsCount = counts.Up
	idea.DownEndorsementsCount = counts.Down
	return nil
}

func recordActivity(ctx context.Context, tx repository.Store, kind models.ActivityKind, ideaID uint, userID *uint) (*models.Activity, error) {
	a := &models.Activity{Kind: kind, IdeaID: ideaID, UserID: userID, Status: models.ActivityStatusActive}
	if err := tx.Activities().Create(ctx, a); err != nil {
		return nil, fmt.Errorf("record %s activity: %w", kind, err)
	}
	return a, nil
}

func uintPtr(v uint) *uint { return &v }
