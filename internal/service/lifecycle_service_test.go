package service

import (
	"context"
	"errors"
	"testing"

	"agora/internal/lifecycle"
	"agora/internal/models"
	"agora/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycle(env *testEnv, d NotificationDispatcher) *LifecycleService {
	return NewLifecycleService(env.store, d, nil, fixedClock)
}

func TestLifecycleService_PublishDraft(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	idea := env.fx.Idea(owner.ID, func(i *models.Idea) {
		i.Status = models.IdeaStatusDraft
		i.PublishedAt = nil
	})

	got, err := newLifecycle(env, nil).Publish(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusPublished, got.Status)

	stored := env.reload(t, idea.ID)
	assert.Equal(t, models.IdeaStatusPublished, stored.Status)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, fixedNow.Equal(*stored.PublishedAt))
	assert.Equal(t, []models.ActivityKind{models.ActivityIdeaNew}, env.activityKinds(t, idea.ID))
}

func TestLifecycleService_IllegalTransition(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	svc := newLifecycle(env, nil)
	ctx := context.Background()

	tests := []struct {
		status models.IdeaStatus
		event  lifecycle.Event
	}{
		{models.IdeaStatusAbusive, lifecycle.EventPublish},
		{models.IdeaStatusAbusive, lifecycle.EventDelete},
		{models.IdeaStatusPublished, lifecycle.EventPublish},
		{models.IdeaStatusInactive, lifecycle.EventBury},
		{models.IdeaStatusBuried, lifecycle.EventPublish},
		{models.IdeaStatusPassive, lifecycle.EventDeactivate},
	}
	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+string(tt.event), func(t *testing.T) {
			idea := env.fx.Idea(owner.ID, func(i *models.Idea) { i.Status = tt.status })
			_, err := svc.Fire(ctx, idea.ID, tt.event)
			requireAppError(t, err, models.CodeIllegalTransition)
			assert.Equal(t, tt.status, env.reload(t, idea.ID).Status)
		})
	}
}

func TestLifecycleService_Delete(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	idea := env.fx.Idea(owner.ID)
	for i := 0; i < 3; i++ {
		env.fx.Endorsement(idea.ID, env.fx.User().ID, models.VoteUp)
	}
	require.NoError(t, recount(context.Background(), env.store, idea))
	env.fx.Activity(idea.ID, models.ActivityEndorsementNew)

	got, err := newLifecycle(env, nil).Delete(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusDeleted, got.Status)

	stored := env.reload(t, idea.ID)
	assert.Equal(t, models.IdeaStatusDeleted, stored.Status)
	require.NotNil(t, stored.DeletedAt)
	assert.True(t, fixedNow.Equal(*stored.DeletedAt))
	assert.Zero(t, stored.EndorsementsCount)
	assert.Zero(t, stored.UpEndorsementsCount)

	var endorsements int64
	env.db.Model(&models.Endorsement{}).Where("idea_id = ?", idea.ID).Count(&endorsements)
	assert.Zero(t, endorsements)

	var active int64
	env.db.Model(&models.Activity{}).Where("idea_id = ? AND status = ?", idea.ID, models.ActivityStatusActive).Count(&active)
	assert.Zero(t, active)
}

func TestLifecycleService_Undelete(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	svc := newLifecycle(env, nil)
	ctx := context.Background()

	t.Run("previously published", func(t *testing.T) {
		idea := env.fx.Idea(owner.ID)
		_, err := svc.Delete(ctx, idea.ID)
		require.NoError(t, err)

		got, err := svc.Undelete(ctx, idea.ID)
		require.NoError(t, err)
		assert.Equal(t, models.IdeaStatusPublished, got.Status)

		stored := env.reload(t, idea.ID)
		assert.Equal(t, models.IdeaStatusPublished, stored.Status)
		assert.Nil(t, stored.DeletedAt)
	})

	t.Run("never published", func(t *testing.T) {
		idea := env.fx.Idea(owner.ID, func(i *models.Idea) {
			i.Status = models.IdeaStatusDraft
			i.PublishedAt = nil
		})
		_, err := svc.Delete(ctx, idea.ID)
		require.NoError(t, err)

		got, err := svc.Undelete(ctx, idea.ID)
		require.NoError(t, err)
		assert.Equal(t, models.IdeaStatusDraft, got.Status)
		assert.Nil(t, env.reload(t, idea.ID).DeletedAt)
	})

	t.Run("bury keeps deleted_at", func(t *testing.T) {
		idea := env.fx.Idea(owner.ID)
		_, err := svc.Delete(ctx, idea.ID)
		require.NoError(t, err)

		got, err := svc.Bury(ctx, idea.ID)
		require.NoError(t, err)
		assert.Equal(t, models.IdeaStatusBuried, got.Status)
		assert.NotNil(t, env.reload(t, idea.ID).DeletedAt)
	})
}

func TestLifecycleService_BuryThenDeactivate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	idea := env.fx.Idea(owner.ID)
	svc := newLifecycle(env, nil)
	ctx := context.Background()

	_, err := svc.Bury(ctx, idea.ID)
	require.NoError(t, err)
	got, err := svc.Deactivate(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusInactive, got.Status)
	assert.Equal(t, "inactive", got.MovementText(fixedNow))
}

func TestLifecycleService_MarkAbusive(t *testing.T) {
	env := newTestEnv(t)
	owner, admin := env.fx.User(), env.fx.User()
	idea := env.fx.Idea(owner.ID, func(i *models.Idea) { i.FlagsCount = 4 })
	require.NoError(t, env.db.Create(&models.Notification{
		IdeaID:      idea.ID,
		Kind:        models.NotificationIdeaFlagged,
		RecipientID: admin.ID,
	}).Error)

	d, rec := recordingDispatcher()
	got, err := newLifecycle(env, d).MarkAbusive(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusAbusive, got.Status)

	require.Len(t, rec.abusive, 1)
	assert.Equal(t, idea.ID, rec.abusive[0].ideaID)
	assert.Equal(t, owner.ID, rec.abusive[0].ownerID)
	assert.Len(t, rec.abusive[0].related, 1)

	stored := env.reload(t, idea.ID)
	assert.Equal(t, models.IdeaStatusAbusive, stored.Status)
	assert.Zero(t, stored.FlagsCount)
}

// failingSaveStore fails idea saves inside transactions.
type failingSaveStore struct {
	repository.Store
	err error
}

func (s failingSaveStore) Ideas() repository.IdeaRepository {
	return failingSaveIdeas{IdeaRepository: s.Store.Ideas(), err: s.err}
}

func (s failingSaveStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(failingSaveStore{Store: tx, err: s.err})
	})
}

type failingSaveIdeas struct {
	repository.IdeaRepository
	err error
}

func (r failingSaveIdeas) Save(context.Context, *models.Idea) error { return r.err }

func TestLifecycleService_MarkAbusiveRolledBackReportsNothing(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	idea := env.fx.Idea(owner.ID, func(i *models.Idea) { i.FlagsCount = 2 })

	boom := errors.New("disk full")
	d, rec := recordingDispatcher()
	svc := NewLifecycleService(failingSaveStore{Store: env.store, err: boom}, d, nil, fixedClock)
	_, err := svc.MarkAbusive(context.Background(), idea.ID)
	require.ErrorIs(t, err, boom)

	stored := env.reload(t, idea.ID)
	assert.Equal(t, models.IdeaStatusPublished, stored.Status)
	assert.Equal(t, 2, stored.FlagsCount)
	assert.Empty(t, rec.abusive)
}

func TestLifecycleService_AbusiveReportFailureKeepsTransition(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	idea := env.fx.Idea(owner.ID, func(i *models.Idea) { i.FlagsCount = 2 })

	calls := 0
	d := &dispatcherStub{
		dispatchFn: func(context.Context, *models.Notification) error { return nil },
		doAbusiveFn: func(context.Context, uint, uint, []*models.Notification) error {
			calls++
			return errors.New("moderation unavailable")
		},
	}
	got, err := newLifecycle(env, d).MarkAbusive(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusAbusive, got.Status)
	assert.Equal(t, 1, calls)

	stored := env.reload(t, idea.ID)
	assert.Equal(t, models.IdeaStatusAbusive, stored.Status)
	assert.Zero(t, stored.FlagsCount)
}

func TestLifecycleService_OfficialStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	d, rec := recordingDispatcher()
	svc := newLifecycle(env, d)
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func(context.Context, uint) (*models.Idea, error)
		wantCode   int
		wantStatus models.IdeaStatus
		wantKind   models.ActivityKind
		wantName   string
	}{
		{"failed", svc.MarkFailed, models.OfficialStatusFailed, models.IdeaStatusInactive, models.ActivityOfficialStatusFailed, "Failed"},
		{"successful", svc.MarkSuccessful, models.OfficialStatusSuccessful, models.IdeaStatusInactive, models.ActivityOfficialStatusSuccessful, "Successful"},
		{"compromised", svc.MarkCompromised, models.OfficialStatusInProgress, models.IdeaStatusInactive, models.ActivityOfficialStatusCompromised, "In Progress"},
		{"in the works", svc.MarkInTheWorks, models.OfficialStatusInProgress, models.IdeaStatusInactive, models.ActivityOfficialStatusInTheWorks, "In Progress"},
		{"published in works", svc.MarkPublishedInWorks, models.OfficialStatusPublishedInWorks, models.IdeaStatusPublished, models.ActivityOfficialStatusInTheWorks, "Published"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idea := env.fx.Idea(owner.ID)
			got, err := tt.call(ctx, idea.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.OfficialStatusName())

			stored := env.reload(t, idea.ID)
			assert.Equal(t, tt.wantCode, stored.OfficialStatus)
			assert.Equal(t, tt.wantStatus, stored.Status)
			require.NotNil(t, stored.StatusChangedAt)
			assert.True(t, fixedNow.Equal(*stored.StatusChangedAt))
			assert.Equal(t, []models.ActivityKind{tt.wantKind}, env.activityKinds(t, idea.ID))

			require.NotEmpty(t, rec.dispatched)
			last := rec.dispatched[len(rec.dispatched)-1]
			assert.Equal(t, idea.ID, last.IdeaID)
			assert.Equal(t, owner.ID, last.RecipientID)
			assert.Equal(t, models.NotificationOfficialChanged, last.Kind)
		})
	}
}

func TestLifecycleService_ChangeOfficialStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	svc := newLifecycle(env, nil)
	ctx := context.Background()

	idea := env.fx.Idea(owner.ID)
	got, err := svc.ChangeOfficialStatus(ctx, idea.ID, models.OfficialStatusSuccessful)
	require.NoError(t, err)
	assert.True(t, got.IsSuccessful())
	assert.True(t, got.IsFinished())

	got, err = svc.ChangeOfficialStatus(ctx, idea.ID, models.OfficialStatusUnknown)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusPublished, got.Status)
	assert.False(t, got.IsFinished())

	_, err = svc.ChangeOfficialStatus(ctx, idea.ID, 5)
	requireAppError(t, err, models.CodeValidation)

	_, err = svc.ChangeOfficialStatus(ctx, 999, models.OfficialStatusFailed)
	requireAppError(t, err, models.CodeNotFound)
}

func TestLifecycleService_MarkInTheWorksRefundsAds(t *testing.T) {
	env := newTestEnv(t)
	owner, advertiser, other := env.fx.User(), env.fx.User(), env.fx.User()
	idea := env.fx.Idea(owner.ID)

	ads := []*models.Ad{
		{IdeaID: idea.ID, UserID: advertiser.ID, Cost: 10, Spent: 9.5, Status: models.AdStatusActive},
		{IdeaID: idea.ID, UserID: advertiser.ID, Cost: 10, Spent: 3.2, Status: models.AdStatusActive},
		{IdeaID: idea.ID, UserID: other.ID, Cost: 5, Spent: 5, Status: models.AdStatusActive},
		{IdeaID: idea.ID, UserID: other.ID, Cost: 8, Spent: 0, Status: models.AdStatusFinished},
	}
	for _, ad := range ads {
		require.NoError(t, env.db.Create(ad).Error)
	}

	_, err := newLifecycle(env, nil).MarkInTheWorks(context.Background(), idea.ID)
	require.NoError(t, err)

	var u models.User
	require.NoError(t, env.db.First(&u, advertiser.ID).Error)
	assert.Equal(t, 7, u.CapitalCount)
	require.NoError(t, env.db.First(&u, other.ID).Error)
	assert.Zero(t, u.CapitalCount)

	var capitals []models.Capital
	require.NoError(t, env.db.Order("id ASC").Find(&capitals).Error)
	require.Len(t, capitals, 2)
	assert.Equal(t, 1, capitals[0].Amount)
	assert.Equal(t, 6, capitals[1].Amount)
	assert.Equal(t, models.CapitalKindAdRefund, capitals[0].Kind)

	var refunds []models.Activity
	require.NoError(t, env.db.Where("kind = ?", models.ActivityCapitalAdRefunded).Order("id ASC").Find(&refunds).Error)
	require.Len(t, refunds, 2)
	require.NotNil(t, refunds[0].CapitalID)
	assert.Equal(t, capitals[0].ID, *refunds[0].CapitalID)

	var active int64
	env.db.Model(&models.Ad{}).Where("idea_id = ? AND status = ?", idea.ID, models.AdStatusActive).Count(&active)
	assert.Zero(t, active)
}

func TestLifecycleService_ReactivateReranksEndorsers(t *testing.T) {
	env := newTestEnv(t)
	owner, voter, bystander := env.fx.User(), env.fx.User(), env.fx.User()
	idea := env.fx.Idea(owner.ID, func(i *models.Idea) {
		i.Status = models.IdeaStatusInactive
		i.OfficialStatus = models.OfficialStatusFailed
	})
	change := &models.Change{IdeaID: idea.ID, UserID: owner.ID, Status: models.ChangeStatusSent}
	require.NoError(t, env.db.Create(change).Error)
	require.NoError(t, env.db.Model(idea).UpdateColumn("change_id", change.ID).Error)

	second, third := env.fx.Idea(owner.ID), env.fx.Idea(owner.ID)
	onIdea := env.fx.Endorsement(idea.ID, voter.ID, models.VoteUp, func(e *models.Endorsement) {
		e.Status = models.EndorsementStatusInactive
		e.Position = 2
	})
	onSecond := env.fx.Endorsement(second.ID, voter.ID, models.VoteUp, func(e *models.Endorsement) { e.Position = 4 })
	onThird := env.fx.Endorsement(third.ID, voter.ID, models.VoteDown, func(e *models.Endorsement) { e.Position = 7 })
	replaced := env.fx.Endorsement(idea.ID, bystander.ID, models.VoteUp, func(e *models.Endorsement) {
		e.Status = models.EndorsementStatusReplaced
		e.Position = 9
	})

	got, err := newLifecycle(env, nil).Reactivate(context.Background(), idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusPublished, got.Status)
	assert.Equal(t, models.OfficialStatusUnknown, got.OfficialStatus)

	stored := env.reload(t, idea.ID)
	assert.Nil(t, stored.ChangeID)
	assert.Equal(t, models.IdeaStatusPublished, stored.Status)

	position := func(id uint) (int, models.EndorsementStatus) {
		var e models.Endorsement
		require.NoError(t, env.db.First(&e, id).Error)
		return e.Position, e.Status
	}
	pos, status := position(onIdea.ID)
	assert.Equal(t, 1, pos)
	assert.Equal(t, models.EndorsementStatusActive, status)
	pos, _ = position(onSecond.ID)
	assert.Equal(t, 2, pos)
	pos, _ = position(onThird.ID)
	assert.Equal(t, 3, pos)
	pos, status = position(replaced.ID)
	assert.Equal(t, 9, pos)
	assert.Equal(t, models.EndorsementStatusReplaced, status)

	var u models.User
	require.NoError(t, env.db.First(&u, voter.ID).Error)
	require.NotNil(t, u.TopEndorsementID)
	assert.Equal(t, onIdea.ID, *u.TopEndorsementID)
	assert.Contains(t, env.activityKinds(t, idea.ID), models.ActivityOfficialStatusReactivated)
}

func TestLifecycleService_Events(t *testing.T) {
	t.Parallel()

	svc := NewLifecycleService(nil, nil, nil, nil)
	assert.Empty(t, svc.Events(models.IdeaStatusAbusive))
	assert.ElementsMatch(t, []lifecycle.Event{lifecycle.EventBury, lifecycle.EventUndelete}, svc.Events(models.IdeaStatusDeleted))
}
