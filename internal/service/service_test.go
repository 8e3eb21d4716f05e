package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type testEnv struct {
	db    *gorm.DB
	store repository.Store
	fx    *testutil.Fixtures
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	return &testEnv{db: db, store: repository.NewStore(db), fx: testutil.NewFixtures(t, db)}
}

func (e *testEnv) reload(t *testing.T, ideaID uint) *models.Idea {
	t.Helper()
	var idea models.Idea
	require.NoError(t, e.db.First(&idea, ideaID).Error)
	return &idea
}

// liveCounts counts the idea's counted endorsements straight from the table.
func (e *testEnv) liveCounts(t *testing.T, ideaID uint) (up, down int64) {
	t.Helper()
	counted := []models.EndorsementStatus{models.EndorsementStatusActive, models.EndorsementStatusInactive}
	require.NoError(t, e.db.Model(&models.Endorsement{}).
		Where("idea_id = ? AND status IN ? AND value > 0", ideaID, counted).Count(&up).Error)
	require.NoError(t, e.db.Model(&models.Endorsement{}).
		Where("idea_id = ? AND status IN ? AND value < 0", ideaID, counted).Count(&down).Error)
	return up, down
}

func (e *testEnv) assertCountersMatch(t *testing.T, ideaID uint) {
	t.Helper()
	up, down := e.liveCounts(t, ideaID)
	idea := e.reload(t, ideaID)
	assert.Equal(t, int(up), idea.UpEndorsementsCount, "up counter")
	assert.Equal(t, int(down), idea.DownEndorsementsCount, "down counter")
	assert.Equal(t, int(up+down), idea.EndorsementsCount, "total counter")
}

func (e *testEnv) activityKinds(t *testing.T, ideaID uint) []models.ActivityKind {
	t.Helper()
	var rows []models.Activity
	require.NoError(t, e.db.Where("idea_id = ?", ideaID).Order("id ASC").Find(&rows).Error)
	kinds := make([]models.ActivityKind, 0, len(rows))
	for _, a := range rows {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func requireAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// dispatcherStub is a stub for NotificationDispatcher.
type dispatcherStub struct {
	dispatchFn  func(context.Context, *models.Notification) error
	doAbusiveFn func(context.Context, uint, uint, []*models.Notification) error
}

func (s *dispatcherStub) Dispatch(ctx context.Context, note *models.Notification) error {
	return s.dispatchFn(ctx, note)
}
func (s *dispatcherStub) DoAbusive(ctx context.Context, ideaID, ownerID uint, related []*models.Notification) error {
	return s.doAbusiveFn(ctx, ideaID, ownerID, related)
}

type abusiveCall struct {
	ideaID  uint
	ownerID uint
	related []*models.Notification
}

type recorder struct {
	dispatched []*models.Notification
	abusive    []abusiveCall
}

func recordingDispatcher() (*dispatcherStub, *recorder) {
	rec := &recorder{}
	return &dispatcherStub{
		dispatchFn: func(_ context.Context, note *models.Notification) error {
			rec.dispatched = append(rec.dispatched, note)
			return nil
		},
		doAbusiveFn: func(_ context.Context, ideaID, ownerID uint, related []*models.Notification) error {
			rec.abusive = append(rec.abusive, abusiveCall{ideaID: ideaID, ownerID: ownerID, related: related})
			return nil
		},
	}, rec
}

func TestRecount_WritesFreshCounts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	idea := env.fx.Idea(owner.ID, func(i *models.Idea) { i.EndorsementsCount = 40; i.UpEndorsementsCount = 40 })
	for i := 0; i < 3; i++ {
		env.fx.Endorsement(idea.ID, env.fx.User().ID, models.VoteUp)
	}
	env.fx.Endorsement(idea.ID, env.fx.User().ID, models.VoteDown, func(e *models.Endorsement) {
		e.Status = models.EndorsementStatusInactive
	})
	env.fx.Endorsement(idea.ID, env.fx.User().ID, models.VoteDown, func(e *models.Endorsement) {
		e.Status = models.EndorsementStatusReplaced
	})

	require.NoError(t, recount(context.Background(), env.store, idea))

	assert.Equal(t, 4, idea.EndorsementsCount)
	assert.Equal(t, 3, idea.UpEndorsementsCount)
	assert.Equal(t, 1, idea.DownEndorsementsCount)
	env.assertCountersMatch(t, idea.ID)
}
