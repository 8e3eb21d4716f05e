package service

import (
	"context"
	"strings"
	"testing"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdeas(env *testEnv, d NotificationDispatcher, c *cache.Cache) *IdeaService {
	return NewIdeaService(
		env.store,
		repository.NewIdeaScopes(false),
		NewLifecycleService(env.store, d, c, fixedClock),
		d,
		c,
		fixedClock,
	)
}

func TestIdeaService_CreateIdea_Validation(t *testing.T) {
	t.Parallel()

	svc := NewIdeaService(nil, repository.NewIdeaScopes(false), nil, nil, nil, fixedClock)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateIdeaInput
	}{
		{"short name", CreateIdeaInput{Name: "Bus", Description: "More buses", CategoryID: 1}},
		{"long name", CreateIdeaInput{Name: strings.Repeat("a", 61), Description: "More buses", CategoryID: 1}},
		{"blank description", CreateIdeaInput{Name: "More buses", Description: "   ", CategoryID: 1}},
		{"long description", CreateIdeaInput{Name: "More buses", Description: strings.Repeat("b", 301), CategoryID: 1}},
		{"no category", CreateIdeaInput{Name: "More buses", Description: "Run them often"}},
		{"bad status", CreateIdeaInput{Name: "More buses", Description: "Run them often", CategoryID: 1, Status: models.IdeaStatusBuried}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreateIdea(ctx, tt.in)
			requireAppError(t, err, models.CodeValidation)
		})
	}
}

func TestIdeaService_CreateIdea_Published(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()
	svc := newIdeas(env, nil, nil)
	ctx := context.Background()

	idea, err := svc.CreateIdea(ctx, CreateIdeaInput{
		UserID:      owner.ID,
		Name:        "  Night buses on line 5  ",
		Description: "Run the 5 until 2am on weekends",
		CategoryID:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Night buses on line 5", idea.Name)
	assert.Equal(t, models.IdeaStatusPublished, idea.Status)

	stored := env.reload(t, idea.ID)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, fixedNow.Equal(*stored.PublishedAt))
	assert.Equal(t, []models.ActivityKind{models.ActivityIdeaNew}, env.activityKinds(t, idea.ID))

	_, err = svc.CreateIdea(ctx, CreateIdeaInput{
		UserID:      owner.ID,
		Name:        "night BUSES on line 5",
		Description: "Same idea again",
		CategoryID:  1,
	})
	requireAppError(t, err, models.CodeValidation)
}

func TestIdeaService_CreateIdea_Draft(t *testing.T) {
	env := newTestEnv(t)
	owner := env.fx.User()

	idea, err := newIdeas(env, nil, nil).CreateIdea(context.Background(), CreateIdeaInput{
		UserID:      owner.ID,
		Name:        "Bike lanes downtown",
		Description: "Protected lanes on Main",
		CategoryID:  2,
		Status:      models.IdeaStatusDraft,
	})
	require.NoError(t, err)

	stored := env.reload(t, idea.ID)
	assert.Equal(t, models.IdeaStatusDraft, stored.Status)
	assert.Nil(t, stored.PublishedAt)
	assert.Empty(t, env.activityKinds(t, idea.ID))
}

func TestIdeaService_FlagIdea(t *testing.T) {
	env := newTestEnv(t)
	owner, flagger := env.fx.User(), env.fx.User()
	admins := []*models.User{
		env.fx.User(func(u *models.User) { u.IsAdmin = true }),
		env.fx.User(func(u *models.User) { u.IsAdmin = true }),
	}
	env.fx.User(func(u *models.User) { u.IsAdmin = true; u.Status = "suspended" })
	idea := env.fx.Idea(owner.ID)

	d, rec := recordingDispatcher()
	require.NoError(t, newIdeas(env, d, nil).FlagIdea(context.Background(), idea.ID, flagger.ID))

	assert.Equal(t, 1, env.reload(t, idea.ID).FlagsCount)
	assert.Equal(t, []models.ActivityKind{models.ActivityIdeaFlag}, env.activityKinds(t, idea.ID))

	require.Len(t, rec.dispatched, 2)
	for i, note := range rec.dispatched {
		assert.NotZero(t, note.ID)
		assert.Equal(t, admins[i].ID, note.RecipientID)
		assert.Equal(t, models.NotificationIdeaFlagged, note.Kind)
		require.NotNil(t, note.SenderID)
		assert.Equal(t, flagger.ID, *note.SenderID)
	}

	err := newIdeas(env, d, nil).FlagIdea(context.Background(), 999, flagger.ID)
	requireAppError(t, err, models.CodeNotFound)
}

func TestIdeaService_ListIdeas(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := env.fx.User(), env.fx.User()
	svc := newIdeas(env, nil, nil)
	ctx := context.Background()

	env.fx.Idea(alice.ID, func(i *models.Idea) { i.Name = "Zebra crossings" })
	env.fx.Idea(bob.ID, func(i *models.Idea) { i.Name = "Apple trees" })
	env.fx.Idea(alice.ID, func(i *models.Idea) { i.Name = "Benches"; i.Status = models.IdeaStatusDraft })

	all, err := svc.ListIdeas(ctx, ListIdeasInput{Scope: "alphabetical"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Apple trees", all[0].Name)

	mine, err := svc.ListIdeas(ctx, ListIdeasInput{Scope: "alphabetical", UserID: &alice.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Zebra crossings", mine[0].Name)

	page, err := svc.ListIdeas(ctx, ListIdeasInput{Scope: "alphabetical", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Zebra crossings", page[0].Name)

	_, err = svc.ListIdeas(ctx, ListIdeasInput{Scope: "sideways"})
	requireAppError(t, err, models.CodeValidation)
}

func TestIdeaService_GetIdea_CachedUntilVote(t *testing.T) {
	env := newTestEnv(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.New(rdb)

	owner, voter := env.fx.User(), env.fx.User()
	category := env.fx.Category("Transit")
	idea := env.fx.Idea(owner.ID, func(i *models.Idea) {
		i.CategoryID = category.ID
		i.Position = 3
		i.Position24hrChange = 2
	})
	svc := newIdeas(env, nil, c)
	ctx := context.Background()

	view, err := svc.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, "Transit", view.CategoryName)
	assert.Equal(t, "Unknown", view.OfficialStatusName)
	assert.Zero(t, view.EndorsementsCount)
	require.NotNil(t, view.ChangePercent["24hr"])
	assert.InDelta(t, 0.4, *view.ChangePercent["24hr"], 1e-9)
	assert.NotEmpty(t, view.Events)
	assert.True(t, mr.Exists(cache.IdeaKey(idea.ID)))

	require.NoError(t, env.db.Model(&models.Idea{}).Where("id = ?", idea.ID).UpdateColumn("name", "Renamed directly").Error)
	cached, err := svc.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, idea.Name, cached.Name)

	_, err = NewVoteService(env.store, c).Endorse(ctx, idea.ID, &voter.ID, models.VoteContext{})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.IdeaKey(idea.ID)))

	fresh, err := svc.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed directly", fresh.Name)
	assert.Equal(t, 1, fresh.EndorsementsCount)
}

func TestIdeaService_GetIdea_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := newIdeas(env, nil, nil).GetIdea(context.Background(), 42)
	requireAppError(t, err, models.CodeNotFound)
}

func TestIdeaService_EndorsersAndMaxPosition(t *testing.T) {
	env := newTestEnv(t)
	owner, up, down, gone := env.fx.User(), env.fx.User(), env.fx.User(), env.fx.User()
	idea := env.fx.Idea(owner.ID)
	env.fx.Endorsement(idea.ID, up.ID, models.VoteUp, func(e *models.Endorsement) { e.Position = 3 })
	env.fx.Endorsement(idea.ID, down.ID, models.VoteDown, func(e *models.Endorsement) { e.Position = 8 })
	env.fx.Endorsement(idea.ID, gone.ID, models.VoteUp, func(e *models.Endorsement) {
		e.Status = models.EndorsementStatusReplaced
		e.Position = 20
	})
	svc := newIdeas(env, nil, nil)
	ctx := context.Background()

	set, err := svc.Endorsers(ctx, idea.ID)
	require.NoError(t, err)
	assert.True(t, set.IsEndorser(up.ID))
	assert.True(t, set.IsOpposer(down.ID))
	assert.False(t, set.Has(gone.ID))
	assert.ElementsMatch(t, []uint{up.ID, down.ID}, set.All())

	maxPos, err := svc.MaxPosition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, maxPos)

	_, err = svc.Endorsers(ctx, 999)
	requireAppError(t, err, models.CodeNotFound)
}
