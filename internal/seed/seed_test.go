package seed

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClip(t *testing.T) {
	assert.Equal(t, "Bus!!", clip("Bus", 5, 60))
	assert.Equal(t, "abcde", clip("  abcdefgh ", 5, 5))
	assert.Equal(t, 60, utf8.RuneCountInString(clip(strings.Repeat("é", 80), 5, 60)))
}

func TestFactory_DeterministicInput(t *testing.T) {
	a := NewFactory(nil, 42).IdeaInput(1, 2)
	b := NewFactory(nil, 42).IdeaInput(1, 2)
	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, a.Description, b.Description)

	n := utf8.RuneCountInString(a.Name)
	assert.GreaterOrEqual(t, n, 5)
	assert.LessOrEqual(t, n, 60)
	assert.Equal(t, uint(2), a.CategoryID)
}

func TestFactory_Pick(t *testing.T) {
	users := []*models.User{{ID: 1}, {ID: 2}, {ID: 3}}
	f := NewFactory(nil, 7)

	picked := f.Pick(users, 2)
	require.Len(t, picked, 2)
	assert.NotEqual(t, picked[0].ID, picked[1].ID)

	assert.Len(t, f.Pick(users, 10), 3)
	assert.Equal(t, uint(1), users[0].ID, "input order untouched")
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	s := NewSeeder(db, 1)

	summary, err := s.Run(ctx, Options{Users: 6, Admins: 1, Ideas: 4, VotesPerIdea: 3, UpShare: 0.5})
	require.NoError(t, err)
	require.Len(t, summary.Users, 6)
	require.Len(t, summary.Admins, 1)
	assert.True(t, summary.Admins[0].IsAdmin)
	assert.Equal(t, summary.Ideas*3, summary.Votes)

	var ideas []models.Idea
	require.NoError(t, db.Find(&ideas).Error)
	require.Len(t, ideas, summary.Ideas)
	for _, idea := range ideas {
		assert.Equal(t, models.IdeaStatusPublished, idea.Status)
		assert.Equal(t, 3, idea.EndorsementsCount)
		assert.Equal(t, 3, idea.UpEndorsementsCount+idea.DownEndorsementsCount)
	}

	var endorsements int64
	require.NoError(t, db.Model(&models.Endorsement{}).Count(&endorsements).Error)
	assert.EqualValues(t, summary.Votes, endorsements)

	require.NoError(t, s.ClearAll(ctx))
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
