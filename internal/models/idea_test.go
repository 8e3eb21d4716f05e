package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestMovementText_Golden(t *testing.T) {
	idea := &Idea{
		Status:               IdeaStatusPublished,
		CreatedAt:            refNow.Add(-30 * 24 * time.Hour),
		Position24hrChange:   3,
		Position7daysChange:  0,
		Position30daysChange: -5,
	}
	require.Equal(t, "+3 today, no change this week, and -5 this month", idea.MovementText(refNow))
}

func TestMovementText_Overrides(t *testing.T) {
	old := refNow.Add(-10 * 24 * time.Hour)

	tests := []struct {
		name string
		idea Idea
		want string
	}{
		{"buried", Idea{Status: IdeaStatusBuried, CreatedAt: old, Position24hrChange: 4}, "delisted"},
		{"inactive", Idea{Status: IdeaStatusInactive, CreatedAt: old, Position24hrChange: 4}, "inactive"},
		{"created today", Idea{Status: IdeaStatusPublished, CreatedAt: refNow.Add(-time.Hour), Position24hrChange: 4}, "new"},
		{"all zero", Idea{Status: IdeaStatusPublished, CreatedAt: old}, "no change"},
		{"all moving", Idea{Status: IdeaStatusPublished, CreatedAt: old, Position24hrChange: -1, Position7daysChange: 2, Position30daysChange: 12}, "-1 today, +2 this week, and +12 this month"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.idea.MovementText(refNow))
		})
	}
}

func TestIsControversial(t *testing.T) {
	assert.True(t, IsControversial(3, 2))
	assert.False(t, IsControversial(10, 1))
	assert.False(t, IsControversial(2, 1), "ratio of exactly 2 is excluded")
	assert.False(t, IsControversial(1, 2), "ratio of exactly 0.5 is excluded")
	assert.False(t, IsControversial(5, 0))
	assert.False(t, IsControversial(0, 0))

	idea := &Idea{UpEndorsementsCount: 4, DownEndorsementsCount: 3}
	assert.True(t, idea.IsControversial())
}

func TestChangePercent(t *testing.T) {
	idea := &Idea{Position: 8, Position7daysChange: 2}
	assert.InDelta(t, 0.2, idea.ChangePercent(Window7days), 1e-9)

	zero := &Idea{}
	assert.True(t, math.IsNaN(zero.ChangePercent(Window24hr)))

	cancelled := &Idea{Position: 3, Position30daysChange: -3}
	assert.True(t, math.IsInf(cancelled.ChangePercent(Window30days), -1))
}

func TestIdeaPredicates(t *testing.T) {
	t.Run("published includes inactive", func(t *testing.T) {
		assert.True(t, (&Idea{Status: IdeaStatusPublished}).IsPublished())
		assert.True(t, (&Idea{Status: IdeaStatusInactive}).IsPublished())
		assert.False(t, (&Idea{Status: IdeaStatusDraft}).IsPublished())
	})

	t.Run("is new", func(t *testing.T) {
		assert.True(t, (&Idea{CreatedAt: refNow.Add(-2 * 24 * time.Hour), Position7days: 4}).IsNew(refNow))
		assert.True(t, (&Idea{CreatedAt: refNow.Add(-20 * 24 * time.Hour)}).IsNew(refNow))
		assert.False(t, (&Idea{CreatedAt: refNow.Add(-20 * 24 * time.Hour), Position7days: 4}).IsNew(refNow))
	})

	t.Run("is top", func(t *testing.T) {
		assert.False(t, (&Idea{Position: 0}).IsTop(10))
		assert.True(t, (&Idea{Position: 3}).IsTop(10))
		assert.False(t, (&Idea{Position: 10}).IsTop(10))
	})

	t.Run("change pending", func(t *testing.T) {
		changeID := uint(7)
		future := refNow.Add(time.Hour)
		past := refNow.Add(-time.Hour)

		pending := &Idea{Status: IdeaStatusPublished, ChangeID: &changeID, Change: &Change{Status: ChangeStatusSent, ExpiresAt: &future}}
		assert.True(t, pending.HasChange(refNow))
		assert.False(t, pending.IsReplaced())

		expired := &Idea{Status: IdeaStatusPublished, ChangeID: &changeID, Change: &Change{Status: ChangeStatusSent, ExpiresAt: &past}}
		assert.False(t, expired.HasChange(refNow))

		replaced := &Idea{Status: IdeaStatusInactive, ChangeID: &changeID, Change: &Change{Status: ChangeStatusSent, ExpiresAt: &future}}
		assert.False(t, replaced.HasChange(refNow))
		assert.True(t, replaced.IsReplaced())
	})

	t.Run("official status", func(t *testing.T) {
		idea := &Idea{OfficialStatus: OfficialStatusInProgress}
		assert.Equal(t, "In Progress", idea.OfficialStatusName())
		assert.True(t, idea.IsFinished())
		assert.True(t, idea.IsCompromised())

		idea.OfficialStatus = OfficialStatusPublishedInWorks
		assert.False(t, idea.IsFinished())
		assert.Equal(t, "Idea in the works", idea.ValueName())

		idea.OfficialStatus = OfficialStatusFailed
		assert.Equal(t, "Failed", idea.OfficialStatusName())
		assert.Equal(t, "Idea failed", idea.ValueName())

		idea.OfficialStatus = OfficialStatusUnknown
		assert.Equal(t, "Unknown", idea.OfficialStatusName())
		assert.Equal(t, "Idea has not been processed", idea.ValueName())
	})
}

func TestActivityKindInversion(t *testing.T) {
	inv, ok := ActivityEndorsementNew.Inverted()
	require.True(t, ok)
	assert.Equal(t, ActivityOppositionNew, inv)

	back, ok := inv.Inverted()
	require.True(t, ok)
	assert.Equal(t, ActivityEndorsementNew, back)

	same, ok := ActivityIdeaAcquisition.Inverted()
	assert.False(t, ok)
	assert.Equal(t, ActivityIdeaAcquisition, same)

	assert.False(t, ActivityIdeaDebut.Transferable())
	assert.False(t, ActivityIssueIdeaRising.Transferable())
	assert.True(t, ActivityEndorsementFlipped.Transferable())
	assert.True(t, ActivityIdeaAcquisitionProposal.IsAcquisition())
	assert.False(t, ActivityEndorsementNew.IsAcquisition())
}

func TestAdRefund(t *testing.T) {
	tests := []struct {
		cost  int
		spent float64
		want  int
	}{
		{10, 10, 0},
		{10, 9.6, 1},
		{10, 7.4, 2},
		{10, 12.5, 2},
		{5, 0, 5},
	}
	for _, tt := range tests {
		ad := &Ad{Cost: tt.cost, Spent: tt.spent}
		assert.Equal(t, tt.want, ad.Refund(), "cost=%d spent=%v", tt.cost, tt.spent)
	}
}

func TestPointAndCommentInvert(t *testing.T) {
	p := &Point{Value: 1, EndorserHelpfulCount: 4, OpposerHelpfulCount: 1, EndorserUnhelpfulCount: 2}
	p.Invert()
	assert.Equal(t, -1, p.Value)
	assert.Equal(t, 1, p.EndorserHelpfulCount)
	assert.Equal(t, 4, p.OpposerHelpfulCount)
	assert.Equal(t, 0, p.EndorserUnhelpfulCount)
	assert.Equal(t, 2, p.OpposerUnhelpfulCount)

	c := &Comment{IsEndorser: true}
	c.Invert()
	assert.False(t, c.IsEndorser)
	assert.True(t, c.IsOpposer)
}
