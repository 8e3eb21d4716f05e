package server

import (
	"net/http"
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireEvent(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin(t)
	owner, voter := ts.fx.User(), ts.fx.User()
	idea := ts.fx.Idea(owner.ID)
	ts.fx.Endorsement(idea.ID, voter.ID, models.VoteUp)
	base := "/api/admin/ideas/" + itoa(idea.ID) + "/events/"

	resp, raw := ts.do(t, http.MethodPost, base+"delete", nil, admin.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body := decode[struct {
		Idea   models.Idea `json:"idea"`
		Events []string    `json:"events"`
	}](t, raw)
	assert.Equal(t, models.IdeaStatusDeleted, body.Idea.Status)
	assert.Zero(t, body.Idea.EndorsementsCount)
	assert.ElementsMatch(t, []string{"bury", "undelete"}, body.Events)

	resp, raw = ts.do(t, http.MethodPost, base+"publish", nil, admin.ID)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeIllegalTransition, decode[models.ErrorResponse](t, raw).Code)

	resp, _ = ts.do(t, http.MethodPost, base+"explode", nil, admin.ID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = ts.do(t, http.MethodPost, base+"undelete", nil, admin.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[struct {
		Idea   models.Idea `json:"idea"`
		Events []string    `json:"events"`
	}](t, raw)
	assert.Equal(t, models.IdeaStatusPublished, body.Idea.Status)
	assert.Nil(t, body.Idea.DeletedAt)

	resp, _ = ts.do(t, http.MethodPost, "/api/admin/ideas/999/events/bury", nil, admin.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChangeOfficialStatus(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin(t)
	owner := ts.fx.User()

	tests := []struct {
		name     string
		body     map[string]any
		want     int
		official int
		status   models.IdeaStatus
	}{
		{"failed by code", map[string]any{"code": -2}, http.StatusOK, -2, models.IdeaStatusInactive},
		{"successful by call", map[string]any{"call": "successful"}, http.StatusOK, 2, models.IdeaStatusInactive},
		{"compromised by call", map[string]any{"call": "compromised"}, http.StatusOK, -1, models.IdeaStatusInactive},
		{"published in works", map[string]any{"code": 1}, http.StatusOK, 1, models.IdeaStatusPublished},
		{"reactivate by code", map[string]any{"code": 0}, http.StatusOK, 0, models.IdeaStatusPublished},
		{"unknown code", map[string]any{"code": 7}, http.StatusBadRequest, 0, models.IdeaStatusPublished},
		{"unknown call", map[string]any{"call": "vanish"}, http.StatusBadRequest, 0, models.IdeaStatusPublished},
		{"empty body", map[string]any{}, http.StatusBadRequest, 0, models.IdeaStatusPublished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idea := ts.fx.Idea(owner.ID)
			resp, raw := ts.do(t, http.MethodPost, "/api/admin/ideas/"+itoa(idea.ID)+"/official-status", tt.body, admin.ID)
			require.Equal(t, tt.want, resp.StatusCode, string(raw))

			var stored models.Idea
			require.NoError(t, ts.db.First(&stored, idea.ID).Error)
			assert.Equal(t, tt.official, stored.OfficialStatus)
			assert.Equal(t, tt.status, stored.Status)
		})
	}
}

func TestMergeIdea(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin(t)
	owner := ts.fx.User()
	source, target := ts.fx.Idea(owner.ID), ts.fx.Idea(owner.ID)
	for i := 0; i < 2; i++ {
		ts.fx.Endorsement(source.ID, ts.fx.User().ID, models.VoteUp)
	}
	for i := 0; i < 3; i++ {
		ts.fx.Endorsement(target.ID, ts.fx.User().ID, models.VoteUp)
	}
	path := "/api/admin/ideas/" + itoa(source.ID) + "/merge"

	resp, _ := ts.do(t, http.MethodPost, path, map[string]any{}, admin.ID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, path, map[string]any{"target_id": source.ID}, admin.ID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, path, map[string]any{"target_id": 999}, admin.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw := ts.do(t, http.MethodPost, path, map[string]any{"target_id": target.ID}, admin.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	merged := decode[models.Idea](t, raw)
	assert.Equal(t, target.ID, merged.ID)
	assert.Equal(t, 5, merged.EndorsementsCount)
	assert.Equal(t, 5, merged.UpEndorsementsCount)

	var remaining int64
	require.NoError(t, ts.db.Model(&models.Idea{}).Where("id = ?", source.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)
}
