package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListIdeas handles GET /api/ideas?scope=top&mine=true
func (s *Server) ListIdeas(c *fiber.Ctx) error {
	page := parsePagination(c, 25)
	in := service.ListIdeasInput{
		Scope:  c.Query("scope"),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if c.QueryBool("mine") {
		in.UserID = optionalUserID(c)
		if in.UserID == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Sign in to list your ideas"))
		}
	}

	ideas, err := s.ideas.ListIdeas(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ideas)
}

// GetIdea handles GET /api/ideas/:id
func (s *Server) GetIdea(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.ideas.GetIdea(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// CreateIdea handles POST /api/ideas
func (s *Server) CreateIdea(c *fiber.Ctx) error {
	var req struct {
		Name          string            `json:"name"`
		Description   string            `json:"description"`
		CategoryID    uint              `json:"category_id"`
		Status        models.IdeaStatus `json:"status,omitempty"`
		SubInstanceID *uint             `json:"sub_instance_id,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	idea, err := s.ideas.CreateIdea(c.UserContext(), service.CreateIdeaInput{
		UserID:        currentUserID(c),
		Name:          req.Name,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		Status:        req.Status,
		SubInstanceID: req.SubInstanceID,
		IPAddress:     c.IP(),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(idea)
}

// CastVote handles POST /api/ideas/:id/vote with {"direction": "up"|"down"}
func (s *Server) CastVote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Direction     service.VoteDirection `json:"direction"`
		SubInstanceID *uint                 `json:"sub_instance_id,omitempty"`
		ReferralID    *uint                 `json:"referral_id,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	endorsement, err := s.votes.CastVote(c.UserContext(), service.VoteInput{
		IdeaID:    id,
		UserID:    &userID,
		Direction: req.Direction,
		Context: models.VoteContext{
			SubInstanceID: req.SubInstanceID,
			ReferralID:    req.ReferralID,
			IPAddress:     c.IP(),
			UserAgent:     c.Get(fiber.HeaderUserAgent),
		},
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(endorsement)
}

// WithdrawVote handles DELETE /api/ideas/:id/vote
func (s *Server) WithdrawVote(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.votes.WithdrawVote(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// FlagIdea handles POST /api/ideas/:id/flag
func (s *Server) FlagIdea(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.ideas.FlagIdea(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}
