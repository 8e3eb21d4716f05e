package server

import (
	"context"
	"fmt"

	"agora/internal/lifecycle"
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

type officialCallFunc func(ctx context.Context, ideaID uint) (*models.Idea, error)

func (s *Server) officialCalls() map[string]officialCallFunc {
	return map[string]officialCallFunc{
		"reactivate":         s.lifecycle.Reactivate,
		"failed":             s.lifecycle.MarkFailed,
		"successful":         s.lifecycle.MarkSuccessful,
		"in_the_works":       s.lifecycle.MarkInTheWorks,
		"compromised":        s.lifecycle.MarkCompromised,
		"published_in_works": s.lifecycle.MarkPublishedInWorks,
	}
}

// FireEvent handles POST /api/admin/ideas/:id/events/:event
func (s *Server) FireEvent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	event, ok := lifecycle.ParseEvent(c.Params("event"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(fmt.Sprintf("Unknown event %q", c.Params("event"))))
	}

	idea, err := s.lifecycle.Fire(c.UserContext(), id, event)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"idea":   idea,
		"events": s.lifecycle.Events(idea.Status),
	})
}

// ChangeOfficialStatus handles POST /api/admin/ideas/:id/official-status.
// The body names either a call ({"call": "compromised"}) or a status code ({"code": -2}).
func (s *Server) ChangeOfficialStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Call string `json:"call,omitempty"`
		Code *int   `json:"code,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	var idea *models.Idea
	switch {
	case req.Call != "":
		call, ok := s.officialCalls()[req.Call]
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(fmt.Sprintf("Unknown official status call %q", req.Call)))
		}
		idea, err = call(c.UserContext(), id)
	case req.Code != nil:
		idea, err = s.lifecycle.ChangeOfficialStatus(c.UserContext(), id, *req.Code)
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Either call or code is required"))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(idea)
}

// MergeIdea handles POST /api/admin/ideas/:id/merge, folding :id into target_id.
func (s *Server) MergeIdea(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		TargetID uint `json:"target_id"`
		Preserve bool `json:"preserve"`
		Flip     bool `json:"flip"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.TargetID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("target_id is required"))
	}

	target, err := s.merges.MergeInto(c.UserContext(), id, req.TargetID, service.MergeOptions{
		Preserve: req.Preserve,
		Flip:     req.Flip,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(target)
}
