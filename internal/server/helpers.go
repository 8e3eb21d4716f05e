package server

import (
	"errors"

	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam labels a route param for error messages: "id" -> "ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	return param
}

// optionalUserID returns the caller's id when OptionalAuth accepted a token.
func optionalUserID(c *fiber.Ctx) *uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return &id
	}
	return nil
}

func currentUserID(c *fiber.Ctx) uint {
	return c.Locals("userID").(uint)
}

// respondError writes err using the status its AppError code maps to. Anything else is
// logged and answered as an internal error.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == models.CodeInternal || appErr.Code == models.CodeMergeFailed {
			middleware.Logger.ErrorContext(c.UserContext(), "request failed",
				"code", appErr.Code, "error", err.Error())
		}
		return models.RespondWithError(c, appErr.HTTPStatus(), appErr)
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}
