package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/songbranch/api/internal/model"
	"github.com/songbranch/api/internal/service"
	"github.com/songbranch/api/internal/store"
	"github.com/songbranch/api/pkg/response"
)

type VoteHandler struct {
	service   *service.VoteService
	validator *validator.Validate
}

func NewVoteHandler(svc *service.VoteService, v *validator.Validate) *VoteHandler {
	return &VoteHandler{
		service:   svc,
		validator: v,
	}
}

// Cast handles POST /api/vote
func (h *VoteHandler) Cast(c *fiber.Ctx) error {
	var req model.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CastVote(c.Context(), req.ArtistID, req.CurrentPosition, req.Liked)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			return response.ValidationError(c, err.Error(), nil)
		case errors.Is(err, store.ErrNotFound):
			return response.NotFound(c, "No recommendation tree for this artist")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.OK(c, result)
}
