package handler

import (
	"strconv"
	"strings"

	"gigwatch/internal/pkg/response"
	"gigwatch/internal/repository"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// RunHandler exposes scraper run history and per-run error entries for
// ops inspection. This is not an end-user query surface.
type RunHandler struct {
	runs   *repository.PostgresRunRepository
	errors *repository.PostgresErrorLogRepository
}

func NewRunHandler(runs *repository.PostgresRunRepository, errors *repository.PostgresErrorLogRepository) *RunHandler {
	return &RunHandler{runs: runs, errors: errors}
}

func (h *RunHandler) ListRuns(c fiber.Ctx) error {
	if h == nil || h.runs == nil {
		return fiber.ErrServiceUnavailable
	}

	source := strings.TrimSpace(c.Query("source"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	runs, err := h.runs.ListRecent(c.Context(), source, limit)
	if err != nil {
		return response.Error(c, fiber.StatusInternalServerError, "", nil)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, runs)
}

func (h *RunHandler) ListRunErrors(c fiber.Ctx) error {
	if h == nil || h.errors == nil {
		return fiber.ErrServiceUnavailable
	}

	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, "invalid run id", nil)
	}
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	entries, err := h.errors.ListByRun(c.Context(), runID, limit)
	if err != nil {
		return response.Error(c, fiber.StatusInternalServerError, "", nil)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, entries)
}
