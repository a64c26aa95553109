package handler

import (
	"context"
	"errors"
	"log"
	"strings"

	"gigwatch/internal/pipeline"
	"gigwatch/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// PipelineHandler lets ops kick a scrape without waiting on the
// schedule. Runs detach from the request; progress is visible through
// the run history and the ws feed.
type PipelineHandler struct {
	orch   *pipeline.Orchestrator
	logger *log.Logger
}

func NewPipelineHandler(orch *pipeline.Orchestrator, logger *log.Logger) *PipelineHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &PipelineHandler{orch: orch, logger: logger}
}

func (h *PipelineHandler) TriggerRun(c fiber.Ctx) error {
	if h == nil || h.orch == nil {
		return fiber.ErrServiceUnavailable
	}

	sourceID := strings.TrimSpace(c.Params("id"))
	if sourceID == "" {
		return response.Error(c, fiber.StatusBadRequest, "empty source id", nil)
	}

	go func() {
		if _, err := h.orch.Run(context.Background(), sourceID); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				h.logger.Printf("source=%s trigger=skipped reason=run_in_progress", sourceID)
				return
			}
			h.logger.Printf("source=%s trigger=failed err=%v", sourceID, err)
		}
	}()

	return response.Success(c, fiber.StatusAccepted, "run accepted", fiber.Map{"source": sourceID})
}
