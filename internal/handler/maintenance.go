package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/audiolift/api/internal/service"
	"github.com/audiolift/api/pkg/response"
)

type MaintenanceHandler struct {
	cleanup *service.CleanupService
}

func NewMaintenanceHandler(cleanup *service.CleanupService) *MaintenanceHandler {
	return &MaintenanceHandler{cleanup: cleanup}
}

// Cleanup handles POST /api/audio-extraction/cleanup. It triggers an
// immediate sweep of stale uploads and reports how many files were removed.
func (h *MaintenanceHandler) Cleanup(c *fiber.Ctx) error {
	deleted, err := h.cleanup.RunOnce()
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{
		"deleted_count": deleted,
	})
}
