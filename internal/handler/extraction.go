package handler

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/audiolift/api/internal/model"
	"github.com/audiolift/api/internal/service"
	"github.com/audiolift/api/internal/storage"
	"github.com/audiolift/api/pkg/response"
)

type ExtractionHandler struct {
	service *service.ExtractionService
	store   *storage.Store
}

func NewExtractionHandler(svc *service.ExtractionService, store *storage.Store) *ExtractionHandler {
	return &ExtractionHandler{
		service: svc,
		store:   store,
	}
}

// Upload handles POST /api/audio-extraction/upload. The raw upload is saved
// to the upload area first; validation and conversion run afterwards, so a
// rejected file stays on disk until the cleanup sweep removes it.
func (h *ExtractionHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	uploadPath := h.store.UploadPath(uploadFileID(fileHeader.Filename))
	if _, err := h.store.Save(content, uploadPath); err != nil {
		return response.ServiceError(c, err.Error())
	}

	job, err := h.service.Extract(c.Context(), uploadPath)
	if err != nil {
		return mapExtractionError(c, err)
	}

	return response.Accepted(c, job)
}

// Status handles GET /api/audio-extraction/status/:jobId
func (h *ExtractionHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if _, err := uuid.Parse(jobID); err != nil {
		return response.NotFound(c, fmt.Sprintf("Job with ID %s not found", jobID))
	}

	job, err := h.service.Status(jobID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if job == nil {
		return response.NotFound(c, fmt.Sprintf("Job with ID %s not found", jobID))
	}

	return response.OK(c, job)
}

// Download handles GET /api/audio-extraction/download/:jobId. The response
// streams the converted audio with a filename derived from the original
// upload and the output format.
func (h *ExtractionHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if _, err := uuid.Parse(jobID); err != nil {
		return response.NotFound(c, fmt.Sprintf("Job with ID %s not found", jobID))
	}

	job, err := h.service.Status(jobID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if job == nil {
		return response.NotFound(c, fmt.Sprintf("Job with ID %s not found", jobID))
	}

	if job.Status != model.StatusCompleted {
		return response.JobNotReady(c, fmt.Sprintf("Job is not completed yet. Current status: %s", job.Status))
	}
	if job.OutputPath == nil || !h.store.Exists(*job.OutputPath) {
		return response.NotFound(c, "Output file not found")
	}

	stem := strings.TrimSuffix(job.OriginalFilename, filepath.Ext(job.OriginalFilename))
	return c.Download(*job.OutputPath, fmt.Sprintf("%s.%s", stem, job.OutputFormat))
}

// uploadFileID builds a unique name for a stored upload, keeping the
// original stem and extension: {stem}_{8 hex chars}{.ext}. Base strips any
// directory components a client smuggles into the filename.
func uploadFileID(filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filepath.Base(filename), ext)
	return fmt.Sprintf("%s_%s%s", stem, uuid.New().String()[:8], ext)
}

// mapExtractionError translates extraction failures to their HTTP form.
// Validation rejections map to client errors; everything else is a 500 with
// the failure detail in the message.
func mapExtractionError(c *fiber.Ctx, err error) error {
	var (
		invalidType *model.InvalidFileTypeError
		sizeLimit   *model.FileSizeLimitExceededError
	)
	switch {
	case errors.As(err, &invalidType):
		return response.UnsupportedMediaType(c, err.Error())
	case errors.As(err, &sizeLimit):
		return response.PayloadTooLarge(c, err.Error())
	default:
		return response.ServiceError(c, err.Error())
	}
}
