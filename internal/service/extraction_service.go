package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/audiolift/api/internal/client"
	"github.com/audiolift/api/internal/model"
	"github.com/audiolift/api/internal/storage"
)

var (
	extractionJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audio_extraction_jobs_total",
		Help: "Number of extraction jobs by terminal status.",
	}, []string{"status"})

	extractionRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audio_extraction_rejections_total",
		Help: "Number of uploads rejected before a job was created.",
	}, []string{"reason"})

	extractionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audio_extraction_duration_seconds",
		Help:    "Wall time of extraction jobs in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
)

// ExtractionService validates uploaded videos, drives the conversion
// collaborator and owns the job record lifecycle.
type ExtractionService struct {
	store        *storage.Store
	jobs         *storage.JobStore
	converter    client.Converter
	maxFileSize  int64
	outputFormat string
	logger       *slog.Logger
}

// NewExtractionService creates an extraction service.
func NewExtractionService(
	store *storage.Store,
	jobs *storage.JobStore,
	converter client.Converter,
	maxFileSize int64,
	outputFormat string,
	logger *slog.Logger,
) *ExtractionService {
	return &ExtractionService{
		store:        store,
		jobs:         jobs,
		converter:    converter,
		maxFileSize:  maxFileSize,
		outputFormat: outputFormat,
		logger:       logger.With(slog.String("component", "extraction")),
	}
}

// Extract validates the uploaded video at inputPath, runs the conversion
// and persists the resulting job record. Validation failures return before
// any record is created; once a job exists it always reaches disk in a
// terminal state, completed or failed.
func (s *ExtractionService) Extract(ctx context.Context, inputPath string) (*model.Job, error) {
	meta, err := s.store.ReadMetadata(inputPath)
	if err != nil {
		return nil, err
	}

	ext := model.NormalizeExt(filepath.Ext(meta.Filename))
	if !model.IsSupportedVideoFormat(ext) {
		extractionRejectionsTotal.WithLabelValues("invalid_type").Inc()
		return nil, &model.InvalidFileTypeError{FileType: ext}
	}
	if meta.Size > s.maxFileSize {
		extractionRejectionsTotal.WithLabelValues("too_large").Inc()
		return nil, &model.FileSizeLimitExceededError{FileSize: meta.Size, MaxSize: s.maxFileSize}
	}

	start := time.Now()
	now := start.UTC()
	job := &model.Job{
		JobID:            uuid.New().String(),
		OriginalFilename: meta.Filename,
		Status:           model.StatusProcessing,
		OutputFormat:     s.outputFormat,
		InputSize:        meta.Size,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.logger.Info("extraction started",
		"job_id", job.JobID,
		"filename", job.OriginalFilename,
		"input_size", job.InputSize,
	)

	outputPath, err := s.converter.Convert(ctx, inputPath, job.JobID)
	if err != nil {
		return nil, s.fail(job, start, err)
	}

	outputSize, err := s.store.Size(outputPath)
	if err != nil {
		return nil, s.fail(job, start, err)
	}

	job.Status = model.StatusCompleted
	job.OutputPath = &outputPath
	job.OutputSize = &outputSize
	job.UpdatedAt = time.Now().UTC()

	if err := s.jobs.Save(job); err != nil {
		return nil, s.fail(job, start, err)
	}

	extractionJobsTotal.WithLabelValues(string(model.StatusCompleted)).Inc()
	extractionDurationSeconds.Observe(time.Since(start).Seconds())
	s.logger.Info("extraction completed",
		"job_id", job.JobID,
		"output_path", outputPath,
		"output_size", outputSize,
		"duration", time.Since(start),
	)
	return job, nil
}

// fail transitions job to its failed terminal state, persists the record
// best-effort and returns the error the caller should see. Conversion and
// storage failures keep their kind; anything else is wrapped as a conversion
// failure.
func (s *ExtractionService) fail(job *model.Job, start time.Time, cause error) error {
	msg := cause.Error()
	job.Status = model.StatusFailed
	job.ErrorMessage = &msg
	job.OutputPath = nil
	job.OutputSize = nil
	job.UpdatedAt = time.Now().UTC()

	// A failure to record the failure must not mask the original cause.
	if err := s.jobs.Save(job); err != nil {
		s.logger.Warn("could not persist failed job record", "job_id", job.JobID, "error", err)
	}

	extractionJobsTotal.WithLabelValues(string(model.StatusFailed)).Inc()
	extractionDurationSeconds.Observe(time.Since(start).Seconds())
	s.logger.Error("extraction failed", "job_id", job.JobID, "error", msg)

	var (
		conversionErr *model.ConversionError
		storageErr    *model.StorageError
	)
	if errors.As(cause, &conversionErr) || errors.As(cause, &storageErr) {
		return cause
	}
	return &model.ConversionError{Message: "failed to extract audio", Err: cause}
}

// Status returns the stored record for jobID, or (nil, nil) when no record
// exists.
func (s *ExtractionService) Status(jobID string) (*model.Job, error) {
	return s.jobs.Get(jobID)
}
