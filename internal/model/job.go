package model

import (
	"strings"
	"time"
)

// ProcessingStatus represents the lifecycle state of an extraction job.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Job represents a single audio extraction attempt and its outcome. Every
// status transition rewrites the whole record. Output fields are populated
// only on completion, ErrorMessage only on failure.
type Job struct {
	JobID            string           `json:"job_id"`
	OriginalFilename string           `json:"original_filename"`
	Status           ProcessingStatus `json:"status"`
	OutputFormat     string           `json:"output_format"`
	InputSize        int64            `json:"input_size"`
	OutputSize       *int64           `json:"output_size,omitempty"`
	OutputPath       *string          `json:"output_path,omitempty"`
	ErrorMessage     *string          `json:"error_message,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// SupportedVideoFormats is the set of video container extensions accepted
// for extraction.
var SupportedVideoFormats = map[string]struct{}{
	"mp4": {},
	"avi": {},
	"mov": {},
	"wmv": {},
	"mkv": {},
	"flv": {},
}

// NormalizeExt lowercases a file extension and trims the leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsSupportedVideoFormat reports whether ext names an accepted video
// container. The extension may be given with or without the leading dot,
// in any case.
func IsSupportedVideoFormat(ext string) bool {
	_, ok := SupportedVideoFormats[NormalizeExt(ext)]
	return ok
}
