package client

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/audiolift/api/internal/config"
	"github.com/audiolift/api/internal/model"
)

// Converter defines the interface for turning an uploaded video into an
// audio file. Implementations either produce the output file and return its
// path, or fail with a ConversionError.
type Converter interface {
	Convert(ctx context.Context, inputPath, jobID string) (string, error)
}

// CommandRunner abstracts external process execution so tests can stub the
// ffmpeg binary. Run returns the process's standard error output, which
// ffmpeg uses for all diagnostics, alongside any execution error.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner runs commands with os/exec.
type ExecCommandRunner struct{}

func (ExecCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// FFmpegClient implements Converter by invoking the ffmpeg binary.
type FFmpegClient struct {
	path         string
	timeout      time.Duration
	outputFormat string
	codec        string
	bitrate      string
	sampleRate   string
	channels     string
	processedDir string
	runner       CommandRunner
}

// FFmpegOption configures an FFmpegClient.
type FFmpegOption func(*FFmpegClient)

// WithCommandRunner substitutes the process runner.
func WithCommandRunner(r CommandRunner) FFmpegOption {
	return func(c *FFmpegClient) {
		c.runner = r
	}
}

// WithTimeout overrides the configured conversion deadline.
func WithTimeout(d time.Duration) FFmpegOption {
	return func(c *FFmpegClient) {
		c.timeout = d
	}
}

// NewFFmpegClient creates a converter that shells out to ffmpeg, writing each
// job's audio to processedDir/{jobID}/audio.{format}.
func NewFFmpegClient(cfg *config.FFmpegConfig, processedDir string, opts ...FFmpegOption) *FFmpegClient {
	c := &FFmpegClient{
		path:         cfg.Path,
		timeout:      time.Duration(cfg.Timeout) * time.Second,
		outputFormat: cfg.OutputFormat,
		codec:        cfg.Codec,
		bitrate:      cfg.Bitrate,
		sampleRate:   cfg.SampleRate,
		channels:     cfg.Channels,
		processedDir: processedDir,
		runner:       ExecCommandRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert extracts the audio track of inputPath into the job's output file
// and returns the output path. ffmpeg's stderr is carried on the returned
// ConversionError when the tool fails or produces no output.
func (c *FFmpegClient) Convert(ctx context.Context, inputPath, jobID string) (string, error) {
	jobDir := filepath.Join(c.processedDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", &model.StorageError{Op: "create directory", Path: jobDir, Err: err}
	}
	outputPath := filepath.Join(jobDir, "audio."+c.outputFormat)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-i", inputPath,
		"-vn", // drop the video stream
		"-acodec", c.codec,
		"-ab", c.bitrate,
		"-ar", c.sampleRate,
		"-ac", c.channels,
		"-y", // overwrite any previous output
		outputPath,
	}

	stderr, err := c.runner.Run(ctx, c.path, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &model.ConversionError{Message: fmt.Sprintf("conversion timed out after %s", c.timeout)}
		}
		return "", &model.ConversionError{
			Message: fmt.Sprintf("ffmpeg conversion failed: %s", strings.TrimSpace(string(stderr))),
			Err:     err,
		}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", &model.ConversionError{
			Message: fmt.Sprintf("ffmpeg produced no output file: %s", strings.TrimSpace(string(stderr))),
		}
	}
	return outputPath, nil
}

// VerifyInstalled checks that the ffmpeg binary is present and executable.
func (c *FFmpegClient) VerifyInstalled(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, c.path, "-version"); err != nil {
		return fmt.Errorf("ffmpeg not available at %q: %w", c.path, err)
	}
	return nil
}
