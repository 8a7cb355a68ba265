package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/audiolift/api/internal/handler"
	"github.com/audiolift/api/internal/middleware"
	"github.com/audiolift/api/internal/model"
	"github.com/audiolift/api/internal/service"
	"github.com/audiolift/api/internal/storage"
)

// testMaxFileSize keeps the size limit small enough that the oversize path
// can be exercised with an in-memory request body.
const testMaxFileSize = 10 * 1024 * 1024

// stubConverter stands in for the ffmpeg binary so tests never spawn a real
// process. It writes a small fake audio file unless told to fail.
type stubConverter struct {
	processedDir string
	fail         bool
	output       []byte
}

func (s *stubConverter) Convert(ctx context.Context, inputPath, jobID string) (string, error) {
	if s.fail {
		return "", &model.ConversionError{Message: "ffmpeg conversion failed: moov atom not found"}
	}
	jobDir := filepath.Join(s.processedDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", err
	}
	outputPath := filepath.Join(jobDir, "audio.mp3")
	if err := os.WriteFile(outputPath, s.output, 0o644); err != nil {
		return "", err
	}
	return outputPath, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *storage.Store
	jobs  *storage.JobStore
	conv  *stubConverter
}

// setupApp creates a Fiber app wired like main.go, with temp-dir storage and
// a stub converter in place of the real ffmpeg binary.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to initialize storage: %v", err)
	}
	jobs := storage.NewJobStore(store)

	conv := &stubConverter{
		processedDir: store.ProcessedDir(),
		output:       []byte("ID3\x03\x00fake-mp3-payload"),
	}

	appLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	extractionService := service.NewExtractionService(store, jobs, conv, testMaxFileSize, "mp3", appLogger)
	cleanupService := service.NewCleanupService(store, 30*time.Minute, 0, appLogger)

	extractionHandler := handler.NewExtractionHandler(extractionService, store)
	maintenanceHandler := handler.NewMaintenanceHandler(cleanupService)

	// nil Redis client, so the limiter passes everything through
	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New(fiber.Config{
		BodyLimit: testMaxFileSize + 4*1024*1024,
	})
	app.Use(middleware.Metrics())

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"ffmpeg":  true,
				"redis":   false,
				"storage": true,
			},
		})
	})

	// API routes
	api := app.Group("/api")
	extraction := api.Group("/audio-extraction")
	extraction.Post("/upload", rateLimiter.UploadLimit(10000), extractionHandler.Upload)
	extraction.Get("/status/:jobId", extractionHandler.Status)
	extraction.Get("/download/:jobId", extractionHandler.Download)
	extraction.Post("/cleanup", maintenanceHandler.Cleanup)

	return &testApp{app: app, store: store, jobs: jobs, conv: conv}
}

// createUploadRequest builds a multipart/form-data request carrying a fake
// video file with the given name and exact size.
func createUploadRequest(t *testing.T, filename string, size int) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	partHeader.Set("Content-Type", "video/mp4")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}

	// Minimal MP4 ftyp box followed by padding up to the requested size
	content := make([]byte, size)
	copy(content, []byte("\x00\x00\x00\x20ftypisom"))
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/audio-extraction/upload", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		return nil, err
	}
	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// errorCode digs the error code out of an error envelope.
func errorCode(t *testing.T, result map[string]interface{}) string {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got: %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}

// errorMessage digs the error message out of an error envelope.
func errorMessage(t *testing.T, result map[string]interface{}) string {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got: %v", result)
	}
	msg, _ := errObj["message"].(string)
	return msg
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
