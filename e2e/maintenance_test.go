package e2e

import (
	"net/http"
	"os"
	"testing"
	"time"
)

func seedUpload(t *testing.T, ta *testApp, name string, age time.Duration) string {
	t.Helper()
	path := ta.store.UploadPath(name)
	if _, err := ta.store.Save([]byte("stale-upload-bytes"), path); err != nil {
		t.Fatalf("failed to seed upload: %v", err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("failed to age upload: %v", err)
		}
	}
	return path
}

func TestCleanup_RemovesStaleUploads(t *testing.T) {
	ta := setupApp(t)

	stale1 := seedUpload(t, ta, "old_one.mp4", time.Hour)
	stale2 := seedUpload(t, ta, "old_two.txt", 2*time.Hour)
	fresh := seedUpload(t, ta, "fresh.mp4", 0)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/audio-extraction/cleanup")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if count, _ := result["deleted_count"].(float64); int(count) != 2 {
		t.Errorf("expected deleted_count 2, got %v", result["deleted_count"])
	}

	for _, path := range []string{stale1, stale2} {
		if ta.store.Exists(path) {
			t.Errorf("expected %s to be deleted", path)
		}
	}
	if !ta.store.Exists(fresh) {
		t.Error("fresh upload must survive the sweep")
	}

	// A second sweep finds nothing
	resp, err = doRequest(ta.app, http.MethodPost, "/api/audio-extraction/cleanup")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result = parseJSON(t, resp)
	if count, _ := result["deleted_count"].(float64); int(count) != 0 {
		t.Errorf("expected deleted_count 0 on rerun, got %v", result["deleted_count"])
	}
}

func TestCleanup_EmptyUploadDir(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/audio-extraction/cleanup")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if count, _ := result["deleted_count"].(float64); int(count) != 0 {
		t.Errorf("expected deleted_count 0, got %v", result["deleted_count"])
	}
}
