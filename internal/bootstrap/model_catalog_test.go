package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestModelByID checks preset lookup for known and unknown ids.
func TestModelByID(t *testing.T) {
	model, ok := ModelByID("base")
	if !ok {
		t.Fatal("base preset should exist")
	}
	if model.FileName != "ggml-base.bin" {
		t.Fatalf("file name = %q, want ggml-base.bin", model.FileName)
	}

	if _, ok := ModelByID("gigantic"); ok {
		t.Fatal("unknown preset should not resolve")
	}
}

// TestListWhisperModelsMarksDownloaded checks local state resolution.
func TestListWhisperModelsMarksDownloaded(t *testing.T) {
	modelDir := t.TempDir()
	localPath := filepath.Join(modelDir, "ggml-tiny.bin")
	if err := os.WriteFile(localPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	for _, model := range ListWhisperModels(modelDir) {
		switch model.ID {
		case "tiny":
			if !model.Downloaded || model.LocalPath != localPath {
				t.Fatalf("tiny should be marked downloaded: %+v", model)
			}
		case "base":
			if model.Downloaded {
				t.Fatalf("base should not be marked downloaded: %+v", model)
			}
		}
	}
}

// TestResolveModelPathExplicitFileWins checks direct file paths.
func TestResolveModelPathExplicitFileWins(t *testing.T) {
	modelFile := filepath.Join(t.TempDir(), "custom.gguf")
	if err := os.WriteFile(modelFile, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	got, err := ResolveModelPath(t.TempDir(), modelFile)
	if err != nil {
		t.Fatalf("ResolveModelPath() error = %v", err)
	}
	if got != modelFile {
		t.Fatalf("path = %q, want %q", got, modelFile)
	}
}

// TestResolveModelPathPreset checks preset resolution under the model dir.
func TestResolveModelPathPreset(t *testing.T) {
	modelDir := t.TempDir()
	want := filepath.Join(modelDir, "ggml-base.en.bin")
	if err := os.WriteFile(want, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	got, err := ResolveModelPath(modelDir, "base.en")
	if err != nil {
		t.Fatalf("ResolveModelPath() error = %v", err)
	}
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

// TestResolveModelPathMissingPresetSuggestsFetch checks the hinting error.
func TestResolveModelPathMissingPresetSuggestsFetch(t *testing.T) {
	_, err := ResolveModelPath(t.TempDir(), "base")
	if err == nil {
		t.Fatal("expected error for missing preset file")
	}
	if !strings.Contains(err.Error(), "--fetch-model") {
		t.Fatalf("error should mention --fetch-model: %v", err)
	}
}

// TestResolveModelPathUnknownValue checks the unknown-preset error.
func TestResolveModelPathUnknownValue(t *testing.T) {
	if _, err := ResolveModelPath(t.TempDir(), "no-such-model"); err == nil {
		t.Fatal("expected error for unknown model value")
	}
}

// TestDownloadURLToFile checks streaming download with rename semantics.
func TestDownloadURLToFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("model-bytes"))
	}))
	defer server.Close()

	target := filepath.Join(t.TempDir(), "ggml-test.bin")
	if err := downloadURLToFile(target, server.URL, time.Minute); err != nil {
		t.Fatalf("downloadURLToFile() error = %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "model-bytes" {
		t.Fatalf("content = %q", data)
	}
}

// TestDownloadURLToFileNon200 checks server error handling.
func TestDownloadURLToFileNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	target := filepath.Join(t.TempDir(), "ggml-test.bin")
	if err := downloadURLToFile(target, server.URL, time.Minute); err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if _, err := os.Stat(target); err == nil {
		t.Fatal("target file should not exist after failed download")
	}
}
