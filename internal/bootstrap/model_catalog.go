package bootstrap

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytnotes/internal/domain"
)

const modelDownloadTimeout = 45 * time.Minute

// whisperModelCatalog lists the downloadable whisper.cpp presets that back
// the --whisper-model flag.
var whisperModelCatalog = []domain.WhisperModelOption{
	{
		ID:        "tiny.en",
		Name:      "Tiny (English)",
		FileName:  "ggml-tiny.en.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.en.bin",
		SizeLabel: "~75 MB",
	},
	{
		ID:        "tiny",
		Name:      "Tiny (Multilingual)",
		FileName:  "ggml-tiny.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SizeLabel: "~75 MB",
	},
	{
		ID:        "base.en",
		Name:      "Base (English)",
		FileName:  "ggml-base.en.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
		SizeLabel: "~142 MB",
	},
	{
		ID:        "base",
		Name:      "Base (Multilingual)",
		FileName:  "ggml-base.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SizeLabel: "~142 MB",
	},
	{
		ID:        "small.en",
		Name:      "Small (English)",
		FileName:  "ggml-small.en.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.en.bin",
		SizeLabel: "~466 MB",
	},
	{
		ID:        "small",
		Name:      "Small (Multilingual)",
		FileName:  "ggml-small.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SizeLabel: "~466 MB",
	},
	{
		ID:        "medium.en",
		Name:      "Medium (English)",
		FileName:  "ggml-medium.en.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.en.bin",
		SizeLabel: "~1.5 GB",
	},
	{
		ID:        "medium",
		Name:      "Medium (Multilingual)",
		FileName:  "ggml-medium.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SizeLabel: "~1.5 GB",
	},
	{
		ID:        "large-v3",
		Name:      "Large v3",
		FileName:  "ggml-large-v3.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SizeLabel: "~2.9 GB",
	},
	{
		ID:        "large-v3-turbo",
		Name:      "Large v3 Turbo",
		FileName:  "ggml-large-v3-turbo.bin",
		URL:       "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
		SizeLabel: "~1.6 GB",
	},
}

// ModelByID returns the catalog preset matching the given id.
func ModelByID(id string) (domain.WhisperModelOption, bool) {
	for _, model := range whisperModelCatalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.WhisperModelOption{}, false
}

// ListWhisperModels returns the catalog with download state resolved
// against the given model directory.
func ListWhisperModels(modelDir string) []domain.WhisperModelOption {
	models := make([]domain.WhisperModelOption, len(whisperModelCatalog))
	copy(models, whisperModelCatalog)

	for i := range models {
		path := filepath.Join(modelDir, models[i].FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			models[i].Downloaded = true
			models[i].LocalPath = path
		}
	}
	return models
}

// ResolveModelPath maps the --whisper-model value to a concrete local file.
// An existing file path wins; otherwise the value is treated as a catalog
// preset expected under modelDir.
func ResolveModelPath(modelDir, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("whisper model is required")
	}

	if info, err := os.Stat(trimmed); err == nil && !info.IsDir() {
		return trimmed, nil
	}

	model, ok := ModelByID(trimmed)
	if !ok {
		return "", fmt.Errorf("unknown whisper model %q (not a file and not a known preset)", trimmed)
	}

	path := filepath.Join(modelDir, model.FileName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("model %q is not downloaded (expected %s); rerun with --fetch-model", trimmed, path)
	}
	return path, nil
}

// FetchModel downloads a catalog preset into modelDir if it is missing and
// returns the local path.
func FetchModel(modelDir, id string) (string, error) {
	model, ok := ModelByID(strings.TrimSpace(id))
	if !ok {
		return "", fmt.Errorf("unknown whisper model %q", id)
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	target := filepath.Join(modelDir, model.FileName)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	if err := downloadURLToFile(target, model.URL, modelDownloadTimeout); err != nil {
		return "", fmt.Errorf("download model %s: %w", model.Name, err)
	}
	return target, nil
}

// downloadURLToFile streams a URL into targetPath via a temp file so a
// partial download never masquerades as a complete model.
func downloadURLToFile(targetPath, url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
