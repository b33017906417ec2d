package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ytnotes/internal/config"
	"ytnotes/internal/domain"
)

// passingChecker builds a checker whose dependencies all succeed.
func passingChecker(t *testing.T) *Checker {
	t.Helper()
	return NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) string { return "sk-test" },
	)
}

// TestCheckerRunAllPass checks a fully healthy environment.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	report := passingChecker(t).Run(domain.Settings{
		ModelPath:  modelPath,
		OutputPath: filepath.Join(root, "out", "notes.md"),
	})

	if report.HasFailures {
		t.Fatalf("unexpected failures: %+v", report.Items)
	}
	if len(report.Items) != 6 {
		t.Fatalf("items = %d, want 6", len(report.Items))
	}
}

// TestCheckerMissingTool checks the PATH lookup failure item.
func TestCheckerMissingTool(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	checker := NewCheckerForTests(
		func(name string) (string, error) {
			if name == "yt-dlp" {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + name, nil
		},
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) string { return "sk-test" },
	)

	report := checker.Run(domain.Settings{
		ModelPath:  modelPath,
		OutputPath: filepath.Join(root, "notes.md"),
	})
	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	item := findItem(t, report, "tool_yt-dlp")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %s, want fail", item.Status)
	}
}

// TestCheckerModelDirectoryWithoutModels checks empty model dirs fail.
func TestCheckerModelDirectoryWithoutModels(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	report := passingChecker(t).Run(domain.Settings{
		ModelPath:  modelDir,
		OutputPath: filepath.Join(root, "notes.md"),
	})

	item := findItem(t, report, "model_path")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %s, want fail", item.Status)
	}
	if item.Hint == "" {
		t.Fatal("expected a hint for the model path failure")
	}
}

// TestCheckerModelDirectoryWithModel checks .gguf discovery passes.
func TestCheckerModelDirectoryWithModel(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modelDir, "small.gguf"), []byte("m"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	report := passingChecker(t).Run(domain.Settings{
		ModelPath:  modelDir,
		OutputPath: filepath.Join(root, "notes.md"),
	})

	item := findItem(t, report, "model_path")
	if item.Status != domain.DiagnosticStatusPass {
		t.Fatalf("status = %s, want pass: %s", item.Status, item.Message)
	}
}

// TestCheckerMissingAPIKey checks the credential preflight item.
func TestCheckerMissingAPIKey(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		os.Stat,
		os.ReadDir,
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
		func(string) string { return "  " },
	)

	report := checker.Run(domain.Settings{
		ModelPath:  modelPath,
		OutputPath: filepath.Join(root, "notes.md"),
	})
	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	item := findItem(t, report, "api_key")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("status = %s, want fail", item.Status)
	}
	if item.Name != config.EnvAPIKey {
		t.Fatalf("name = %q, want %q", item.Name, config.EnvAPIKey)
	}
}

// findItem locates a report item by id.
func findItem(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %q not found in report: %+v", id, report.Items)
	return domain.DiagnosticItem{}
}
