package config

import (
	"os"
	"path/filepath"

	"ytnotes/internal/domain"
)

// DefaultSettings returns baseline local configuration for first run.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelPath:     filepath.Join(homeDir, ".ytnotes", "models"),
		WhisperModel:  "base",
		OpenAIModel:   "gpt-4o-mini",
		MaxChunkChars: 12000,
		Language:      "auto",
		OutputPath:    "notes.md",
	}
}
