package config

import (
	"strings"

	"github.com/joho/godotenv"

	"ytnotes/internal/domain"
)

// EnvAPIKey names the environment variable holding the LLM credential.
const EnvAPIKey = "OPENAI_API_KEY"

// LoadAPIKey loads an optional .env file and returns the LLM credential.
// A missing or blank credential is a configuration error; it is reported
// before any network activity begins.
func LoadAPIKey(getenv func(string) string) (string, error) {
	_ = godotenv.Load()

	key := strings.TrimSpace(getenv(EnvAPIKey))
	if key == "" {
		return "", &domain.StageError{
			Kind:    domain.ErrConfiguration,
			Stage:   domain.RunStatusIdle,
			Message: EnvAPIKey + " is not set in the environment",
		}
	}
	return key, nil
}
