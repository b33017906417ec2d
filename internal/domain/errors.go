package domain

import "fmt"

// ErrorKind classifies unrecovered pipeline failures for exit-code mapping.
type ErrorKind string

const (
	ErrInvalidInput  ErrorKind = "invalid_input"
	ErrDownload      ErrorKind = "download"
	ErrTranscription ErrorKind = "transcription"
	ErrSummarization ErrorKind = "summarization"
	ErrCompose       ErrorKind = "compose"
	ErrConfiguration ErrorKind = "configuration"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// StageError is a stage-aware error with optional command context.
type StageError struct {
	Kind       ErrorKind  `json:"kind"`
	Stage      RunStatus  `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats stage failures for logs and the CLI error stream.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
