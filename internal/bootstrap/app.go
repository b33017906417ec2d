package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"ytnotes/internal/chunk"
	"ytnotes/internal/config"
	"ytnotes/internal/diagnostics"
	"ytnotes/internal/domain"
	"ytnotes/internal/fetch"
	"ytnotes/internal/jobs"
	"ytnotes/internal/notes"
	"ytnotes/internal/transcribe"
)

// audioFetcher isolates the download stage behind an interface.
type audioFetcher interface {
	Run(ctx context.Context, rawURL, workDir string) (fetch.Result, error)
}

// transcriptRunner isolates the transcription pipeline behind an interface.
type transcriptRunner interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// chunkSummarizer isolates the language-model stage behind an interface.
type chunkSummarizer interface {
	SummarizeChunks(ctx context.Context, chunks []string) ([]string, error)
	Synthesize(ctx context.Context, summaries []string) (string, error)
}

// documentWriter isolates notes persistence behind an interface.
type documentWriter interface {
	Write(path, doc string) error
}

// App wires configuration, diagnostics, and the notes pipeline stages.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Runs        *jobs.Manager
	Fetcher     audioFetcher
	Transcriber transcriptRunner
	Summarizer  chunkSummarizer
	Composer    documentWriter
	Diagnostics domain.DiagnosticReport

	checker      *diagnostics.Checker
	events       *jobs.EventBus
	logger       *slog.Logger
	mkdirTemp    func(dir, pattern string) (string, error)
	removeAll    func(path string) error
	newRunID     func() string
	currentRunID string
}

// RunRequest describes one notes run from URL to output file.
type RunRequest struct {
	URL           string
	OutputPath    string
	ModelPath     string
	Language      string
	MaxChunkChars int
	KeepAudio     bool
}

// RunResult summarizes a completed run.
type RunResult struct {
	RunID      string
	OutputPath string
	Title      string
	ChunkCount int
	AudioPath  string
}

// New builds the application with persisted settings and preflight checks.
// The Summarizer is attached separately once the credential is known.
func New(logger *slog.Logger) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".ytnotes", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		Settings:    settings,
		Store:       store,
		Runs:        jobs.NewManager(),
		Transcriber: transcribe.NewPipeline(),
		Composer:    notes.NewComposer(),
		Diagnostics: report,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
		logger:      logger,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		newRunID:    uuid.NewString,
	}
	app.Fetcher = fetch.NewFetcher(app.publishCommandLog)
	return app, nil
}

// SaveSettings persists the current settings snapshot through the store.
func (a *App) SaveSettings() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Save(a.Settings)
}

// RefreshDiagnostics reruns every preflight check against current settings.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	a.Diagnostics = a.checker.Run(a.Settings)
	return a.Diagnostics
}

// Events returns the recorded run trail from the beginning.
func (a *App) Events() []jobs.Event {
	return a.events.Since(0)
}

// LastCommandLog returns the newest recorded external command, if any.
func (a *App) LastCommandLog() (jobs.Event, bool) {
	return a.events.LastCommandLog()
}

// Run executes the full pipeline for one URL. Stages run strictly in
// sequence; the first unrecovered error moves the run to failed and is
// returned as-is.
func (a *App) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if a.Summarizer == nil {
		return RunResult{}, &domain.StageError{
			Kind:    domain.ErrConfiguration,
			Stage:   domain.RunStatusIdle,
			Message: "summarizer is not configured",
		}
	}
	if req.MaxChunkChars <= 0 {
		return RunResult{}, &domain.StageError{
			Kind:    domain.ErrInvalidInput,
			Stage:   domain.RunStatusIdle,
			Message: fmt.Sprintf("chunk size limit must be positive, got %d", req.MaxChunkChars),
		}
	}

	runID := a.newRunID()
	if err := a.Runs.Start(runID); err != nil {
		return RunResult{}, err
	}
	a.currentRunID = runID
	a.publishStatus(domain.RunStatusFetching)
	a.logger.Info("run started", slog.String("runId", runID), slog.String("url", req.URL))

	workDir, err := a.mkdirTemp("", "ytnotes-audio-*")
	if err != nil {
		return RunResult{}, a.fail(&domain.StageError{
			Kind:    domain.ErrDownload,
			Stage:   domain.RunStatusFetching,
			Message: "failed to create audio workspace",
			Err:     err,
		})
	}
	// best-effort cleanup, not guaranteed on hard aborts
	defer func() {
		if !req.KeepAudio {
			_ = a.removeAll(workDir)
		}
	}()

	fetched, err := a.Fetcher.Run(ctx, req.URL, workDir)
	if err != nil {
		return RunResult{}, a.fail(err)
	}
	a.logger.Info("audio downloaded",
		slog.String("videoId", fetched.VideoID),
		slog.String("title", fetched.Title),
	)

	if err := a.advance(domain.RunStatusTranscribing); err != nil {
		return RunResult{}, a.fail(err)
	}
	transcribed, err := a.Transcriber.Run(ctx, transcribe.Request{
		AudioPath: fetched.AudioPath,
		ModelPath: req.ModelPath,
		Language:  req.Language,
		OnLog:     a.publishCommandLog,
	})
	if err != nil {
		return RunResult{}, a.fail(err)
	}
	defer func() { _ = transcribed.Cleanup() }()

	text := transcribed.Transcript.Text()
	if text == "" {
		return RunResult{}, a.fail(&domain.StageError{
			Kind:    domain.ErrTranscription,
			Stage:   domain.RunStatusTranscribing,
			Message: "transcript is empty",
		})
	}

	if err := a.advance(domain.RunStatusChunking); err != nil {
		return RunResult{}, a.fail(err)
	}
	chunks := chunk.Split(text, req.MaxChunkChars)
	if len(chunks) == 0 {
		return RunResult{}, a.fail(&domain.StageError{
			Kind:    domain.ErrTranscription,
			Stage:   domain.RunStatusChunking,
			Message: "transcript produced no chunks",
		})
	}
	a.events.Publish(jobs.Event{
		RunID:      runID,
		Type:       jobs.EventTypeLog,
		Message:    "transcript chunked",
		ChunkCount: len(chunks),
	})
	a.logger.Info("transcript chunked", slog.Int("chunks", len(chunks)))

	if err := a.advance(domain.RunStatusSummarizing); err != nil {
		return RunResult{}, a.fail(err)
	}
	summaries, err := a.Summarizer.SummarizeChunks(ctx, chunks)
	if err != nil {
		return RunResult{}, a.fail(err)
	}
	synthesized, err := a.Summarizer.Synthesize(ctx, summaries)
	if err != nil {
		return RunResult{}, a.fail(err)
	}

	if err := a.advance(domain.RunStatusComposing); err != nil {
		return RunResult{}, a.fail(err)
	}
	doc, err := notes.Compose(synthesized, summaries, fetched.Title)
	if err != nil {
		return RunResult{}, a.fail(err)
	}
	if err := a.Composer.Write(req.OutputPath, doc); err != nil {
		return RunResult{}, a.fail(err)
	}

	if err := a.advance(domain.RunStatusDone); err != nil {
		return RunResult{}, a.fail(err)
	}
	a.events.Publish(jobs.Event{
		RunID:      runID,
		Type:       jobs.EventTypeResult,
		OutputPath: req.OutputPath,
		ChunkCount: len(chunks),
	})
	a.logger.Info("notes written", slog.String("output", req.OutputPath))

	result := RunResult{
		RunID:      runID,
		OutputPath: req.OutputPath,
		Title:      fetched.Title,
		ChunkCount: len(chunks),
	}
	if req.KeepAudio {
		result.AudioPath = fetched.AudioPath
	}
	return result, nil
}

// advance moves the run state machine forward and records the transition.
func (a *App) advance(status domain.RunStatus) error {
	if err := a.Runs.Transition(status); err != nil {
		return err
	}
	a.publishStatus(status)
	return nil
}

// publishStatus records a status event for the active run.
func (a *App) publishStatus(status domain.RunStatus) {
	a.events.Publish(jobs.Event{
		RunID:  a.currentRunID,
		Type:   jobs.EventTypeStatus,
		Status: status,
	})
}

// publishCommandLog records one external command invocation.
func (a *App) publishCommandLog(log domain.CommandLog) {
	a.events.Publish(jobs.Event{
		RunID:    a.currentRunID,
		Type:     jobs.EventTypeLog,
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
		Stderr:   log.Stderr,
	})
}

// fail moves the run to its terminal state and records the error.
// Context cancellation maps to cancelled rather than failed.
func (a *App) fail(err error) error {
	status := domain.RunStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = domain.RunStatusCancelled
	}
	_ = a.Runs.Transition(status)
	a.events.Publish(jobs.Event{
		RunID:   a.currentRunID,
		Type:    jobs.EventTypeError,
		Status:  status,
		Message: err.Error(),
	})
	return err
}
