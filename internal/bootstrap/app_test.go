package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"ytnotes/internal/domain"
	"ytnotes/internal/fetch"
	"ytnotes/internal/jobs"
	"ytnotes/internal/transcribe"
)

// fakeFetcher returns a canned download result or error.
type fakeFetcher struct {
	result fetch.Result
	err    error
	calls  int
}

// Run delegates to the injected outcome.
func (f *fakeFetcher) Run(ctx context.Context, rawURL, workDir string) (fetch.Result, error) {
	f.calls++
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	return f.result, nil
}

// fetcherFunc adapts a closure to the download-stage interface.
type fetcherFunc func(ctx context.Context, rawURL, workDir string) (fetch.Result, error)

// Run delegates to the closure.
func (f fetcherFunc) Run(ctx context.Context, rawURL, workDir string) (fetch.Result, error) {
	return f(ctx, rawURL, workDir)
}

// fakeStore records every persisted settings snapshot.
type fakeStore struct {
	saved []domain.Settings
}

// Load returns zero settings.
func (f *fakeStore) Load() (domain.Settings, error) { return domain.Settings{}, nil }

// Save records the snapshot.
func (f *fakeStore) Save(s domain.Settings) error {
	f.saved = append(f.saved, s)
	return nil
}

// fakeTranscriber returns a canned transcript or error.
type fakeTranscriber struct {
	transcript domain.Transcript
	err        error
	gotRequest transcribe.Request
}

// Run delegates to the injected outcome.
func (f *fakeTranscriber) Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	f.gotRequest = req
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return transcribe.Result{Transcript: f.transcript}, nil
}

// fakeSummarizer echoes chunks back as summaries.
type fakeSummarizer struct {
	synthesized string
	err         error
	gotChunks   []string
}

// SummarizeChunks labels each chunk in order.
func (f *fakeSummarizer) SummarizeChunks(ctx context.Context, chunks []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotChunks = chunks
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = fmt.Sprintf("## Chunk %d\n\n%s", i+1, c)
	}
	return out, nil
}

// Synthesize returns the canned final document.
func (f *fakeSummarizer) Synthesize(ctx context.Context, summaries []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.synthesized, nil
}

// fakeComposer records the written document.
type fakeComposer struct {
	path string
	doc  string
	err  error
}

// Write records the output or fails.
func (f *fakeComposer) Write(path, doc string) error {
	if f.err != nil {
		return f.err
	}
	f.path = path
	f.doc = doc
	return nil
}

// newTestApp assembles an App from fakes without touching user settings.
func newTestApp(fetcher *fakeFetcher, transcriber *fakeTranscriber, summarizer *fakeSummarizer, composer *fakeComposer) *App {
	return &App{
		Runs:        jobs.NewManager(),
		Fetcher:     fetcher,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Composer:    composer,
		events:      jobs.NewEventBus(100),
		logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		newRunID:    func() string { return "run-test" },
	}
}

const synthesizedDoc = "# Executive Summary\n\n- point\n\n# Full Outline\n\n1. a\n\n# Detailed Notes\n\nbody\n\n" +
	"# Key Concepts & Definitions\n\n- term\n\n# Memorable Examples / Analogies\n\n- ex\n\n# Action Items / Takeaways\n\n- do"

// TestAppRunHappyPath checks the full stage sequence and the written doc.
func TestAppRunHappyPath(t *testing.T) {
	fetcher := &fakeFetcher{result: fetch.Result{
		AudioPath: "/tmp/audio.webm",
		VideoID:   "dQw4w9WgXcQ",
		Title:     "Lecture 1",
	}}
	transcriber := &fakeTranscriber{transcript: domain.Transcript{Segments: []domain.Segment{
		{Start: 0, End: time.Second, Text: "Hello students."},
		{Start: time.Second, End: 2 * time.Second, Text: "Welcome back."},
	}}}
	summarizer := &fakeSummarizer{synthesized: synthesizedDoc}
	composer := &fakeComposer{}
	app := newTestApp(fetcher, transcriber, summarizer, composer)

	result, err := app.Run(context.Background(), RunRequest{
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		OutputPath:    "/out/notes.md",
		ModelPath:     "/models/ggml-base.bin",
		Language:      "auto",
		MaxChunkChars: 12000,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if app.Runs.Current().Status != domain.RunStatusDone {
		t.Fatalf("status = %s, want done", app.Runs.Current().Status)
	}
	if result.ChunkCount != 1 {
		t.Fatalf("chunk count = %d, want 1", result.ChunkCount)
	}
	if len(summarizer.gotChunks) != 1 || !strings.Contains(summarizer.gotChunks[0], "Hello students.") {
		t.Fatalf("summarizer chunks = %v", summarizer.gotChunks)
	}
	if result.Title != "Lecture 1" {
		t.Fatalf("title = %q", result.Title)
	}
	if composer.path != "/out/notes.md" {
		t.Fatalf("written path = %q", composer.path)
	}
	if !strings.Contains(composer.doc, "> Notes for: Lecture 1") {
		t.Fatal("document missing title line")
	}
	for _, heading := range []string{"# Executive Summary", "# Action Items / Takeaways"} {
		if !strings.Contains(composer.doc, heading) {
			t.Fatalf("document missing %q", heading)
		}
	}
	if transcriber.gotRequest.ModelPath != "/models/ggml-base.bin" {
		t.Fatalf("model path = %q", transcriber.gotRequest.ModelPath)
	}

	// the trail must show every stage in order
	var statuses []domain.RunStatus
	for _, event := range app.Events() {
		if event.Type == jobs.EventTypeStatus {
			statuses = append(statuses, event.Status)
		}
	}
	want := []domain.RunStatus{
		domain.RunStatusFetching,
		domain.RunStatusTranscribing,
		domain.RunStatusChunking,
		domain.RunStatusSummarizing,
		domain.RunStatusComposing,
		domain.RunStatusDone,
	}
	if len(statuses) != len(want) {
		t.Fatalf("status events = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("status[%d] = %s, want %s", i, statuses[i], want[i])
		}
	}
}

// TestAppRunEmptyTranscriptFails checks the empty-transcript guard.
func TestAppRunEmptyTranscriptFails(t *testing.T) {
	fetcher := &fakeFetcher{result: fetch.Result{AudioPath: "/tmp/audio.webm"}}
	transcriber := &fakeTranscriber{transcript: domain.Transcript{Segments: []domain.Segment{
		{Text: "   "},
	}}}
	composer := &fakeComposer{}
	app := newTestApp(fetcher, transcriber, &fakeSummarizer{synthesized: synthesizedDoc}, composer)

	_, err := app.Run(context.Background(), RunRequest{
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		OutputPath:    "/out/notes.md",
		ModelPath:     "/models/ggml-base.bin",
		MaxChunkChars: 1000,
	})
	if err == nil {
		t.Fatal("expected error for empty transcript")
	}

	var sErr *domain.StageError
	if !errors.As(err, &sErr) {
		t.Fatalf("error type = %T, want *domain.StageError", err)
	}
	if sErr.Kind != domain.ErrTranscription {
		t.Fatalf("kind = %s, want %s", sErr.Kind, domain.ErrTranscription)
	}
	if app.Runs.Current().Status != domain.RunStatusFailed {
		t.Fatalf("status = %s, want failed", app.Runs.Current().Status)
	}
	if composer.path != "" {
		t.Fatal("no document should be written for an empty transcript")
	}
}

// TestAppRunDownloadFailure checks failed state and error trail.
func TestAppRunDownloadFailure(t *testing.T) {
	downloadErr := &domain.StageError{
		Kind:    domain.ErrDownload,
		Stage:   domain.RunStatusFetching,
		Message: "yt-dlp failed after 2 attempts",
	}
	app := newTestApp(&fakeFetcher{err: downloadErr}, &fakeTranscriber{}, &fakeSummarizer{}, &fakeComposer{})

	_, err := app.Run(context.Background(), RunRequest{
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		OutputPath:    "/out/notes.md",
		ModelPath:     "/models/ggml-base.bin",
		MaxChunkChars: 1000,
	})
	if !errors.Is(err, downloadErr) {
		t.Fatalf("error = %v, want the download error", err)
	}
	if app.Runs.Current().Status != domain.RunStatusFailed {
		t.Fatalf("status = %s, want failed", app.Runs.Current().Status)
	}

	events := app.Events()
	last := events[len(events)-1]
	if last.Type != jobs.EventTypeError {
		t.Fatalf("last event type = %s, want error", last.Type)
	}
	if !strings.Contains(last.Message, "yt-dlp failed") {
		t.Fatalf("error event message = %q", last.Message)
	}
}

// TestAppRunFailureKeepsLastCommandLog checks that the stderr of the
// failing external command stays retrievable after the run fails.
func TestAppRunFailureKeepsLastCommandLog(t *testing.T) {
	app := newTestApp(&fakeFetcher{}, &fakeTranscriber{}, &fakeSummarizer{}, &fakeComposer{})
	app.Fetcher = fetcherFunc(func(ctx context.Context, rawURL, workDir string) (fetch.Result, error) {
		app.publishCommandLog(domain.CommandLog{
			Command:  "yt-dlp",
			Args:     []string{"-f", "bestaudio/best"},
			ExitCode: 1,
			Stderr:   "ERROR: Video unavailable",
		})
		return fetch.Result{}, &domain.StageError{
			Kind:    domain.ErrDownload,
			Stage:   domain.RunStatusFetching,
			Message: "yt-dlp failed after 2 attempts",
		}
	})

	_, err := app.Run(context.Background(), RunRequest{
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		OutputPath:    "/out/notes.md",
		ModelPath:     "/models/ggml-base.bin",
		MaxChunkChars: 1000,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	event, ok := app.LastCommandLog()
	if !ok {
		t.Fatal("expected a recorded command log after the failed run")
	}
	if event.Command != "yt-dlp" {
		t.Fatalf("command = %q, want yt-dlp", event.Command)
	}
	if !strings.Contains(event.Stderr, "Video unavailable") {
		t.Fatalf("stderr = %q, want captured yt-dlp output", event.Stderr)
	}
}

// TestAppSaveSettings checks persisting through the store and the nil
// store no-op.
func TestAppSaveSettings(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(&fakeFetcher{}, &fakeTranscriber{}, &fakeSummarizer{}, &fakeComposer{})
	app.Store = store
	app.Settings = domain.Settings{OutputPath: "lecture.md", MaxChunkChars: 8000}

	if err := app.SaveSettings(); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved snapshots = %d, want 1", len(store.saved))
	}
	if store.saved[0].OutputPath != "lecture.md" || store.saved[0].MaxChunkChars != 8000 {
		t.Fatalf("saved = %+v", store.saved[0])
	}

	app.Store = nil
	if err := app.SaveSettings(); err != nil {
		t.Fatalf("SaveSettings() without store error = %v", err)
	}
}

// TestAppRunCancellationMarksCancelled checks context cancellation mapping.
func TestAppRunCancellationMarksCancelled(t *testing.T) {
	app := newTestApp(&fakeFetcher{err: context.Canceled}, &fakeTranscriber{}, &fakeSummarizer{}, &fakeComposer{})

	_, err := app.Run(context.Background(), RunRequest{
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		OutputPath:    "/out/notes.md",
		ModelPath:     "/models/ggml-base.bin",
		MaxChunkChars: 1000,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if app.Runs.Current().Status != domain.RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", app.Runs.Current().Status)
	}
}

// TestAppRunRequiresSummarizer checks the configuration guard.
func TestAppRunRequiresSummarizer(t *testing.T) {
	app := newTestApp(&fakeFetcher{}, &fakeTranscriber{}, nil, &fakeComposer{})
	app.Summarizer = nil

	_, err := app.Run(context.Background(), RunRequest{
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		OutputPath:    "/out/notes.md",
		MaxChunkChars: 1000,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var sErr *domain.StageError
	if !errors.As(err, &sErr) {
		t.Fatalf("error type = %T, want *domain.StageError", err)
	}
	if sErr.Kind != domain.ErrConfiguration {
		t.Fatalf("kind = %s, want %s", sErr.Kind, domain.ErrConfiguration)
	}
}

// TestAppRunRejectsSecondActiveRun checks the single-run guard.
func TestAppRunRejectsSecondActiveRun(t *testing.T) {
	app := newTestApp(&fakeFetcher{}, &fakeTranscriber{}, &fakeSummarizer{}, &fakeComposer{})
	if err := app.Runs.Start("occupied"); err != nil {
		t.Fatalf("occupy manager: %v", err)
	}

	_, err := app.Run(context.Background(), RunRequest{
		URL:           "https://youtu.be/dQw4w9WgXcQ",
		OutputPath:    "/out/notes.md",
		MaxChunkChars: 1000,
	})
	if !errors.Is(err, jobs.ErrRunAlreadyActive) {
		t.Fatalf("error = %v, want %v", err, jobs.ErrRunAlreadyActive)
	}
}

// TestAppRunRejectsNonPositiveChunkLimit checks input validation.
func TestAppRunRejectsNonPositiveChunkLimit(t *testing.T) {
	fetcher := &fakeFetcher{}
	app := newTestApp(fetcher, &fakeTranscriber{}, &fakeSummarizer{}, &fakeComposer{})

	_, err := app.Run(context.Background(), RunRequest{
		URL:        "https://youtu.be/dQw4w9WgXcQ",
		OutputPath: "/out/notes.md",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var sErr *domain.StageError
	if !errors.As(err, &sErr) {
		t.Fatalf("error type = %T, want *domain.StageError", err)
	}
	if sErr.Kind != domain.ErrInvalidInput {
		t.Fatalf("kind = %s, want %s", sErr.Kind, domain.ErrInvalidInput)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetcher calls = %d, want 0", fetcher.calls)
	}
}
