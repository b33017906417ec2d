package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"ytnotes/internal/domain"
)

// audioTemplate is the yt-dlp output template inside the run workspace.
// yt-dlp replaces %(ext)s with the real container extension.
const audioTemplate = "audio.%(ext)s"

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:youtu\.be/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:/shorts/)([A-Za-z0-9_-]{11})`),
}

var bareVideoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID returns the 11-character video ID from a YouTube URL or a
// bare ID string. Anything else is invalid input.
func ExtractVideoID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(trimmed); m != nil {
			return m[1], nil
		}
	}
	if bareVideoID.MatchString(trimmed) {
		return trimmed, nil
	}

	return "", &domain.StageError{
		Kind:    domain.ErrInvalidInput,
		Stage:   domain.RunStatusFetching,
		Message: fmt.Sprintf("cannot extract a YouTube video ID from %q", trimmed),
	}
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Result contains the downloaded audio artifact and video metadata.
type Result struct {
	AudioPath string
	VideoID   string
	Title     string
	Logs      []domain.CommandLog
}

// Fetcher downloads the best audio stream via yt-dlp with an explicit
// bounded retry policy instead of library-internal defaults.
type Fetcher struct {
	ytdlpPath string
	attempts  int
	delay     time.Duration
	runner    commandRunner
	readDir   func(name string) ([]os.DirEntry, error)
	onLog     func(log domain.CommandLog)
}

// NewFetcher constructs the production fetcher with OS dependencies.
func NewFetcher(onLog func(log domain.CommandLog)) *Fetcher {
	return &Fetcher{
		ytdlpPath: "yt-dlp",
		attempts:  2,
		delay:     2 * time.Second,
		runner:    &execRunner{},
		readDir:   os.ReadDir,
		onLog:     onLog,
	}
}

// Run downloads the audio stream into workDir and probes the video title.
// The title probe is best-effort and never fails the run.
func (f *Fetcher) Run(ctx context.Context, rawURL, workDir string) (Result, error) {
	videoID, err := ExtractVideoID(rawURL)
	if err != nil {
		return Result{}, err
	}

	template := filepath.Join(workDir, audioTemplate)
	args := buildDownloadArgs(template, rawURL)

	var logs []domain.CommandLog
	var lastLog domain.CommandLog
	var lastErr error

	for attempt := 1; attempt <= f.attempts; attempt++ {
		cmdResult, runErr := f.runner.Run(ctx, f.ytdlpPath, args...)
		lastLog = domain.CommandLog{
			Command:  f.ytdlpPath,
			Args:     args,
			ExitCode: cmdResult.ExitCode,
			Stdout:   cmdResult.Stdout,
			Stderr:   cmdResult.Stderr,
		}
		f.emitLog(lastLog)
		logs = append(logs, lastLog)

		if runErr == nil {
			lastErr = nil
			break
		}
		lastErr = runErr

		if attempt < f.attempts {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}
	}

	if lastErr != nil {
		return Result{}, &domain.StageError{
			Kind:       domain.ErrDownload,
			Stage:      domain.RunStatusFetching,
			Message:    fmt.Sprintf("yt-dlp failed after %d attempts", f.attempts),
			CommandLog: lastLog,
			Err:        lastErr,
		}
	}

	audioPath, err := f.findDownloadedFile(workDir)
	if err != nil {
		return Result{}, &domain.StageError{
			Kind:       domain.ErrDownload,
			Stage:      domain.RunStatusFetching,
			Message:    err.Error(),
			CommandLog: lastLog,
			Err:        err,
		}
	}

	title, titleLog := f.probeTitle(ctx, rawURL)
	logs = append(logs, titleLog)

	return Result{
		AudioPath: audioPath,
		VideoID:   videoID,
		Title:     title,
		Logs:      logs,
	}, nil
}

// probeTitle asks yt-dlp for the video title without downloading.
func (f *Fetcher) probeTitle(ctx context.Context, rawURL string) (string, domain.CommandLog) {
	args := buildTitleArgs(rawURL)
	cmdResult, runErr := f.runner.Run(ctx, f.ytdlpPath, args...)
	log := domain.CommandLog{
		Command:  f.ytdlpPath,
		Args:     args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   cmdResult.Stdout,
		Stderr:   cmdResult.Stderr,
	}
	f.emitLog(log)
	if runErr != nil {
		return "", log
	}

	title, _, _ := strings.Cut(strings.TrimSpace(cmdResult.Stdout), "\n")
	return strings.TrimSpace(title), log
}

// findDownloadedFile locates the produced audio file by template prefix.
// The newest match wins when yt-dlp leaves intermediate files behind.
func (f *Fetcher) findDownloadedFile(workDir string) (string, error) {
	entries, err := f.readDir(workDir)
	if err != nil {
		return "", fmt.Errorf("cannot read download workspace: %s", workDir)
	}

	prefix := strings.TrimSuffix(audioTemplate, "%(ext)s")
	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = entry.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", errors.New("yt-dlp ran but no audio file was produced")
	}

	return filepath.Join(workDir, newest), nil
}

// emitLog forwards command logs when a callback is configured.
func (f *Fetcher) emitLog(log domain.CommandLog) {
	if f.onLog != nil {
		f.onLog(log)
	}
}

// buildDownloadArgs builds the yt-dlp CLI args for a best-audio download.
func buildDownloadArgs(template, rawURL string) []string {
	return []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"-o", template,
		rawURL,
	}
}

// buildTitleArgs builds the yt-dlp CLI args for a metadata-only title probe.
func buildTitleArgs(rawURL string) []string {
	return []string{
		"--no-playlist",
		"--skip-download",
		"--print", "title",
		rawURL,
	}
}

// NewFetcherForTests constructs a fetcher with injectable dependencies.
func NewFetcherForTests(
	ytdlpPath string,
	attempts int,
	delay time.Duration,
	runner commandRunner,
	readDir func(name string) ([]os.DirEntry, error),
) *Fetcher {
	return &Fetcher{
		ytdlpPath: ytdlpPath,
		attempts:  attempts,
		delay:     delay,
		runner:    runner,
		readDir:   readDir,
	}
}
