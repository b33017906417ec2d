package transcribe

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ytnotes/internal/domain"
)

// Request contains input audio and execution callbacks for one run.
type Request struct {
	AudioPath string
	ModelPath string
	Language  string
	OnLog     func(log domain.CommandLog)
}

// Result contains the preprocessed audio path and the parsed transcript.
type Result struct {
	PreprocessedAudioPath string
	Transcript            domain.Transcript
	Logs                  []domain.CommandLog
	tempDir               string
}

// Cleanup removes temporary preprocessing artifacts created by Run.
func (r *Result) Cleanup() error {
	if r == nil || r.tempDir == "" {
		return nil
	}

	if err := os.RemoveAll(r.tempDir); err != nil {
		return err
	}
	r.tempDir = ""
	return nil
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

// Pipeline orchestrates ffmpeg preprocessing and whisper.cpp transcription.
type Pipeline struct {
	ffmpegPath  string
	whisperPath string
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline() *Pipeline {
	return &Pipeline{
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper.cpp",
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}

// Run performs preprocessing and transcription, returning a timestamped
// transcript. All intermediate files live in a private temp workspace.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, &domain.StageError{
			Kind:    domain.ErrTranscription,
			Stage:   domain.RunStatusTranscribing,
			Message: "input audio path is required",
		}
	}

	if _, err := p.stat(req.AudioPath); err != nil {
		return Result{}, &domain.StageError{
			Kind:    domain.ErrTranscription,
			Stage:   domain.RunStatusTranscribing,
			Message: fmt.Sprintf("cannot access input audio: %s", req.AudioPath),
			Err:     err,
		}
	}

	modelPath, err := p.resolveModelPath(req.ModelPath)
	if err != nil {
		return Result{}, &domain.StageError{
			Kind:    domain.ErrTranscription,
			Stage:   domain.RunStatusTranscribing,
			Message: err.Error(),
			Err:     err,
		}
	}

	tempDir, err := p.mkdirTemp("", "ytnotes-transcribe-*")
	if err != nil {
		return Result{}, &domain.StageError{
			Kind:    domain.ErrTranscription,
			Stage:   domain.RunStatusTranscribing,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}

	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	args := buildFFmpegArgs(req.AudioPath, wavPath)

	cmdResult, runErr := p.runner.Run(ctx, p.ffmpegPath, args...)
	ffmpegLog := domain.CommandLog{
		Command:  p.ffmpegPath,
		Args:     args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   cmdResult.Stdout,
		Stderr:   cmdResult.Stderr,
	}
	emitLog(req.OnLog, ffmpegLog)
	if runErr != nil {
		_ = p.removeAll(tempDir)
		return Result{}, &domain.StageError{
			Kind:       domain.ErrTranscription,
			Stage:      domain.RunStatusTranscribing,
			Message:    "ffmpeg audio conversion failed",
			CommandLog: ffmpegLog,
			Err:        runErr,
		}
	}

	if _, err := p.stat(wavPath); err != nil {
		_ = p.removeAll(tempDir)
		return Result{}, &domain.StageError{
			Kind:       domain.ErrTranscription,
			Stage:      domain.RunStatusTranscribing,
			Message:    "ffmpeg completed but output file is missing",
			CommandLog: ffmpegLog,
			Err:        err,
		}
	}

	outBase := filepath.Join(tempDir, "transcript")
	whisperArgs := buildWhisperArgs(modelPath, wavPath, outBase, req.Language)

	whisperResult, runErr := p.runner.Run(ctx, p.whisperPath, whisperArgs...)
	whisperLog := domain.CommandLog{
		Command:  p.whisperPath,
		Args:     whisperArgs,
		ExitCode: whisperResult.ExitCode,
		Stdout:   whisperResult.Stdout,
		Stderr:   whisperResult.Stderr,
	}
	emitLog(req.OnLog, whisperLog)
	if runErr != nil {
		_ = p.removeAll(tempDir)
		return Result{}, &domain.StageError{
			Kind:       domain.ErrTranscription,
			Stage:      domain.RunStatusTranscribing,
			Message:    "whisper.cpp transcription failed",
			CommandLog: whisperLog,
			Err:        runErr,
		}
	}

	csvPath := outBase + ".csv"
	content, err := p.readFile(csvPath)
	if err != nil {
		_ = p.removeAll(tempDir)
		return Result{}, &domain.StageError{
			Kind:       domain.ErrTranscription,
			Stage:      domain.RunStatusTranscribing,
			Message:    "whisper.cpp completed but transcript .csv file is missing",
			CommandLog: whisperLog,
			Err:        err,
		}
	}

	transcript, err := parseSegmentsCSV(content)
	if err != nil {
		_ = p.removeAll(tempDir)
		return Result{}, &domain.StageError{
			Kind:       domain.ErrTranscription,
			Stage:      domain.RunStatusTranscribing,
			Message:    fmt.Sprintf("cannot parse transcript segments: %v", err),
			CommandLog: whisperLog,
			Err:        err,
		}
	}

	return Result{
		PreprocessedAudioPath: wavPath,
		Transcript:            transcript,
		Logs:                  []domain.CommandLog{ffmpegLog, whisperLog},
		tempDir:               tempDir,
	}, nil
}

// emitLog forwards command logs when a callback is configured.
func emitLog(cb func(log domain.CommandLog), log domain.CommandLog) {
	if cb != nil {
		cb(log)
	}
}

// resolveModelPath returns the model file path from file or directory input.
func (p *Pipeline) resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := p.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := p.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// parseSegmentsCSV converts whisper.cpp CSV output into ordered segments.
// Rows are start_ms, end_ms, text; a leading header row is skipped.
func parseSegmentsCSV(content []byte) (domain.Transcript, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return domain.Transcript{}, err
	}

	var segments []domain.Segment
	for i, record := range records {
		if len(record) < 3 {
			continue
		}
		start, startErr := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		end, endErr := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if startErr != nil || endErr != nil {
			// header row or malformed line; only tolerated at the top
			if i == 0 {
				continue
			}
			return domain.Transcript{}, fmt.Errorf("malformed segment row %d: %v", i+1, record)
		}

		text := strings.TrimSpace(strings.Join(record[2:], ","))
		segments = append(segments, domain.Segment{
			Start: time.Duration(start) * time.Millisecond,
			End:   time.Duration(end) * time.Millisecond,
			Text:  text,
		})
	}

	return domain.Transcript{Segments: segments}, nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for CSV segment export.
func buildWhisperArgs(modelPath, audioPath, outBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-ocsv",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	ffmpegPath string,
	whisperPath string,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	stat func(name string) (os.FileInfo, error),
) *Pipeline {
	return &Pipeline{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		runner:      runner,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		stat:        stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
	}
}
