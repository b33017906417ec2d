// Package cli implements the ytnotes command line front end.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ytnotes/internal/bootstrap"
	"ytnotes/internal/config"
	"ytnotes/internal/domain"
	"ytnotes/internal/fetch"
	"ytnotes/internal/jobs"
	"ytnotes/internal/summarize"
)

const (
	exitOK      = 0
	exitFailure = 1
	// exitUsage covers invalid input and missing configuration.
	exitUsage = 2
)

// options holds the parsed command line. Zero values mean "use the
// persisted setting".
type options struct {
	url          string
	output       string
	openAIModel  string
	whisperModel string
	fetchModel   string
	maxChars     int
	language     string
	keepAudio    bool
	verbose      bool
	doctor       bool
	listModels   bool
}

// Main runs the command line and returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if opts.url == "" && !opts.doctor && !opts.listModels && opts.fetchModel == "" {
		fmt.Fprintln(stderr, "error: a video URL is required")
		return exitUsage
	}
	if opts.url != "" {
		if _, err := fetch.ExtractVideoID(opts.url); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitUsage
		}
	}

	logLevel := slog.LevelWarn
	if opts.verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))

	app, err := bootstrap.New(logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	app.Settings = applyOverrides(app.Settings, opts)
	if err := app.SaveSettings(); err != nil {
		logger.Warn("cannot persist settings", slog.Any("error", err))
	}

	if opts.listModels {
		printModelList(stdout, bootstrap.ListWhisperModels(app.Settings.ModelPath))
		return exitOK
	}

	if opts.doctor {
		report := app.RefreshDiagnostics()
		printReport(stdout, report)
		if report.HasFailures {
			return exitFailure
		}
		return exitOK
	}

	if opts.fetchModel != "" {
		path, err := bootstrap.FetchModel(app.Settings.ModelPath, opts.fetchModel)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitCode(err)
		}
		fmt.Fprintf(stdout, "model downloaded: %s\n", path)
		if opts.url == "" {
			return exitOK
		}
	}

	apiKey, err := config.LoadAPIKey(os.Getenv)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}

	modelPath, err := bootstrap.ResolveModelPath(app.Settings.ModelPath, app.Settings.WhisperModel)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	report := app.RefreshDiagnostics()
	if report.HasFailures {
		printReport(stderr, report)
		return exitUsage
	}

	app.Summarizer = summarize.NewSummarizer(apiKey, app.Settings.OpenAIModel, func(index, total int) {
		logger.Info("chunk summarized", slog.Int("chunk", index), slog.Int("total", total))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// marks the run cancelled as soon as the signal arrives, before
		// the interrupted stage returns
		<-ctx.Done()
		_ = app.Runs.Cancel()
	}()

	result, err := app.Run(ctx, bootstrap.RunRequest{
		URL:           opts.url,
		OutputPath:    app.Settings.OutputPath,
		ModelPath:     modelPath,
		Language:      app.Settings.Language,
		MaxChunkChars: app.Settings.MaxChunkChars,
		KeepAudio:     opts.keepAudio,
	})
	if opts.verbose {
		printEvents(stderr, app.Events())
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if event, ok := app.LastCommandLog(); ok {
			printCommandStderr(stderr, event)
		}
		return exitCode(err)
	}

	if result.Title != "" {
		fmt.Fprintf(stdout, "notes for %q written to %s\n", result.Title, result.OutputPath)
	} else {
		fmt.Fprintf(stdout, "notes written to %s\n", result.OutputPath)
	}
	if result.AudioPath != "" {
		fmt.Fprintf(stdout, "audio kept at %s\n", result.AudioPath)
	}
	return exitOK
}

// parseArgs reads flags and the positional URL from the command line.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("ytnotes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ytnotes [flags] <youtube-url>")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.output, "output", "", "path for the generated notes file")
	fs.StringVar(&opts.openAIModel, "model", "", "chat model used for summarization")
	fs.StringVar(&opts.whisperModel, "whisper-model", "", "whisper model preset or ggml file path")
	fs.StringVar(&opts.fetchModel, "fetch-model", "", "download the named whisper model preset and exit")
	fs.IntVar(&opts.maxChars, "max-chars", 0, "maximum characters per transcript chunk")
	fs.StringVar(&opts.language, "language", "", "spoken language hint, or auto")
	fs.BoolVar(&opts.keepAudio, "keep-audio", false, "keep the downloaded audio file")
	fs.BoolVar(&opts.verbose, "verbose", false, "print the full run event trail")
	fs.BoolVar(&opts.doctor, "doctor", false, "run preflight checks and exit")
	fs.BoolVar(&opts.listModels, "list-models", false, "list whisper model presets and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "error: expected at most one URL argument")
		return options{}, errors.New("too many arguments")
	}
	opts.url = fs.Arg(0)
	return opts, nil
}

// applyOverrides layers non-empty flag values over persisted settings.
func applyOverrides(settings domain.Settings, opts options) domain.Settings {
	if opts.output != "" {
		settings.OutputPath = opts.output
	}
	if opts.openAIModel != "" {
		settings.OpenAIModel = opts.openAIModel
	}
	if opts.whisperModel != "" {
		settings.WhisperModel = opts.whisperModel
	}
	if opts.maxChars > 0 {
		settings.MaxChunkChars = opts.maxChars
	}
	if opts.language != "" {
		settings.Language = opts.language
	}
	return settings
}

// exitCode maps a pipeline error to the process exit code. Bad input
// and missing configuration are usage errors, everything else is a
// plain failure.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var sErr *domain.StageError
	if errors.As(err, &sErr) {
		switch sErr.Kind {
		case domain.ErrInvalidInput, domain.ErrConfiguration:
			return exitUsage
		}
	}
	return exitFailure
}

// printReport renders a diagnostic report as one line per check.
func printReport(w io.Writer, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		marker := "ok  "
		if item.Status == domain.DiagnosticStatusFail {
			marker = "FAIL"
		}
		fmt.Fprintf(w, "%s %-12s %s\n", marker, item.ID, item.Message)
		if item.Status == domain.DiagnosticStatusFail && item.Hint != "" {
			fmt.Fprintf(w, "     hint: %s\n", item.Hint)
		}
	}
	if report.HasFailures {
		fmt.Fprintln(w, "\nsome checks failed")
	} else {
		fmt.Fprintln(w, "\nall checks passed")
	}
}

// printCommandStderr surfaces the captured stderr of a failed external
// command so the user sees why yt-dlp or ffmpeg gave up, not just that it
// did.
func printCommandStderr(w io.Writer, event jobs.Event) {
	msg := strings.TrimSpace(event.Stderr)
	if event.Command == "" || msg == "" {
		return
	}
	fmt.Fprintf(w, "%s (exit %d) reported:\n%s\n", event.Command, event.ExitCode, msg)
}

// printModelList renders the whisper preset catalog with download state.
func printModelList(w io.Writer, models []domain.WhisperModelOption) {
	for _, model := range models {
		marker := " "
		if model.Downloaded {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-16s %-22s %s\n", marker, model.ID, model.Name, model.SizeLabel)
	}
	fmt.Fprintln(w, "\n* downloaded; fetch others with --fetch-model <id>")
}

// printEvents renders the recorded run trail for --verbose.
func printEvents(w io.Writer, events []jobs.Event) {
	for _, event := range events {
		switch event.Type {
		case jobs.EventTypeStatus:
			fmt.Fprintf(w, "[%d] status: %s\n", event.Seq, event.Status)
		case jobs.EventTypeLog:
			if event.Command != "" {
				fmt.Fprintf(w, "[%d] exec: %s (exit %d)\n", event.Seq, event.Command, event.ExitCode)
			} else {
				fmt.Fprintf(w, "[%d] log: %s\n", event.Seq, event.Message)
			}
		case jobs.EventTypeResult:
			fmt.Fprintf(w, "[%d] result: %s (%d chunks)\n", event.Seq, event.OutputPath, event.ChunkCount)
		case jobs.EventTypeError:
			fmt.Fprintf(w, "[%d] error: %s\n", event.Seq, event.Message)
		}
	}
}
