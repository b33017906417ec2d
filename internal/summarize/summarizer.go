// Package summarize turns transcript chunks into section notes and merges
// them into one document using the OpenAI chat completion API.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"ytnotes/internal/domain"
)

// completionClient abstracts the OpenAI API for testability.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Summarizer sends prompts to the language model with a run-scoped client.
// The retry policy is deliberately thin: one retry after a fixed delay, then
// abort. A limiter spaces successive requests under provider rate limits.
type Summarizer struct {
	client     completionClient
	model      string
	limiter    *rate.Limiter
	retryDelay time.Duration
	onProgress func(index, total int)
}

// NewSummarizer constructs a summarizer with an explicit API credential.
func NewSummarizer(apiKey, model string, onProgress func(index, total int)) *Summarizer {
	return &Summarizer{
		client:     openai.NewClient(apiKey),
		model:      model,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		retryDelay: 2 * time.Second,
		onProgress: onProgress,
	}
}

// SummarizeChunks produces one section summary per chunk, in chunk order.
// Each summary is labelled with its index so the synthesis step can track
// the speaker's progression.
func (s *Summarizer) SummarizeChunks(ctx context.Context, chunks []string) ([]string, error) {
	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if s.onProgress != nil {
			s.onProgress(i+1, len(chunks))
		}

		text, err := s.complete(ctx, chunkPrompt+chunk)
		if err != nil {
			return nil, &domain.StageError{
				Kind:    domain.ErrSummarization,
				Stage:   domain.RunStatusSummarizing,
				Message: fmt.Sprintf("chunk %d of %d failed", i+1, len(chunks)),
				Err:     err,
			}
		}
		summaries = append(summaries, fmt.Sprintf("## Chunk %d\n\n%s", i+1, text))
	}
	return summaries, nil
}

// Synthesize merges ordered chunk summaries into one notes document.
func (s *Summarizer) Synthesize(ctx context.Context, summaries []string) (string, error) {
	if len(summaries) == 0 {
		return "", &domain.StageError{
			Kind:    domain.ErrSummarization,
			Stage:   domain.RunStatusSummarizing,
			Message: "no chunk summaries to synthesize",
		}
	}

	text, err := s.complete(ctx, synthesisPrompt+strings.Join(summaries, "\n\n---\n\n"))
	if err != nil {
		return "", &domain.StageError{
			Kind:    domain.ErrSummarization,
			Stage:   domain.RunStatusSummarizing,
			Message: "final synthesis failed",
			Err:     err,
		}
	}
	return text, nil
}

// complete performs one chat completion with a single bounded retry.
func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("model returned no choices")
			continue
		}

		out := stripFences(resp.Choices[0].Message.Content)
		if out == "" {
			lastErr = errors.New("model returned empty output")
			continue
		}
		return out, nil
	}
	return "", lastErr
}

// stripFences removes markdown code fences some models wrap output in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```md")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NewSummarizerForTests constructs a summarizer with an injected client and
// no request pacing.
func NewSummarizerForTests(client completionClient, model string) *Summarizer {
	return &Summarizer{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}
