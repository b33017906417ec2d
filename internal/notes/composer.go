// Package notes assembles the final Markdown study-notes document and
// writes it to its destination.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ytnotes/internal/domain"
)

// SectionHeadings lists the six required top-level headings in order.
var SectionHeadings = []string{
	"# Executive Summary",
	"# Full Outline",
	"# Detailed Notes",
	"# Key Concepts & Definitions",
	"# Memorable Examples / Analogies",
	"# Action Items / Takeaways",
}

// Compose builds the final document from the synthesized text, falling back
// to the raw ordered chunk summaries when synthesis produced nothing usable.
// Every required heading is present in the result; absent sections carry the
// body "None".
func Compose(synthesized string, summaries []string, title string) (string, error) {
	body := strings.TrimSpace(synthesized)
	if body == "" {
		if len(summaries) == 0 {
			return "", &domain.StageError{
				Kind:    domain.ErrCompose,
				Stage:   domain.RunStatusComposing,
				Message: "nothing to compose: no synthesis output and no chunk summaries",
			}
		}
		body = fallbackDocument(summaries)
	}

	body = ensureSections(body)

	if t := strings.TrimSpace(title); t != "" {
		body = fmt.Sprintf("> Notes for: %s\n\n%s", t, body)
	}
	return body + "\n", nil
}

// ensureSections appends any missing required heading with a "None" body.
func ensureSections(doc string) string {
	var missing []string
	for _, heading := range SectionHeadings {
		if !containsHeading(doc, heading) {
			missing = append(missing, heading)
		}
	}
	if len(missing) == 0 {
		return doc
	}

	var b strings.Builder
	b.WriteString(doc)
	for _, heading := range missing {
		b.WriteString("\n\n")
		b.WriteString(heading)
		b.WriteString("\n\nNone")
	}
	return b.String()
}

// containsHeading reports whether doc has the heading as its own line.
// Trailing qualifiers after the heading text are tolerated.
func containsHeading(doc, heading string) bool {
	for _, line := range strings.Split(doc, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), heading) {
			return true
		}
	}
	return false
}

// fallbackDocument builds notes directly from ordered chunk summaries when
// the synthesis step returned nothing; the expensive transcription and
// per-chunk work is preserved instead of discarded.
func fallbackDocument(summaries []string) string {
	var b strings.Builder
	b.WriteString("# Executive Summary\n\nNone\n\n")
	b.WriteString("# Full Outline\n\nNone\n\n")
	b.WriteString("# Detailed Notes\n\n")
	b.WriteString(strings.Join(summaries, "\n\n"))
	return b.String()
}

// Composer writes composed documents with injectable filesystem access.
type Composer struct {
	mkdirAll  func(path string, perm os.FileMode) error
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// NewComposer constructs a composer using real OS dependencies.
func NewComposer() *Composer {
	return &Composer{
		mkdirAll:  os.MkdirAll,
		writeFile: os.WriteFile,
	}
}

// Write persists the document as UTF-8 Markdown, overwriting any existing
// file and creating parent directories as needed.
func (c *Composer) Write(path, doc string) error {
	if strings.TrimSpace(path) == "" {
		return &domain.StageError{
			Kind:    domain.ErrInvalidInput,
			Stage:   domain.RunStatusComposing,
			Message: "output path is required",
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := c.mkdirAll(dir, 0o755); err != nil {
			return &domain.StageError{
				Kind:    domain.ErrCompose,
				Stage:   domain.RunStatusComposing,
				Message: fmt.Sprintf("cannot create output directory: %s", dir),
				Err:     err,
			}
		}
	}

	if err := c.writeFile(path, []byte(doc), 0o644); err != nil {
		return &domain.StageError{
			Kind:    domain.ErrCompose,
			Stage:   domain.RunStatusComposing,
			Message: fmt.Sprintf("cannot write notes file: %s", path),
			Err:     err,
		}
	}
	return nil
}

// NewComposerForTests constructs a composer with injectable dependencies.
func NewComposerForTests(
	mkdirAll func(path string, perm os.FileMode) error,
	writeFile func(name string, data []byte, perm os.FileMode) error,
) *Composer {
	return &Composer{
		mkdirAll:  mkdirAll,
		writeFile: writeFile,
	}
}
