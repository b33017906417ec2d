package domain

import (
	"strings"
	"time"
)

// Segment is one time-ordered slice of recognized speech.
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Transcript is the full ordered output of the speech-to-text stage.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

// Text returns the ordered concatenation of all segment texts.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if trimmed := strings.TrimSpace(seg.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether the transcript carries no spoken content.
func (t Transcript) IsEmpty() bool {
	return t.Text() == ""
}
