package domain

// RunStatus tracks each pipeline stage for a single notes run.
type RunStatus string

const (
	RunStatusIdle         RunStatus = "idle"
	RunStatusFetching     RunStatus = "fetching"
	RunStatusTranscribing RunStatus = "transcribing"
	RunStatusChunking     RunStatus = "chunking"
	RunStatusSummarizing  RunStatus = "summarizing"
	RunStatusComposing    RunStatus = "composing"
	RunStatusDone         RunStatus = "done"
	RunStatusFailed       RunStatus = "failed"
	RunStatusCancelled    RunStatus = "cancelled"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelPath     string `json:"modelPath"`
	WhisperModel  string `json:"whisperModel"`
	OpenAIModel   string `json:"openaiModel"`
	MaxChunkChars int    `json:"maxChunkChars"`
	Language      string `json:"language"`
	OutputPath    string `json:"outputPath"`
}

// Run stores the current run identity and lifecycle status.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
}
