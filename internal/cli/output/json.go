package output

// JSON document shapes for -o json command output.

// StageRunInfo describes one stage execution within a run.
type StageRunInfo struct {
	Stage      string  `json:"stage"`
	Status     string  `json:"status"`
	DurationMS int64   `json:"duration_ms"`
	Error      *string `json:"error,omitempty"`
}

// RunInfo describes one pipeline run.
type RunInfo struct {
	ID          string         `json:"id"`
	Profile     string         `json:"profile"`
	Status      string         `json:"status"`
	StartedAt   string         `json:"started_at"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Error       *string        `json:"error,omitempty"`
	Stages      []StageRunInfo `json:"stages,omitempty"`
}

// RunsOutput is the document emitted by `runs -o json`.
type RunsOutput struct {
	Runs  []RunInfo `json:"runs"`
	Total int       `json:"total"`
}

// NGramInfo describes one counted n-gram.
type NGramInfo struct {
	NGram string `json:"ngram"`
	N     int    `json:"n"`
	Count int    `json:"count"`
}

// NGramsOutput is the document emitted by `ngrams -o json`.
type NGramsOutput struct {
	NGrams   []NGramInfo `json:"ngrams"`
	Distinct int         `json:"distinct"`
}

// BatchInfo describes one planned batch.
type BatchInfo struct {
	Index     int `json:"index"`
	Sequences int `json:"sequences"`
	Steps     int `json:"steps"`
	PadTokens int `json:"pad_tokens"`
}

// BatchPlanOutput is the document emitted by `batches -o json`.
type BatchPlanOutput struct {
	Batches        []BatchInfo `json:"batches"`
	TotalBatches   int         `json:"total_batches"`
	TotalSequences int         `json:"total_sequences"`
	TotalTokens    int         `json:"total_tokens"`
	PadTokens      int         `json:"pad_tokens"`
	PadOverheadPct float64     `json:"pad_overhead_pct"`
}
