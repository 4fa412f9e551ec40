package output

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunEvent is one line of the JSON event stream emitted by `run --json`
// for CI and tooling integration.
type RunEvent struct {
	Event       string   `json:"event"`
	Timestamp   string   `json:"timestamp,omitempty"`
	RunID       string   `json:"run_id,omitempty"`
	Profile     string   `json:"profile,omitempty"`
	Stages      []string `json:"stages,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Status      string   `json:"status,omitempty"`
	DurationMS  int64    `json:"duration_ms,omitempty"`
	Error       string   `json:"error,omitempty"`
	TotalStages int      `json:"total_stages,omitempty"`
	Successful  int      `json:"successful,omitempty"`
	Failed      int      `json:"failed,omitempty"`
	Skipped     int      `json:"skipped,omitempty"`
	TotalMS     int64    `json:"total_ms,omitempty"`
}

// Emit writes the event as a single JSON line with a UTC timestamp.
func (r *Renderer) Emit(event RunEvent) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(event)
	_, _ = fmt.Fprintln(r.out, string(data))
}
