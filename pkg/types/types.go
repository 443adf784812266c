// Package types holds the run and cache records shared by the store,
// generator and server.
package types

import "time"

// Run records one generation pass over a single API surface.
type Run struct {
	ID            string    `json:"id"`
	Surface       string    `json:"surface"`
	Stage         string    `json:"stage"`
	Model         string    `json:"model"`
	Status        string    `json:"status"`
	ScenarioCount int       `json:"scenario_count"`
	FailedCount   int       `json:"failed_count"`
	OutputPath    string    `json:"output_path"`
	ErrorMsg      string    `json:"error_msg,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScenarioResult is the stored outcome of one scenario within a run.
type ScenarioResult struct {
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Scenario  string    `json:"scenario"`
	Status    string    `json:"status"`
	LineCount int       `json:"line_count"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResponseCache stores one raw model response for a scenario.
type ResponseCache struct {
	Surface    string    `json:"surface"`
	Scenario   string    `json:"scenario"`
	Model      string    `json:"model"`
	Status     string    `json:"status"`
	RawOutput  string    `json:"raw_output"`
	TokensUsed int       `json:"tokens_used"`
	ErrorMsg   string    `json:"error_msg"`
	CreatedAt  time.Time `json:"created_at"`
}

// Run and cache statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run stages.
const (
	StageScenarios = "scenarios"
	StageTests     = "tests"
	StageGenerate  = "generate"
)
