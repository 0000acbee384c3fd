package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusStopped RunStatus = "stopped"
	RunStatusFailed  RunStatus = "failed"
)

// RunParameters mirrors the scalar fields of an evolution config.
type RunParameters struct {
	PopulationSize        int     `json:"population_size"`
	GeneticCodeLength     int     `json:"genetic_code_length"`
	KeepThreshold         float64 `json:"keep_threshold"`
	MutationChancePercent float64 `json:"mutation_chance_percent"`
	EmitResultEvery       int     `json:"emit_result_every"`
	MutationGate          string  `json:"mutation_gate"`
	MaxGenerations        int     `json:"max_generations,omitempty"`
	Seed                  int64   `json:"seed,omitempty"`
}

type RunRecord struct {
	VersionedRecord
	ID         string        `json:"id"`
	Scorer     string        `json:"scorer,omitempty"`
	Parameters RunParameters `json:"parameters"`
	Status     RunStatus     `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Snapshots  int           `json:"snapshots"`
	BestScore  float64       `json:"best_score"`
}

// SnapshotRecord is an emitted snapshot as kept in run history.
type SnapshotRecord struct {
	VersionedRecord
	RunID      string    `json:"run_id"`
	Generation int       `json:"generation"`
	Genes      []byte    `json:"genes"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}
