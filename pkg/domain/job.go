package domain

import (
	"encoding"
	"time"
)

type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobError     JobStatus = "ERROR"
)

type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// Terminal reports whether the job reached a final state. Terminal jobs are
// immutable; the engine never writes to them again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// AgentSpec describes one pipeline stage chosen by the planner. Specs are
// produced once per job and never change afterwards.
type AgentSpec struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Steps int    `json:"steps"`
}

// AgentRun is the execution record of one AgentSpec for one job. It carries
// the spec fields so a terminal job can be replayed from the store record
// alone. Logs are append-only; Progress never decreases and only reaches 100
// when the run completes.
type AgentRun struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	Steps    int       `json:"steps"`
	Status   RunStatus `json:"status"`
	Progress int       `json:"progress"`
	Logs     []string  `json:"logs,omitempty"`
	Output   string    `json:"output,omitempty"`
}

const (
	ArtifactChart = "chart"
	ArtifactTable = "table"
)

// Artifact is a typed result attachment. Chart artifacts carry a renderable
// reference; table artifacts carry inline columns and rows.
type Artifact struct {
	Type    string     `json:"type"`
	Title   string     `json:"title"`
	Ref     string     `json:"ref,omitempty"`
	Columns []string   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// Result is produced exactly once per job, only on full success.
type Result struct {
	Title     string     `json:"title"`
	Request   string     `json:"request"`
	Summary   string     `json:"summary"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

type Job struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Request   string      `json:"request"`
	CreatedAt time.Time   `json:"createdAt"`
	Runs      []*AgentRun `json:"runs,omitempty"`
	Result    *Result     `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

var (
	_ encoding.BinaryMarshaler = JobStatus("")
	_ encoding.TextMarshaler   = JobStatus("")
	_ encoding.BinaryMarshaler = RunStatus("")
	_ encoding.TextMarshaler   = RunStatus("")
)

func (s JobStatus) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s JobStatus) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }

func (s RunStatus) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s RunStatus) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }
