// Package ledger tracks per-job pipeline state. Each job owns one entry; the
// orchestrator is the only writer and the status endpoint the only reader.
// Entries live in memory and terminal ones are evicted after a TTL.
package ledger

import (
	"errors"
	"time"

	"github.com/RohanSreelesh/StudyBytes/internal/catalog"
)

// Phase is the job's lifecycle tag. "Complete" in client responses is
// derived: a job is complete when it has succeeded or failed.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Stage names the running pipeline step, for status messages.
type Stage string

const (
	StageInitializing          Stage = "initializing"
	StageAnalyzing             Stage = "analyzing"
	StageGeneratingTranscripts Stage = "generating_transcripts"
	StageSynthesizingAudio     Stage = "synthesizing_audio"
	StageComposingVideos       Stage = "composing_videos"
	StageFinalizing            Stage = "finalizing"
)

// Job is one end-to-end conversion of uploaded materials into videos.
type Job struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SourceFiles []string

	Phase    Phase
	Stage    Stage
	Progress int // 0-100
	Message  string
	Error    string

	// Transcripts caches the generated script set; ScriptNames maps script
	// id → display name so artifacts stay linked without re-sanitizing.
	Transcripts map[string]string
	ScriptNames map[string]string

	Videos []catalog.Video
}

// Complete reports whether the job reached a terminal phase.
func (j Job) Complete() bool {
	return j.Phase == PhaseSucceeded || j.Phase == PhaseFailed
}

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// Store is the job-store abstraction injected into the orchestrator and the
// status endpoint. Updates go through a closure so each entry mutates
// atomically and independently of its siblings.
type Store interface {
	Create(job Job) error
	Get(id string) (Job, error)
	Update(id string, mutate func(*Job)) error
	List() []Job
	// RunningCount reports jobs not yet terminal, used to gate cleanup.
	RunningCount() int
}
