package pipeline

import (
	"fmt"
	"time"

	"shorts-factory/llm"
	"shorts-factory/topics"
)

// Stage is one step of the per-job state machine.
type Stage string

const (
	StageInit     Stage = "init"
	StageScripted Stage = "scripted"
	StageVoiced   Stage = "voiced"
	StageBacked   Stage = "backed"
	StageComposed Stage = "composed"
	StageUploaded Stage = "uploaded"
	StageFailed   Stage = "failed"
)

// stageOrder defines the only legal forward path. Failed forks off any
// non-terminal stage.
var stageOrder = []Stage{StageInit, StageScripted, StageVoiced, StageBacked, StageComposed, StageUploaded}

func stageIndex(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanAdvance reports whether from → to is a legal transition.
func CanAdvance(from, to Stage) bool {
	if from == StageUploaded || from == StageFailed {
		return false
	}
	if to == StageFailed {
		return true
	}
	fi, ti := stageIndex(from), stageIndex(to)
	return fi >= 0 && ti == fi+1
}

// Job carries one topic through the pipeline. Artifact paths accumulate as
// stages complete and stay readable until the job terminates, so a failed job
// still exposes everything for diagnostics.
type Job struct {
	ID        string       `json:"job_id"`
	Topic     topics.Topic `json:"topic"`
	Workspace string       `json:"workspace"`
	Stage     Stage        `json:"stage"`
	StartedAt time.Time    `json:"started_at"`

	Script         string       `json:"script,omitempty"`
	Metadata       llm.Metadata `json:"metadata,omitempty"`
	AudioPath      string       `json:"audio_path,omitempty"`
	BackgroundPath string       `json:"background_path,omitempty"`
	VideoPath      string       `json:"video_path,omitempty"`
	ThumbnailPath  string       `json:"thumbnail_path,omitempty"`
	UploadURL      string       `json:"upload_url,omitempty"`

	FailedStage Stage    `json:"failed_stage,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

func NewJob(id, workspacePath string, topic topics.Topic) *Job {
	return &Job{
		ID:        id,
		Topic:     topic,
		Workspace: workspacePath,
		Stage:     StageInit,
		StartedAt: time.Now().UTC(),
	}
}

// Advance moves the job forward one stage. Stages never regress.
func (j *Job) Advance(to Stage) error {
	if !CanAdvance(j.Stage, to) {
		return fmt.Errorf("illegal stage transition %s → %s for job %s", j.Stage, to, j.ID)
	}
	j.Stage = to
	return nil
}

// Fail records err against the stage that was being attempted and moves the
// job to the terminal Failed stage.
func (j *Job) Fail(attempted Stage, err error) {
	j.FailedStage = attempted
	j.Errors = append(j.Errors, fmt.Sprintf("at %s: %v", attempted, err))
	j.Stage = StageFailed
}
