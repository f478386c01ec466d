package pipeline

import (
	"errors"
	"testing"

	"shorts-factory/topics"
)

func TestCanAdvance_ForwardPathOnly(t *testing.T) {
	allowed := []struct{ from, to Stage }{
		{StageInit, StageScripted},
		{StageScripted, StageVoiced},
		{StageVoiced, StageBacked},
		{StageBacked, StageComposed},
		{StageComposed, StageUploaded},
		{StageInit, StageFailed},
		{StageComposed, StageFailed},
	}
	for _, c := range allowed {
		if !CanAdvance(c.from, c.to) {
			t.Fatalf("expected %s → %s to be allowed", c.from, c.to)
		}
	}

	rejected := []struct{ from, to Stage }{
		{StageInit, StageVoiced},
		{StageScripted, StageInit},
		{StageUploaded, StageFailed},
		{StageFailed, StageInit},
		{StageUploaded, StageScripted},
		{StageVoiced, StageVoiced},
	}
	for _, c := range rejected {
		if CanAdvance(c.from, c.to) {
			t.Fatalf("expected %s → %s to be rejected", c.from, c.to)
		}
	}
}

func TestJob_AdvanceRejectsSkips(t *testing.T) {
	j := NewJob("j1", "/tmp/j1", topics.Topic{Text: "topic"})

	if err := j.Advance(StageVoiced); err == nil {
		t.Fatal("skipping scripted should fail")
	}
	if err := j.Advance(StageScripted); err != nil {
		t.Fatal(err)
	}
	if j.Stage != StageScripted {
		t.Fatalf("stage = %s", j.Stage)
	}
}

func TestJob_FailRecordsAttemptedStage(t *testing.T) {
	j := NewJob("j1", "/tmp/j1", topics.Topic{Text: "topic"})
	j.Fail(StageScripted, errors.New("both backends down"))

	if j.Stage != StageFailed {
		t.Fatalf("stage = %s; want failed", j.Stage)
	}
	if j.FailedStage != StageScripted {
		t.Fatalf("failed stage = %s; want scripted", j.FailedStage)
	}
	if len(j.Errors) != 1 {
		t.Fatalf("errors = %v", j.Errors)
	}
}
