package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"shorts-factory/archive"
	"shorts-factory/compose"
	"shorts-factory/keys"
	"shorts-factory/llm"
	"shorts-factory/media"
	"shorts-factory/topics"
	"shorts-factory/tts"
	"shorts-factory/upload"
	"shorts-factory/workspace"
)

// Scripter produces narration and upload metadata.
type Scripter interface {
	WriteScript(ctx context.Context, topic string) (string, error)
	WriteMetadata(ctx context.Context, topic, script string) llm.Metadata
}

// Narrator turns text into an audio file.
type Narrator interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// ClipFinder downloads a background clip for a query.
type ClipFinder interface {
	Acquire(ctx context.Context, query, outPath string) error
}

// Renderer composes the final video; it degrades instead of failing.
type Renderer interface {
	Compose(ctx context.Context, backgroundPath, audioPath, script, title, outDir string) (videoPath, thumbnailPath string)
}

// Publisher uploads one finished video.
type Publisher interface {
	Upload(ctx context.Context, req upload.Request) (string, error)
}

// Summary is the batch-level result event.
type Summary struct {
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	StageErrors map[Stage]int `json:"stage_errors,omitempty"`
	Jobs        []*Job        `json:"jobs"`
}

// Orchestrator drives the per-topic state machine. Jobs are strictly
// independent: one failure never halts the batch.
type Orchestrator struct {
	Topics    topics.Source
	Scripts   Scripter
	Voice     Narrator
	Clips     ClipFinder
	Composer  Renderer
	Publisher Publisher
	Workspace *workspace.Manager
	Archive   *archive.Archiver

	TopicsPerRun int
	CleanupAge   time.Duration
	JobTimeout   time.Duration

	CategoryID  string
	Privacy     string
	MadeForKids bool
}

// Run executes one batch: reclaim stale workspaces, acquire topics, process
// each sequentially, emit the summary.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	o.Workspace.Cleanup(o.CleanupAge)

	n := o.TopicsPerRun
	if n < 1 {
		n = 2
	}

	batch, err := o.Topics.Topics(ctx, n)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire topics: %w", err)
	}
	log.Printf("[pipeline] batch of %d topic(s)", len(batch))

	summary := Summary{StageErrors: make(map[Stage]int)}
	for _, topic := range batch {
		job := o.runJob(ctx, topic)
		summary.Jobs = append(summary.Jobs, job)

		if job.Stage == StageUploaded {
			summary.Succeeded++
		} else {
			summary.Failed++
			summary.StageErrors[job.FailedStage]++
		}

		if ctx.Err() != nil {
			break
		}
	}

	o.emitSummary(summary)
	return summary, nil
}

// runJob advances one job through every stage. Errors terminate the job, not
// the batch; the job's artifacts stay on disk for diagnostics.
func (o *Orchestrator) runJob(parent context.Context, topic topics.Topic) *Job {
	jobID, dir, err := o.Workspace.MkJob()
	if err != nil {
		job := NewJob("unassigned", "", topic)
		job.Fail(StageInit, err)
		o.logFailure(job, err)
		return job
	}

	job := NewJob(jobID, dir, topic)
	log.Printf("[pipeline] job %s starting: %q (source %s)", job.ID, topic.Text, topic.Source)

	timeout := o.JobTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if err := o.advance(ctx, job); err != nil {
		o.logFailure(job, err)
		if o.Archive.Enabled() {
			o.Archive.Export(parent, job.ID, job.Workspace)
		}
	}
	return job
}

func (o *Orchestrator) advance(ctx context.Context, job *Job) error {
	// Script
	script, err := o.Scripts.WriteScript(ctx, job.Topic.Text)
	if err != nil {
		job.Fail(StageScripted, err)
		return err
	}
	job.Script = script
	if err := os.WriteFile(filepath.Join(job.Workspace, "script.txt"), []byte(script), 0644); err != nil {
		log.Printf("[pipeline] job %s: could not persist script: %v", job.ID, err)
	}
	_ = job.Advance(StageScripted)

	// Voice
	audioPath := filepath.Join(job.Workspace, "audio.mp3")
	if err := o.Voice.Synthesize(ctx, script, audioPath); err != nil {
		job.Fail(StageVoiced, err)
		return err
	}
	job.AudioPath = audioPath
	_ = job.Advance(StageVoiced)

	// Background
	backgroundPath := filepath.Join(job.Workspace, "background.mp4")
	if err := o.Clips.Acquire(ctx, job.Topic.Text, backgroundPath); err != nil {
		job.Fail(StageBacked, err)
		return err
	}
	job.BackgroundPath = backgroundPath
	_ = job.Advance(StageBacked)

	// Compose. Metadata comes first so the thumbnail can carry the title;
	// metadata degrades internally and never fails the job.
	job.Metadata = o.Scripts.WriteMetadata(ctx, job.Topic.Text, script)
	videoPath, thumbPath := o.Composer.Compose(ctx, backgroundPath, audioPath, script, job.Metadata.Title, job.Workspace)
	job.VideoPath = videoPath
	job.ThumbnailPath = thumbPath
	_ = job.Advance(StageComposed)

	// Upload
	url, err := o.Publisher.Upload(ctx, upload.Request{
		VideoPath:     job.VideoPath,
		Title:         job.Metadata.Title,
		Description:   job.Metadata.Description,
		Tags:          job.Metadata.Tags,
		CategoryID:    o.CategoryID,
		Privacy:       o.Privacy,
		MadeForKids:   o.MadeForKids,
		ThumbnailPath: job.ThumbnailPath,
	})
	if err != nil {
		job.Fail(StageUploaded, err)
		var quota *upload.QuotaExhaustedError
		if errors.As(err, &quota) {
			log.Printf("[pipeline] upload quota exhausted — remaining jobs will likely fail the same way")
		}
		return err
	}
	job.UploadURL = url
	_ = job.Advance(StageUploaded)

	log.Printf("[pipeline] job %s uploaded: %s", job.ID, url)
	return nil
}

// logFailure emits the single structured record the batch log promises per
// failed job.
func (o *Orchestrator) logFailure(job *Job, err error) {
	log.Printf("[pipeline] job %s failed: topic=%q stage=%s kind=%s error=%q",
		job.ID, job.Topic.Text, job.FailedStage, errorKind(err), err)
}

// errorKind buckets a terminal error for the failure record.
func errorKind(err error) string {
	var (
		genErr   *llm.GenerationError
		ttsErr   *tts.TTSError
		mediaErr *media.MediaError
		quotaErr *upload.QuotaExhaustedError
		permErr  *upload.PermissionDeniedError
		upErr    *upload.UploadError
	)
	switch {
	case errors.Is(err, keys.ErrNoKeyAvailable):
		return "no_key_available"
	case errors.As(err, &quotaErr):
		return "quota_exhausted"
	case errors.As(err, &permErr):
		return "permission_denied"
	case errors.As(err, &genErr):
		return "generation"
	case errors.As(err, &ttsErr):
		return "tts"
	case errors.As(err, &mediaErr):
		return "media"
	case errors.As(err, &upErr):
		return "upload"
	default:
		return "internal"
	}
}

func (o *Orchestrator) emitSummary(s Summary) {
	log.Printf("[pipeline] batch complete: succeeded=%d failed=%d", s.Succeeded, s.Failed)
	for stage, count := range s.StageErrors {
		log.Printf("[pipeline]   errors at %s: %d", stage, count)
	}

	path := filepath.Join(o.Workspace.Root, fmt.Sprintf("summary_%s.json", time.Now().UTC().Format("20060102_150405")))
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Printf("[pipeline] could not marshal summary: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("[pipeline] could not save summary: %v", err)
	}
}

// Interface conformance for the concrete components.
var (
	_ Narrator   = (*tts.Client)(nil)
	_ ClipFinder = (*media.Acquirer)(nil)
	_ Renderer   = (*compose.Composer)(nil)
	_ Publisher  = (*upload.Uploader)(nil)
)
