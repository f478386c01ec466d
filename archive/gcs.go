package archive

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	storage "google.golang.org/api/storage/v1"
)

// Archiver copies a failed job's intermediate artifacts into a GCS bucket so
// they survive workspace cleanup and can be inspected later. Best effort all
// the way down: archival must never change a batch's outcome.
type Archiver struct {
	Bucket string

	insert func(ctx context.Context, object string, r *os.File) error
}

func New(bucket string) *Archiver {
	a := &Archiver{Bucket: bucket}
	a.insert = a.insertGCS
	return a
}

// Enabled reports whether a bucket is configured.
func (a *Archiver) Enabled() bool { return a != nil && a.Bucket != "" }

// Export uploads every file under dir to <bucket>/jobs/<jobID>/.
func (a *Archiver) Export(ctx context.Context, jobID, dir string) {
	if !a.Enabled() {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("[archive] read %s: %v", dir, err)
		return
	}

	exported := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			log.Printf("[archive] open %s: %v", path, err)
			continue
		}

		object := fmt.Sprintf("jobs/%s/%s", jobID, e.Name())
		if err := a.insert(ctx, object, f); err != nil {
			log.Printf("[archive] upload %s: %v", object, err)
		} else {
			exported++
		}
		f.Close()
	}
	log.Printf("[archive] exported %d artifact(s) for job %s to gs://%s", exported, jobID, a.Bucket)
}

func (a *Archiver) insertGCS(ctx context.Context, object string, r *os.File) error {
	svc, err := storage.NewService(ctx)
	if err != nil {
		return fmt.Errorf("storage client: %w", err)
	}

	_, err = svc.Objects.Insert(a.Bucket, &storage.Object{Name: object}).
		Media(r).Context(ctx).Do()
	return err
}
