package testsupport

import (
	"context"
	"testing"

	"upscaler/internal/config"
	"upscaler/internal/jobstore"
	"upscaler/internal/pipeline"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob records a job in the created state and returns the pipeline job used.
func NewJob(t testing.TB, store *jobstore.Store, id, input string) pipeline.Job {
	t.Helper()

	job := pipeline.Job{
		Name:       id,
		InputPath:  input,
		OutputPath: input + ".out.mkv",
		Workspace:  "/tmp/" + id,
		FrameCount: 100,
		Engine:     pipeline.EngineSettings{Name: "waifu2x"},
	}
	if err := store.RecordJob(context.Background(), id, job, 1); err != nil {
		t.Fatalf("store.RecordJob: %v", err)
	}
	return job
}
