package jobstore

import (
	"time"

	"upscaler/internal/partition"
	"upscaler/internal/services"
)

// Job is one persisted upscaling job.
type Job struct {
	ID           string
	Name         string
	InputPath    string
	OutputPath   string
	Workspace    string
	Engine       string
	Partitions   int
	FrameCount   int
	State        partition.State
	FailureKind  services.FailureKind
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	PartitionRecords []Partition
}

// Partition is one persisted segment of a job.
type Partition struct {
	Index        int
	InputPath    string
	OutputPath   string
	Workspace    string
	FrameCount   int
	State        partition.State
	ErrorMessage string
	UpdatedAt    time.Time
}

// Active reports whether the job has not reached a terminal state.
func (j Job) Active() bool {
	return !j.State.Terminal()
}

// Elapsed is the time between creation and the last recorded update.
func (j Job) Elapsed() time.Duration {
	if j.UpdatedAt.Before(j.CreatedAt) {
		return 0
	}
	return j.UpdatedAt.Sub(j.CreatedAt)
}
