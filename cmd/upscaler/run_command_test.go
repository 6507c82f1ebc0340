package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"upscaler/internal/logging"
	"upscaler/internal/partition"
	"upscaler/internal/pipeline"
	"upscaler/internal/services"
	"upscaler/internal/testsupport"
)

type fakeProber struct {
	info pipeline.MediaInfo
	err  error
}

func (p fakeProber) Probe(context.Context, string) (pipeline.MediaInfo, error) {
	return p.info, p.err
}

type fakeRunner struct {
	jobs []pipeline.Job
	err  error
}

func (r *fakeRunner) Run(_ context.Context, job pipeline.Job) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

type fakeRemuxer struct {
	calls []string
}

func (r *fakeRemuxer) Remux(_ context.Context, videoOnly, source, output string) error {
	r.calls = append(r.calls, strings.Join([]string{videoOnly, source, output}, "|"))
	return nil
}

type stateLog struct {
	states []partition.State
}

func (s *stateLog) RecordJob(context.Context, string, pipeline.Job, int) error { return nil }

func (s *stateLog) RecordState(_ context.Context, _ string, state partition.State, _ error) error {
	s.states = append(s.states, state)
	return nil
}

func (s *stateLog) RecordPartitions(context.Context, string, partition.Plan) error { return nil }

func (s *stateLog) RecordPartitionState(context.Context, string, int, partition.State, error) error {
	return nil
}

func TestNewJobDerivesTaggedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxFramesAhead(4))
	job := newJob(cfg, "/videos/clip.mkv", "", "/ws/1")

	want := "/videos/clip_[realesrgan-ncnn-vulkan][s2][n1][b20][q98].mkv"
	if job.OutputPath != want {
		t.Fatalf("output = %q, want %q", job.OutputPath, want)
	}
	if job.MaxFramesAhead != 4 || job.Workspace != "/ws/1" {
		t.Fatalf("unexpected job: %+v", job)
	}
	job.OutputOptions[0] = "mutated"
	if cfg.FFmpeg.OutputOptions[0] == "mutated" {
		t.Fatal("job output options alias the config")
	}
}

func TestSingleRunRemuxesIntermediate(t *testing.T) {
	workspace := t.TempDir()
	runner := &fakeRunner{}
	remuxer := &fakeRemuxer{}
	states := &stateLog{}
	run := singleRun{
		id:       "job",
		prober:   fakeProber{info: pipeline.MediaInfo{FrameCount: 24, FrameRate: "24/1", Width: 4, Height: 2}},
		runner:   runner,
		remuxer:  remuxer,
		recorder: states,
		logger:   logging.NewNop(),
	}
	job := pipeline.Job{
		Name: "clip", InputPath: "/in/clip.mkv", OutputPath: "/out/clip.mkv",
		Workspace: workspace, MaxFramesAhead: 10,
	}

	if err := run.execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(runner.jobs) != 1 {
		t.Fatalf("expected one pipeline run, got %d", len(runner.jobs))
	}
	intermediate := filepath.Join(workspace, partition.NoAudioName)
	if runner.jobs[0].OutputPath != intermediate || runner.jobs[0].FrameCount != 24 {
		t.Fatalf("unexpected pipeline job: %+v", runner.jobs[0])
	}
	wantRemux := intermediate + "|/in/clip.mkv|/out/clip.mkv"
	if len(remuxer.calls) != 1 || remuxer.calls[0] != wantRemux {
		t.Fatalf("remux calls = %v, want [%s]", remuxer.calls, wantRemux)
	}
	wantStates := []partition.State{partition.StateRunning, partition.StateMerging, partition.StateDone}
	if len(states.states) != len(wantStates) {
		t.Fatalf("states = %v, want %v", states.states, wantStates)
	}
	for i := range wantStates {
		if states.states[i] != wantStates[i] {
			t.Fatalf("states = %v, want %v", states.states, wantStates)
		}
	}
}

func TestSingleRunRecordsFailure(t *testing.T) {
	boom := services.Wrap(services.ErrExternalTool, "engine", "upscale", "", errors.New("exit 1"))
	remuxer := &fakeRemuxer{}
	states := &stateLog{}
	run := singleRun{
		id:       "job",
		prober:   fakeProber{info: pipeline.MediaInfo{FrameCount: 5}},
		runner:   &fakeRunner{err: boom},
		remuxer:  remuxer,
		recorder: states,
		logger:   logging.NewNop(),
	}
	job := pipeline.Job{InputPath: "/in", OutputPath: "/out", Workspace: t.TempDir(), MaxFramesAhead: 1}

	err := run.execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if len(remuxer.calls) != 0 {
		t.Fatal("remux must not run after a pipeline failure")
	}
	if last := states.states[len(states.states)-1]; last != partition.StateFailed {
		t.Fatalf("last state = %s, want failed", last)
	}
}

func TestSingleRunRejectsEmptyInput(t *testing.T) {
	runner := &fakeRunner{}
	run := singleRun{
		prober:  fakeProber{info: pipeline.MediaInfo{}},
		runner:  runner,
		remuxer: &fakeRemuxer{},
		logger:  logging.NewNop(),
	}
	job := pipeline.Job{InputPath: "/in", OutputPath: "/out", Workspace: t.TempDir(), MaxFramesAhead: 1}
	if err := run.execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(runner.jobs) != 0 {
		t.Fatal("pipeline must not run without frames")
	}
}
