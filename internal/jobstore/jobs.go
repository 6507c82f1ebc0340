package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"upscaler/internal/partition"
	"upscaler/internal/pipeline"
	"upscaler/internal/services"
)

var _ partition.Recorder = (*Store)(nil)

// ErrJobNotFound is returned by Get for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// RecordJob inserts a job in the created state. Re-recording an existing id
// only refreshes its timestamp.
func (s *Store) RecordJob(ctx context.Context, id string, job pipeline.Job, partitions int) error {
	now := s.timestamp()
	_, err := s.exec(ctx,
		`INSERT INTO jobs (id, name, input_path, output_path, workspace, engine, partitions, frame_count, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		id, job.Name, job.InputPath, job.OutputPath, job.Workspace, job.Engine.Name, partitions, job.FrameCount,
		string(partition.StateCreated), now, now,
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", id, err)
	}
	return nil
}

// RecordState updates a job's lifecycle state. A non-nil cause is stored with
// its failure classification.
func (s *Store) RecordState(ctx context.Context, id string, state partition.State, cause error) error {
	var message string
	if cause != nil {
		message = cause.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE jobs SET state = ?, failure_kind = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(state), nullableString(string(services.Classify(cause))), nullableString(message), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("record state for job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record state for job %s: %w", id, ErrJobNotFound)
	}
	return nil
}

// RecordPartitions stores the plan's partitions in the planned state.
func (s *Store) RecordPartitions(ctx context.Context, id string, plan partition.Plan) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin partitions tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := s.timestamp()
		total := 0
		for i, job := range plan.Jobs {
			total += job.FrameCount
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO partitions (job_id, idx, input_path, output_path, workspace, frame_count, state, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                 ON CONFLICT(job_id, idx) DO UPDATE SET
                     input_path = excluded.input_path,
                     output_path = excluded.output_path,
                     workspace = excluded.workspace,
                     frame_count = excluded.frame_count,
                     state = excluded.state,
                     updated_at = excluded.updated_at`,
				id, i, job.InputPath, job.OutputPath, job.Workspace, job.FrameCount, string(partition.StatePlanned), now,
			); err != nil {
				return fmt.Errorf("record partition %d: %w", i, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET partitions = ?, frame_count = ?, updated_at = ? WHERE id = ?`,
			len(plan.Jobs), total, now, id,
		); err != nil {
			return fmt.Errorf("update job totals: %w", err)
		}
		return tx.Commit()
	})
}

// RecordPartitionState updates one partition.
func (s *Store) RecordPartitionState(ctx context.Context, id string, index int, state partition.State, cause error) error {
	var message string
	if cause != nil {
		message = cause.Error()
	}
	_, err := s.exec(ctx,
		`UPDATE partitions SET state = ?, error_message = ?, updated_at = ? WHERE job_id = ? AND idx = ?`,
		string(state), nullableString(message), s.timestamp(), id, index,
	)
	if err != nil {
		return fmt.Errorf("record partition %d state: %w", index, err)
	}
	return nil
}

const jobColumns = `id, name, input_path, output_path, workspace, engine, partitions, frame_count, state,
    failure_kind, error_message, created_at, updated_at`

// List returns the most recent jobs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Get returns one job with its partitions.
func (s *Store) Get(ctx context.Context, id string) (Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return Job{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, input_path, output_path, workspace, frame_count, state, error_message, updated_at
         FROM partitions WHERE job_id = ? ORDER BY idx`, id)
	if err != nil {
		return Job{}, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p       Partition
			state   string
			message sql.NullString
			updated string
		)
		if err := rows.Scan(&p.Index, &p.InputPath, &p.OutputPath, &p.Workspace, &p.FrameCount, &state, &message, &updated); err != nil {
			return Job{}, fmt.Errorf("scan partition: %w", err)
		}
		p.State = partition.State(state)
		p.ErrorMessage = message.String
		p.UpdatedAt, _ = parseTimeString(updated)
		job.PartitionRecords = append(job.PartitionRecords, p)
	}
	return job, rows.Err()
}

// ClearFinished deletes jobs in a terminal state, with their partitions, and
// returns how many jobs were removed.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	done, failed := string(partition.StateDone), string(partition.StateFailed)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM partitions WHERE job_id IN (SELECT id FROM jobs WHERE state IN (?, ?))`,
			done, failed,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE state IN (?, ?)`, done, failed)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return removed, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		job     Job
		state   string
		kind    sql.NullString
		message sql.NullString
		created string
		updated string
	)
	if err := scanner.Scan(&job.ID, &job.Name, &job.InputPath, &job.OutputPath, &job.Workspace,
		&job.Engine, &job.Partitions, &job.FrameCount, &state, &kind, &message, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.State = partition.State(state)
	job.FailureKind = services.FailureKind(kind.String)
	job.ErrorMessage = message.String
	job.CreatedAt, _ = parseTimeString(created)
	job.UpdatedAt, _ = parseTimeString(updated)
	return job, nil
}
