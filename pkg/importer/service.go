package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
)

// Service is the job registry's public contract: accept an upload, answer
// snapshot queries, request cancellation.
type Service struct {
	jobs      JobStore
	pool      *Pool
	publisher *Publisher
	schema    Schema
	spoolDir  string
}

func NewService(jobs JobStore, pool *Pool, publisher *Publisher, schema Schema, spoolDir string) *Service {
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	return &Service{
		jobs:      jobs,
		pool:      pool,
		publisher: publisher,
		schema:    schema,
		spoolDir:  spoolDir,
	}
}

// CreateJob spools the upload stream to disk exactly once, counting data rows
// on the way through, validates the header, registers the job in `pending`
// and schedules it on the pool. It returns before any row is processed.
func (s *Service) CreateJob(ctx context.Context, fileName string, stream io.Reader) (*ImportJob, error) {
	spoolPath, totalRecords, err := s.spool(stream)
	if err != nil {
		return nil, err
	}

	if err := s.validateHeader(spoolPath); err != nil {
		os.Remove(spoolPath)
		return nil, err
	}

	job := &ImportJob{
		ID:           uuid.New().String(),
		FileName:     fileName,
		Status:       StatusPending,
		Phase:        PhaseUploading,
		TotalRecords: totalRecords,
		Errors:       []byte("[]"),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		os.Remove(spoolPath)
		return nil, fmt.Errorf("registering import job: %w", err)
	}

	if err := s.pool.Submit(job.ID, spoolPath); err != nil {
		failErr := s.jobs.Finish(ctx, job.ID, StatusFailed, 0, totalRecords, 0,
			[]RowError{{Message: "failed to schedule import: " + err.Error()}})
		if failErr != nil {
			logger.WithField("job_id", job.ID).WithError(failErr).Error("failed to mark unscheduled job")
		}
		os.Remove(spoolPath)
		return nil, fmt.Errorf("scheduling import job: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"job_id":        job.ID,
		"file_name":     fileName,
		"total_records": totalRecords,
	}).Info("import job accepted")

	return job, nil
}

func (s *Service) spool(stream io.Reader) (string, int, error) {
	tmp, err := os.CreateTemp(s.spoolDir, "import-*.csv")
	if err != nil {
		return "", 0, fmt.Errorf("creating spool file: %w", err)
	}

	total, err := CountDataRows(io.TeeReader(stream, tmp))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("spooling upload: %w", err)
	}

	info, err := os.Stat(tmp.Name())
	if err == nil && info.Size() == 0 {
		os.Remove(tmp.Name())
		return "", 0, InvalidInputError{reason: errors.New("file is empty")}
	}

	return tmp.Name(), total, nil
}

func (s *Service) validateHeader(spoolPath string) error {
	file, err := os.Open(filepath.Clean(spoolPath))
	if err != nil {
		return fmt.Errorf("reopening spool file: %w", err)
	}
	defer file.Close()

	_, err = NewParser(file, s.schema)
	return err
}

// Snapshot is the pull query: cheap, side-effect free, never blocks.
func (s *Service) Snapshot(ctx context.Context, jobID string) (Snapshot, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return Snapshot{}, err
	}
	return job.Snapshot(), nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Snapshot, error) {
	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(jobs))
	for i := range jobs {
		snaps = append(snaps, jobs[i].Snapshot())
	}
	return snaps, nil
}

// Cancel sets the cancellation flag and returns immediately. The worker
// observes it at the next batch boundary.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	return s.jobs.RequestCancel(ctx, jobID)
}

// Subscribe attaches a push consumer to a job's progress stream.
func (s *Service) Subscribe(ctx context.Context, jobID string) (<-chan Snapshot, func(), error) {
	if _, err := s.jobs.Get(ctx, jobID); err != nil {
		return nil, nil, err
	}
	return s.publisher.Subscribe(ctx, jobID)
}
