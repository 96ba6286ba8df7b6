package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/httpclient"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/logger"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/models"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/observability/metrics"
	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/products"
)

// ProductStore is the upsert surface the pipeline writes through. One upsert
// is one transaction; no transaction spans a batch.
type ProductStore interface {
	Upsert(ctx context.Context, row products.UpsertRow) (products.UpsertOutcome, error)
}

// EventSink receives one created/updated event per unique key written.
type EventSink interface {
	Fire(eventType string, payload map[string]interface{})
}

// Pipeline drives one import job: parse a batch, upsert its rows, publish
// progress, check for cancellation, repeat. Batches run strictly
// sequentially; cancellation and progress are defined at batch granularity.
type Pipeline struct {
	jobs      JobStore
	store     ProductStore
	publisher *Publisher
	events    EventSink
	schema    Schema
	batchSize int
	errorCap  int
}

func NewPipeline(jobs JobStore, store ProductStore, publisher *Publisher, events EventSink, schema Schema, batchSize, errorCap int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if errorCap <= 0 {
		errorCap = 100
	}
	return &Pipeline{
		jobs:      jobs,
		store:     store,
		publisher: publisher,
		events:    events,
		schema:    schema,
		batchSize: batchSize,
		errorCap:  errorCap,
	}
}

// Run processes one spooled upload. The spool file is removed when the run
// ends, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, jobID, spoolPath string) error {
	defer os.Remove(spoolPath)

	log := logger.WithField("job_id", jobID)
	metrics.JobStarted()

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}
	total := job.TotalRecords

	if err := p.jobs.MarkProcessing(ctx, jobID, PhaseParsing); err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}

	file, err := os.Open(spoolPath)
	if err != nil {
		return p.fail(ctx, jobID, 0, total, nil, fmt.Errorf("opening spooled upload: %w", err))
	}
	defer file.Close()

	parser, err := NewParser(file, p.schema)
	if err != nil {
		return p.fail(ctx, jobID, 0, total, nil, err)
	}

	processed := 0
	var rowErrors []RowError
	eof := false

	for !eof {
		cancelled, err := p.jobs.CancellationRequested(ctx, jobID)
		if err != nil {
			return p.fail(ctx, jobID, processed, total, rowErrors, fmt.Errorf("checking cancellation: %w", err))
		}
		if cancelled {
			log.WithField("processed", processed).Info("import cancelled at batch boundary")
			metrics.JobCancelled()
			return p.finish(ctx, jobID, StatusCancelled, processed, total, rowErrors)
		}

		batch, err := parser.NextBatch(p.batchSize)
		if err == io.EOF {
			eof = true
		} else if err != nil {
			return p.fail(ctx, jobID, processed, total, rowErrors, err)
		}
		if batch.Read == 0 && eof {
			break
		}

		outcomes, batchErrors, err := p.upsertBatch(ctx, batch)
		if err != nil {
			return p.fail(ctx, jobID, processed, total, rowErrors, err)
		}

		processed += batch.Read
		if processed > total {
			total = processed
		}
		rowErrors = appendCapped(rowErrors, append(batch.Errors, batchErrors...), p.errorCap)

		metrics.RowsProcessed(batch.Read)
		metrics.RowErrors(len(batch.Errors) + len(batchErrors))

		progress := percent(processed, total, false)
		if err := p.jobs.UpdateProgress(ctx, jobID, PhaseProcessing, processed, total, progress, rowErrors); err != nil {
			return p.fail(ctx, jobID, processed, total, rowErrors, fmt.Errorf("updating progress: %w", err))
		}
		p.publishCurrent(ctx, jobID)

		// Events fire outside the upsert transactions and never block the
		// next batch.
		for _, outcome := range outcomes {
			if outcome.Created {
				p.events.Fire(models.EventProductCreated, outcome.Product.Payload())
			} else {
				p.events.Fire(models.EventProductUpdated, outcome.Product.Payload())
			}
		}
	}

	total = processed
	log.WithFields(map[string]interface{}{
		"processed": processed,
		"errors":    len(rowErrors),
	}).Info("import completed")
	metrics.JobCompleted()
	return p.finish(ctx, jobID, StatusCompleted, processed, total, rowErrors)
}

// upsertBatch writes each row in its own transaction. Store errors are
// row-level unless the store is unreachable, which fails the whole job.
func (p *Pipeline) upsertBatch(ctx context.Context, batch Batch) ([]products.UpsertOutcome, []RowError, error) {
	outcomes := make([]products.UpsertOutcome, 0, len(batch.Rows))
	var rowErrors []RowError

	for _, row := range batch.Rows {
		outcome, err := p.store.Upsert(ctx, products.UpsertRow{
			SKU:         row.SKU,
			Name:        row.Name,
			Description: row.Description,
			Active:      row.Active,
		})
		if err != nil {
			if httpclient.IsUnreachable(err) || errors.Is(err, context.Canceled) {
				return nil, nil, fmt.Errorf("store unreachable at row %d: %w", row.Number, err)
			}
			rowErrors = append(rowErrors, RowError{Row: row.Number, SKU: row.SKU, Message: err.Error()})
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rowErrors, nil
}

func (p *Pipeline) fail(ctx context.Context, jobID string, processed, total int, rowErrors []RowError, cause error) error {
	logger.WithField("job_id", jobID).WithError(cause).Error("import failed")
	metrics.JobFailed()

	rowErrors = appendCapped(rowErrors, []RowError{{Message: cause.Error()}}, p.errorCap+1)
	if err := p.jobs.Finish(ctx, jobID, StatusFailed, processed, total, percent(processed, total, false), rowErrors); err != nil {
		logger.WithField("job_id", jobID).WithError(err).Error("failed to persist terminal state")
	}
	p.publishCurrent(ctx, jobID)
	return cause
}

func (p *Pipeline) finish(ctx context.Context, jobID, status string, processed, total int, rowErrors []RowError) error {
	progress := percent(processed, total, status == StatusCompleted)
	if err := p.jobs.Finish(ctx, jobID, status, processed, total, progress, rowErrors); err != nil {
		return fmt.Errorf("persisting terminal state: %w", err)
	}
	p.publishCurrent(ctx, jobID)
	return nil
}

// publishCurrent pushes the stored snapshot so push subscribers observe
// exactly what pull readers would.
func (p *Pipeline) publishCurrent(ctx context.Context, jobID string) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		logger.WithField("job_id", jobID).WithError(err).Warn("failed to load snapshot for publication")
		return
	}
	p.publisher.Publish(ctx, job.Snapshot())
}

func appendCapped(existing, incoming []RowError, limit int) []RowError {
	for _, e := range incoming {
		if len(existing) >= limit {
			break
		}
		existing = append(existing, e)
	}
	return existing
}

type task struct {
	jobID     string
	spoolPath string
}

// Pool is the bounded worker pool. Each job runs on exactly one worker;
// within a job everything is sequential.
type Pool struct {
	pipeline *Pipeline
	tasks    chan task
	workers  int
	wg       sync.WaitGroup
	once     sync.Once

	mu      sync.Mutex
	stopped bool
}

func NewPool(pipeline *Pipeline, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pool{
		pipeline: pipeline,
		tasks:    make(chan task, queueSize),
		workers:  workers,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case t, ok := <-p.tasks:
						if !ok {
							return
						}
						if err := p.pipeline.Run(ctx, t.jobID, t.spoolPath); err != nil {
							logger.WithField("job_id", t.jobID).WithError(err).Error("import job failed")
						}
					}
				}
			}()
		}
	})
}

var (
	ErrQueueFull   = errors.New("import queue is full")
	ErrPoolStopped = errors.New("import pool is stopped")
)

// Submit schedules a job for execution without blocking the upload request.
// After Stop it refuses instead of panicking on the closed channel; the
// caller marks the job failed the same way it does for a full queue.
func (p *Pool) Submit(jobID, spoolPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- task{jobID: jobID, spoolPath: spoolPath}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
