// Package worker runs unlock validations on a bounded in-process queue.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"sticker-album-backend/internal/config"
)

// Processor runs one validation attempt. A returned error marks the
// attempt as retryable.
type Processor interface {
	ProcessValidation(ctx context.Context, userStickerID string) error
}

type job struct {
	userStickerID string
	attempt       int
}

// Pool fans validation jobs out to a fixed set of workers. Failed jobs
// are retried with a fixed delay up to the configured maximum.
type Pool struct {
	processor  Processor
	jobs       chan job
	workers    int
	maxRetries int
	retryDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a validation pool from configuration.
func New(cfg config.WorkerConfig, processor Processor) *Pool {
	return &Pool{
		processor:  processor,
		jobs:       make(chan job, cfg.QueueSize),
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelaySecs) * time.Second,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	log.Info().Int("workers", p.workers).Msg("Validation workers started")
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	log.Info().Msg("Validation workers stopped")
}

// Enqueue schedules a record for validation. Returns an error when the
// queue is full rather than blocking the request path.
func (p *Pool) Enqueue(userStickerID string) error {
	select {
	case p.jobs <- job{userStickerID: userStickerID, attempt: 1}:
		return nil
	default:
		return fmt.Errorf("validation queue is full")
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.process(ctx, j)
		}
	}
}

func (p *Pool) process(ctx context.Context, j job) {
	err := p.processor.ProcessValidation(ctx, j.userStickerID)
	if err == nil {
		return
	}

	if j.attempt >= p.maxRetries {
		log.Error().
			Err(err).
			Str("user_sticker_id", j.userStickerID).
			Int("attempts", j.attempt).
			Msg("Validation failed permanently, record left pending")
		return
	}

	log.Warn().
		Err(err).
		Str("user_sticker_id", j.userStickerID).
		Int("attempt", j.attempt).
		Dur("retry_in", p.retryDelay).
		Msg("Validation failed, retrying")

	// The retry is requeued from a timer so the backoff never occupies a
	// worker slot.
	retry := job{userStickerID: j.userStickerID, attempt: j.attempt + 1}
	time.AfterFunc(p.retryDelay, func() {
		if ctx.Err() != nil {
			return
		}
		select {
		case p.jobs <- retry:
		default:
			log.Error().Str("user_sticker_id", retry.userStickerID).Msg("Validation queue full, dropping retry")
		}
	})
}
