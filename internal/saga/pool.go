// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package saga

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/mattermost/awsprov/internal/metrics"
)

var (
	// ErrPoolSaturated is returned by Submit when the admission policy
	// gave up before a worker became available. The job was not run.
	ErrPoolSaturated = errors.New("worker pool is at capacity")

	// ErrPoolClosed is returned by Submit after Shutdown was called.
	ErrPoolClosed = errors.New("worker pool is shut down")

	errPoolBusy = errors.New("no worker available")
)

// Job is a unit of work run by the WorkerPool. The context is
// canceled when the pool is forced to shut down.
type Job func(ctx context.Context)

// AdmissionPolicy decides how long Submit keeps retrying while the
// pool is at capacity.
type AdmissionPolicy interface {
	NewBackOff() backoff.BackOff
}

// FixedIntervalPolicy retries admission every Interval. A MaxRetries
// of zero retries until the submission context is done.
type FixedIntervalPolicy struct {
	Interval   time.Duration
	MaxRetries uint64
}

// NewBackOff satisfies AdmissionPolicy.
func (p FixedIntervalPolicy) NewBackOff() backoff.BackOff {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(interval)
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return b
}

// WorkerPool runs independent jobs in parallel, at most size at a
// time. Each admitted job runs to completion on its own goroutine.
type WorkerPool struct {
	sem      *semaphore.Weighted
	size     int64
	inFlight int64
	policy   AdmissionPolicy
	logger   log.FieldLogger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool returns a WorkerPool with size workers.
func NewWorkerPool(size int, policy AdmissionPolicy, logger log.FieldLogger, m *metrics.Metrics) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if policy == nil {
		policy = FixedIntervalPolicy{Interval: time.Second}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    int64(size),
		policy:  policy,
		logger:  logger.WithField("component", "worker-pool"),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit admits job, retrying according to the AdmissionPolicy while
// the pool is at capacity. It blocks until the job is admitted, the
// policy gives up, or ctx is done; it never waits for the job itself.
func (p *WorkerPool) Submit(ctx context.Context, name string, job Job) error {
	if job == nil {
		return errors.New("job must not be nil")
	}
	logger := p.logger.WithField("job", name)

	admit := func() error {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.closed {
			return backoff.Permanent(ErrPoolClosed)
		}
		if !p.sem.TryAcquire(1) {
			p.metrics.PoolAdmissionRetried()
			return errPoolBusy
		}
		p.wg.Add(1)
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Debugf("Worker pool at capacity; retrying admission in %s", wait)
	}

	err := backoff.RetryNotify(admit, backoff.WithContext(p.policy.NewBackOff(), ctx), notify)
	if err != nil {
		if errors.Is(err, ErrPoolClosed) {
			return ErrPoolClosed
		}
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "gave up waiting for worker pool admission")
		}
		p.metrics.PoolAdmissionExhausted()
		return ErrPoolSaturated
	}

	go p.run(logger, job)

	return nil
}

func (p *WorkerPool) run(logger log.FieldLogger, job Job) {
	atomic.AddInt64(&p.inFlight, 1)
	p.metrics.PoolJobStarted()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Job panicked: %v", r)
		}
		atomic.AddInt64(&p.inFlight, -1)
		p.metrics.PoolJobFinished()
		p.sem.Release(1)
		p.wg.Done()
	}()

	job(p.ctx)
}

// Size returns the maximum number of concurrent jobs.
func (p *WorkerPool) Size() int {
	return int(p.size)
}

// InFlight returns the number of jobs currently running.
func (p *WorkerPool) InFlight() int {
	return int(atomic.LoadInt64(&p.inFlight))
}

// Shutdown stops admitting jobs and waits for running ones. If ctx is
// done first, running jobs are asked to stop through their context and
// Shutdown returns without waiting further.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.logger.Warn("Shutdown deadline reached; canceling running transactions")
		p.cancel()
		return ctx.Err()
	}
}
