// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/model"
)

// Store finds transactions nobody is working on.
type Store interface {
	GetOrphanedTransactions(createdBefore, lockExpiredBefore int64) ([]*model.Transaction, error)
}

// Submitter hands transactions back to the worker pool.
type Submitter interface {
	Resubmit(ctx context.Context, id string) error
	Running(id string) bool
}

// RecoveryOptions tunes the RecoverySupervisor.
type RecoveryOptions struct {
	// Interval between two recovery passes.
	Interval time.Duration
	// Grace is how old a Pending transaction must be before it is
	// considered orphaned, which leaves time for the first submission.
	Grace time.Duration
	// Lease is how long a runner claim stays valid without progress.
	Lease time.Duration
}

// RecoverySupervisor periodically resubmits Pending transactions that
// no runner owns: transactions whose admission gave up, whose pass was
// aborted by a store error, or whose process died.
type RecoverySupervisor struct {
	store     Store
	submitter Submitter
	options   RecoveryOptions
	cron      *cron.Cron
	logger    log.FieldLogger
}

// NewRecoverySupervisor returns a RecoverySupervisor prepared with the
// needed metadata to operate.
func NewRecoverySupervisor(store Store, submitter Submitter, options RecoveryOptions, logger log.FieldLogger) *RecoverySupervisor {
	if options.Interval <= 0 {
		options.Interval = time.Minute
	}
	if options.Grace <= 0 {
		options.Grace = options.Interval
	}
	if options.Lease <= 0 {
		options.Lease = time.Hour
	}
	logger = logger.WithField("recovery-supervisor", model.NewID())

	return &RecoverySupervisor{
		store:     store,
		submitter: submitter,
		options:   options,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger)))),
		logger:    logger,
	}
}

// Start schedules the supervisor's main routine on its own goroutine.
func (s *RecoverySupervisor) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.options.Interval), s.Supervise)
	if err != nil {
		return errors.Wrap(err, "failed to schedule recovery supervisor")
	}
	s.cron.Start()
	s.logger.Infof("Recovery supervisor started; running every %s", s.options.Interval)

	return nil
}

// Stop unschedules the supervisor and waits for a running pass.
func (s *RecoverySupervisor) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Recovery supervisor stopped")
}

// Supervise runs a single recovery pass.
func (s *RecoverySupervisor) Supervise() {
	now := model.GetMillis()
	orphans, err := s.store.GetOrphanedTransactions(
		now-s.options.Grace.Milliseconds(),
		now-s.options.Lease.Milliseconds(),
	)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query database for orphaned transactions")
		return
	}
	if len(orphans) == 0 {
		return
	}
	s.logger.Debugf("Found %d orphaned transactions", len(orphans))

	ctx, cancel := context.WithTimeout(context.Background(), s.options.Interval)
	defer cancel()

	for _, transaction := range orphans {
		if s.submitter.Running(transaction.ID) {
			continue
		}
		logger := s.logger.WithFields(log.Fields{"transaction": transaction.ID, "kind": transaction.Kind})

		err = s.submitter.Resubmit(ctx, transaction.ID)
		switch {
		case err == nil:
			if transaction.Progressed() {
				logger.Warn("Resubmitted interrupted transaction; it will be rolled back")
			} else {
				logger.Info("Resubmitted orphaned transaction")
			}
		case errors.Is(err, saga.ErrPoolClosed):
			return
		case errors.Is(err, saga.ErrPoolSaturated), ctx.Err() != nil:
			logger.WithError(err).Info("Worker pool is busy; will retry on the next pass")
			return
		default:
			logger.WithError(err).Error("Failed to resubmit orphaned transaction")
		}
	}
}
