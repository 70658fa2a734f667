// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package saga

import (
	"context"
	"fmt"
	"sort"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mattermost/awsprov/internal/metrics"
	"github.com/mattermost/awsprov/model"
)

// TransactionStore is the persistence contract of the runner.
//
// GetTransaction returns nil and no error when the Transaction does
// not exist. UpdateTransaction must reject writes whose Version does
// not match the stored one, and writes to a Completed Transaction; on
// success it increments the Version of its argument.
type TransactionStore interface {
	GetTransaction(id string) (*model.Transaction, error)
	CreateTransaction(transaction *model.Transaction) error
	UpdateTransaction(transaction *model.Transaction) error
	TryLockTransaction(id, owner string, expireBefore int64) (bool, error)
	UnlockTransaction(id, owner string) error
}

// StepRunner drives the steps of one Transaction at a time, strictly
// in order, and compensates completed steps when one of them fails.
// A StepRunner holds no per-transaction state and may be shared by
// concurrent jobs.
type StepRunner struct {
	store    TransactionStore
	registry *StepRegistry
	owner    string
	lease    time.Duration
	logger   log.FieldLogger
	metrics  *metrics.Metrics
}

// NewStepRunner returns a StepRunner that claims transactions as owner
// for at most lease without persisting progress.
func NewStepRunner(store TransactionStore, registry *StepRegistry, owner string, lease time.Duration, logger log.FieldLogger, m *metrics.Metrics) *StepRunner {
	return &StepRunner{
		store:    store,
		registry: registry,
		owner:    owner,
		lease:    lease,
		logger:   logger,
		metrics:  m,
	}
}

// execution pairs a StepRecord with the Step instance that produced
// it. The instance is nil when the record was loaded from the store.
type execution struct {
	record *model.StepRecord
	def    model.StepDefinition
	step   Step
}

// pass is the state of one StepRunner invocation for one Transaction.
type pass struct {
	runner      *StepRunner
	transaction *model.Transaction
	logger      log.FieldLogger
	submittedAt time.Time
}

// Run executes the Transaction identified by id. Step failures are
// translated into a Failure result and never returned; only store
// errors, which abort the pass, are.
func (r *StepRunner) Run(ctx context.Context, id string, submittedAt time.Time) error {
	logger := r.logger.WithField("transaction", id)

	baseline, err := r.store.GetTransaction(id)
	if err != nil {
		return &StoreError{Op: "load transaction", Err: err}
	}
	if baseline == nil {
		return &StoreError{Op: "load transaction", Err: errors.Wrap(ErrTransactionNotFound, id)}
	}
	if baseline.IsCompleted() {
		logger.Debug("Transaction already completed; nothing to do")
		return nil
	}

	expireBefore := model.GetMillis() - r.lease.Milliseconds()
	locked, err := r.store.TryLockTransaction(id, r.owner, expireBefore)
	if err != nil {
		return &StoreError{Op: "lock transaction", Err: err}
	}
	if !locked {
		logger.Info("Transaction is owned by another runner; skipping")
		return nil
	}
	defer func() {
		if err := r.store.UnlockTransaction(id, r.owner); err != nil {
			logger.WithError(err).Warn("Failed to release transaction lock")
		}
	}()

	// The baseline is read again under the lock so that it reflects any
	// pass that finished between the first read and the lock.
	transaction, err := r.store.GetTransaction(id)
	if err != nil {
		return &StoreError{Op: "load transaction", Err: err}
	}
	if transaction == nil {
		return &StoreError{Op: "load transaction", Err: errors.Wrap(ErrTransactionNotFound, id)}
	}
	if transaction.IsCompleted() {
		logger.Debug("Transaction already completed; nothing to do")
		return nil
	}

	sort.SliceStable(transaction.Steps, func(i, j int) bool {
		return transaction.Steps[i].StepID < transaction.Steps[j].StepID
	})

	p := &pass{
		runner:      r,
		transaction: transaction,
		logger:      logger.WithField("kind", transaction.Kind),
		submittedAt: submittedAt,
	}

	r.metrics.TransactionStarted(transaction.Kind)

	if transaction.Progressed() {
		return p.resume(ctx)
	}

	if transaction.StartAt == 0 {
		transaction.StartAt = model.GetMillis()
	}
	p.logger.Info("Beginning transaction")

	return p.forward(ctx)
}

// forward executes the steps in ascending StepID order until one fails
// or all succeed.
func (p *pass) forward(ctx context.Context) error {
	var completed []*execution

	for _, record := range p.transaction.Steps {
		def := p.definition(record)
		logger := p.logger.WithFields(log.Fields{"step": def.StepID, "type": def.Type})

		if err := ctx.Err(); err != nil {
			logger.WithError(err).Warn("Transaction canceled before step; rolling back")
			p.markFailed(record, nil, errors.Wrap(err, "transaction canceled before the step started"))
			if err := p.persist(); err != nil {
				return p.abandon(ctx, completed, err)
			}
			return p.rollback(ctx, completed)
		}

		step, err := p.instantiate(ctx, def, record, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize step")
			p.markFailed(record, nil, err)
			if err := p.persist(); err != nil {
				return p.abandon(ctx, completed, err)
			}
			return p.rollback(ctx, completed)
		}

		logger.Debugf("Running step: %s", def.Description)
		props, err := p.invoke(ctx, step, def)
		if err == nil && step.Result() == model.ResultFailure {
			err = &ExecutionError{StepID: def.StepID, Err: errors.New("step reported failure")}
		}
		if err != nil {
			logger.WithError(err).Error("Step failed")
			p.markFailed(record, props, err)
			p.runner.metrics.StepExecuted(def.Type, string(model.ResultFailure))
			if err := p.persist(); err != nil {
				return p.abandon(ctx, completed, err)
			}
			return p.rollback(ctx, completed)
		}

		record.Status = model.StepStatusCompleted
		record.Result = model.ResultSuccess
		record.ResultProperties = props
		record.CompleteAt = model.GetMillis()
		p.runner.metrics.StepExecuted(def.Type, string(model.ResultSuccess))
		logger.Debug("Step succeeded")

		completed = append(completed, &execution{record: record, def: def, step: step})
		if err := p.persist(); err != nil {
			return p.abandon(ctx, completed, err)
		}
	}

	return p.finish(ctx, model.ResultSuccess)
}

// rollback compensates the completed steps in descending StepID order.
// A failed compensation is recorded and logged, and never prevents the
// remaining ones from being attempted.
func (p *pass) rollback(ctx context.Context, completed []*execution) error {
	p.compensateAll(ctx, completed)

	return p.finish(context.WithoutCancel(ctx), model.ResultFailure)
}

// abandon aborts the pass after a failed write. Outcomes that never
// reached the store are invisible to later passes, so every step this
// pass applied is compensated before the store error is returned.
func (p *pass) abandon(ctx context.Context, completed []*execution, err error) error {
	p.logger.WithError(err).Error("Failed to record transaction progress; compensating the steps of this pass")
	p.compensateAll(ctx, completed)
	return err
}

// resume continues a Transaction whose previous pass stopped after
// recording progress.
func (p *pass) resume(ctx context.Context) error {
	var completed []*execution
	succeeded, failed := true, false
	for _, record := range p.transaction.Steps {
		if record.Status == model.StepStatusCompleted && record.Result == model.ResultSuccess {
			completed = append(completed, &execution{record: record, def: p.definition(record)})
			continue
		}
		succeeded = false
		if record.Result == model.ResultFailure {
			failed = true
		}
	}

	if succeeded {
		p.logger.Warn("Transaction was interrupted after its last step; completing it")
		return p.finish(context.WithoutCancel(ctx), model.ResultSuccess)
	}

	if !failed {
		// The step after the last recorded one may or may not have run;
		// its outcome is unknown and it is not compensated.
		for _, record := range p.transaction.Steps {
			if record.Status == model.StepStatusPending {
				p.markFailed(record, nil, errors.New("interrupted: the pass running this step stopped before recording its outcome"))
				break
			}
		}
		if err := p.persist(); err != nil {
			return err
		}
	}

	p.logger.Warn("Transaction was interrupted by a previous pass; rolling back recorded steps")
	return p.rollback(ctx, completed)
}

// compensateAll rolls back the completed steps in descending StepID
// order and publishes the progress on a best-effort basis.
func (p *pass) compensateAll(ctx context.Context, completed []*execution) {
	// Compensation must run to the end even if the pass was canceled.
	ctx = context.WithoutCancel(ctx)

	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].record.StepID > completed[j].record.StepID
	})

	var rollbackErrs *multierror.Error
	for _, e := range completed {
		logger := p.logger.WithFields(log.Fields{"step": e.def.StepID, "type": e.def.Type})

		err := p.compensate(ctx, e, logger)
		p.runner.metrics.StepRolledBack(e.def.Type, err)
		if err != nil {
			rbErr := &RollbackError{StepID: e.def.StepID, Err: err}
			rollbackErrs = multierror.Append(rollbackErrs, rbErr)
			e.record.RollbackError = err.Error()
			logger.WithError(err).Error("Failed to roll back step")
		} else {
			e.record.Status = model.StepStatusRolledBack
			e.record.RollbackError = ""
			logger.Info("Rolled back step")
		}

		if err := p.persist(); err != nil {
			logger.WithError(err).Warn("Failed to publish rollback progress; continuing")
		}
	}

	if rollbackErrs != nil {
		p.logger.WithError(rollbackErrs.ErrorOrNil()).Warnf("Rollback finished with %d failed compensations", rollbackErrs.Len())
	}
}

func (p *pass) compensate(ctx context.Context, e *execution, logger log.FieldLogger) (err error) {
	if e.step == nil {
		e.step, err = p.instantiate(ctx, e.def, e.record, logger)
		if err != nil {
			return err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("rollback panicked: %v", r)
		}
	}()

	return e.step.Rollback(ctx)
}

// finish re-reads the latest persisted Transaction and writes the
// terminal state on top of it.
func (p *pass) finish(ctx context.Context, result model.Result) error {
	latest, err := p.runner.store.GetTransaction(p.transaction.ID)
	if err != nil {
		return &StoreError{Op: "re-query transaction baseline", Err: err}
	}
	if latest == nil {
		return &StoreError{Op: "re-query transaction baseline", Err: errors.Wrap(ErrTransactionNotFound, p.transaction.ID)}
	}
	if latest.IsCompleted() {
		p.logger.Warn("Transaction was completed by someone else; leaving it untouched")
		return nil
	}

	now := time.Now()
	latest.Steps = p.transaction.Steps
	latest.StartAt = p.transaction.StartAt
	latest.Status = model.TransactionStatusCompleted
	latest.Result = result
	latest.CompleteAt = now.UnixNano() / int64(time.Millisecond)
	latest.ActualDuration = now.Sub(p.submittedAt).Milliseconds()
	latest.LockAcquiredAt = latest.CompleteAt

	err = p.runner.store.UpdateTransaction(latest)
	if err != nil {
		return &StoreError{Op: "complete transaction", Err: err}
	}
	p.transaction = latest

	p.runner.metrics.TransactionCompleted(latest.Kind, string(result), now.Sub(p.submittedAt))
	p.logger.WithFields(log.Fields{
		"result":   result,
		"duration": fmt.Sprintf("%dms", latest.ActualDuration),
	}).Info("Transaction completed")

	return nil
}

// persist publishes the in-progress state of the Transaction, renewing
// the lease at the same time.
func (p *pass) persist() error {
	p.transaction.LockAcquiredAt = model.GetMillis()
	err := p.runner.store.UpdateTransaction(p.transaction)
	if err != nil {
		return &StoreError{Op: "update transaction", Err: err}
	}
	return nil
}

func (p *pass) definition(record *model.StepRecord) model.StepDefinition {
	def, err := p.runner.registry.Definition(p.transaction.Kind, record.StepID)
	if err == nil && def.ImplementationKey == record.ImplementationKey {
		return def
	}

	// The catalog changed since the Transaction was created; fall back to
	// what was recorded.
	return model.StepDefinition{
		StepID:              record.StepID,
		Type:                record.Type,
		Description:         record.Description,
		AnticipatedDuration: record.AnticipatedDuration,
		ImplementationKey:   record.ImplementationKey,
	}
}

func (p *pass) instantiate(ctx context.Context, def model.StepDefinition, record *model.StepRecord, logger log.FieldLogger) (step Step, err error) {
	factory, err := p.runner.registry.Factory(def.ImplementationKey)
	if err != nil {
		return nil, &InitializationError{StepID: def.StepID, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			step, err = nil, &InitializationError{StepID: def.StepID, Err: errors.Errorf("panic: %v", r)}
		}
	}()

	step = factory()
	if step == nil {
		return nil, &InitializationError{StepID: def.StepID, Err: errors.New("factory returned nil")}
	}

	sc := NewStepContext(p.transaction, def, logger)
	sc.own = record
	if err := step.Init(ctx, sc); err != nil {
		var initErr *InitializationError
		if errors.As(err, &initErr) {
			return nil, initErr
		}
		return nil, &InitializationError{StepID: def.StepID, Err: err}
	}

	return step, nil
}

func (p *pass) invoke(ctx context.Context, step Step, def model.StepDefinition) (props []model.ResultProperty, err error) {
	defer func() {
		if r := recover(); r != nil {
			props, err = nil, &ExecutionError{StepID: def.StepID, Err: errors.Errorf("panic: %v", r)}
		}
	}()

	requisition := p.transaction.Requisition
	switch {
	case def.Mode == model.StepModeFail || requisition.ForceFailStep == def.StepID:
		return step.ForceFail(ctx)
	case def.Mode == model.StepModeSimulate || requisition.DryRun:
		return step.Simulate(ctx)
	default:
		return step.Execute(ctx)
	}
}

func (p *pass) markFailed(record *model.StepRecord, props []model.ResultProperty, err error) {
	record.Status = model.StepStatusCompleted
	record.Result = model.ResultFailure
	record.ResultProperties = props
	record.Error = err.Error()
	record.CompleteAt = model.GetMillis()
}
