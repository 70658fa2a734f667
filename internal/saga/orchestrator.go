// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mattermost/awsprov/internal/metrics"
	"github.com/mattermost/awsprov/model"
)

// Store is everything the Orchestrator needs from persistence.
type Store interface {
	TransactionStore
	GetTransactions(filter *model.TransactionFilter) ([]*model.Transaction, error)
}

// Sequence is a monotonic, collision free source of transaction
// numbers.
type Sequence interface {
	Next() (int64, error)
}

// OrchestratorOptions holds the collaborators of an Orchestrator.
type OrchestratorOptions struct {
	Store    Store
	Sequence Sequence
	Registry *StepRegistry
	Pool     *WorkerPool
	Logger   log.FieldLogger
	Metrics  *metrics.Metrics

	// Owner identifies this process when claiming transactions.
	Owner string
	// Lease is how long a claim survives without progress being
	// persisted before another process may take the transaction over.
	Lease time.Duration
}

// Orchestrator is the entry point of the transaction lifecycle: it
// creates transactions from requisitions and hands them to the
// WorkerPool for asynchronous execution.
type Orchestrator struct {
	store    Store
	sequence Sequence
	registry *StepRegistry
	pool     *WorkerPool
	runner   *StepRunner
	logger   log.FieldLogger

	inFlight sync.Map
}

// NewOrchestrator validates the options and returns an Orchestrator.
func NewOrchestrator(opts *OrchestratorOptions) (*Orchestrator, error) {
	if opts == nil {
		return nil, errors.New("options struct must not be nil")
	}
	if opts.Store == nil || opts.Sequence == nil || opts.Registry == nil || opts.Pool == nil || opts.Logger == nil {
		return nil, errors.New("store, sequence, registry, pool and logger are all required")
	}
	if err := opts.Registry.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid step registry")
	}
	owner := opts.Owner
	if owner == "" {
		owner = model.NewID()
	}
	lease := opts.Lease
	if lease <= 0 {
		lease = time.Hour
	}
	logger := opts.Logger.WithField("orchestrator", owner)

	return &Orchestrator{
		store:    opts.Store,
		sequence: opts.Sequence,
		registry: opts.Registry,
		pool:     opts.Pool,
		runner:   NewStepRunner(opts.Store, opts.Registry, owner, lease, logger, opts.Metrics),
		logger:   logger,
	}, nil
}

// Generate validates requisition, persists a new Pending Transaction
// for it and submits it to the WorkerPool. It returns the just created
// Transaction; the outcome is only observable through Query.
//
// Submission blocks while the pool is at capacity. If the admission
// policy gives up, the Transaction stays Pending and is picked up
// later by the recovery supervisor.
func (o *Orchestrator) Generate(ctx context.Context, requisition *model.Requisition) (*model.Transaction, error) {
	if requisition == nil {
		return nil, &ValidationError{Err: errors.New("requisition must not be nil")}
	}
	if err := requisition.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	kind := requisition.Kind()
	defs, err := o.registry.Definitions(kind)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	n, err := o.sequence.Next()
	if err != nil {
		return nil, &StoreError{Op: "allocate transaction id", Err: err}
	}

	transaction := &model.Transaction{
		ID:          fmt.Sprintf("%s-%d", kind, n),
		Kind:        kind,
		Requisition: requisition.Clone(),
		Status:      model.TransactionStatusPending,
		Result:      model.ResultUnset,
		CreateAt:    model.GetMillis(),
	}
	for i := range defs {
		transaction.Steps = append(transaction.Steps, defs[i].NewStepRecord())
		transaction.AnticipatedDuration += defs[i].AnticipatedDuration
	}

	err = o.store.CreateTransaction(transaction)
	if err != nil {
		return nil, &StoreError{Op: "create transaction", Err: err}
	}
	created := transaction.Clone()

	logger := o.logger.WithFields(log.Fields{"transaction": transaction.ID, "account": requisition.AccountID, "role": requisition.RoleName})
	logger.Info("Created transaction")

	err = o.submit(ctx, transaction.ID)
	if err != nil {
		logger.WithError(err).Warn("Failed to submit transaction; it will be retried by the recovery supervisor")
	}

	return created, nil
}

// Resubmit submits an existing Pending Transaction to the WorkerPool
// unless this process is already running it.
func (o *Orchestrator) Resubmit(ctx context.Context, id string) error {
	return o.submit(ctx, id)
}

func (o *Orchestrator) submit(ctx context.Context, id string) error {
	if _, loaded := o.inFlight.LoadOrStore(id, struct{}{}); loaded {
		return nil
	}

	submittedAt := time.Now()
	err := o.pool.Submit(ctx, id, func(jobCtx context.Context) {
		defer o.inFlight.Delete(id)
		if err := o.runner.Run(jobCtx, id, submittedAt); err != nil {
			o.logger.WithError(err).WithField("transaction", id).Error("Transaction pass aborted")
		}
	})
	if err != nil {
		o.inFlight.Delete(id)
		return err
	}

	return nil
}

// Running reports whether the Transaction is queued or running in
// this process.
func (o *Orchestrator) Running(id string) bool {
	_, ok := o.inFlight.Load(id)
	return ok
}

// Query returns the latest persisted state of a Transaction.
func (o *Orchestrator) Query(id string) (*model.Transaction, error) {
	transaction, err := o.store.GetTransaction(id)
	if err != nil {
		return nil, &StoreError{Op: "query transaction", Err: err}
	}
	if transaction == nil {
		return nil, ErrTransactionNotFound
	}
	return transaction, nil
}

// Update persists a new state of a Transaction.
func (o *Orchestrator) Update(transaction *model.Transaction) error {
	err := o.store.UpdateTransaction(transaction)
	if err != nil {
		return &StoreError{Op: "update transaction", Err: err}
	}
	return nil
}

// List returns the Transactions matching filter.
func (o *Orchestrator) List(filter *model.TransactionFilter) ([]*model.Transaction, error) {
	transactions, err := o.store.GetTransactions(filter)
	if err != nil {
		return nil, &StoreError{Op: "list transactions", Err: err}
	}
	return transactions, nil
}

// Kinds returns the transaction kinds this Orchestrator can run.
func (o *Orchestrator) Kinds() []*model.Kind {
	return o.registry.Kinds()
}

// Shutdown stops accepting work and waits for running transactions,
// see WorkerPool.Shutdown.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.pool.Shutdown(ctx)
}
