// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package saga

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mattermost/awsprov/model"
)

// Step is one compensatable unit of work within a Transaction. A Step
// is constructed fresh by its StepFactory for every execution attempt
// and discarded when the runner pass ends.
type Step interface {
	// Init prepares the step for a single execution attempt. It fails
	// with an InitializationError when configuration or a dependency
	// is missing.
	Init(ctx context.Context, sc *StepContext) error

	// Execute performs the externally visible action and returns the
	// facts later steps or the rollback need. The step must have
	// recorded its terminal status and result before returning.
	Execute(ctx context.Context) ([]model.ResultProperty, error)

	// Simulate reports success with plausible result properties
	// without performing any external side effect.
	Simulate(ctx context.Context) ([]model.ResultProperty, error)

	// ForceFail reports failure without performing or undoing anything.
	ForceFail(ctx context.Context) ([]model.ResultProperty, error)

	// Rollback undoes whatever Execute did, on a best-effort basis. It
	// must be safe to call after both full and partial execution.
	Rollback(ctx context.Context) error

	StepID() int
	Type() string
	Description() string
	Status() model.StepStatus
	Result() model.Result
}

// StepFactory builds a new, uninitialized Step.
type StepFactory func() Step

// StepContext is everything a Step may know about the Transaction it
// runs in. Steps read it; only the runner writes it.
type StepContext struct {
	TransactionID string
	Requisition   model.Requisition
	Definition    model.StepDefinition
	Logger        log.FieldLogger

	own   *model.StepRecord
	prior []*model.StepRecord
}

// NewStepContext builds the StepContext for the step identified by
// def inside transaction. Only steps ordered before def are visible
// through Lookup.
func NewStepContext(transaction *model.Transaction, def model.StepDefinition, logger log.FieldLogger) *StepContext {
	sc := &StepContext{
		TransactionID: transaction.ID,
		Requisition:   transaction.Requisition.Clone(),
		Definition:    def,
		Logger:        logger,
	}
	for _, s := range transaction.Steps {
		if s.StepID < def.StepID {
			sc.prior = append(sc.prior, s)
		}
		if s.StepID == def.StepID {
			sc.own = s
		}
	}
	return sc
}

// Config returns the value of a definition config key.
func (sc *StepContext) Config(key string) (string, bool) {
	v, ok := sc.Definition.Config[key]
	return v, ok && v != ""
}

// RequireConfig fails if any of the keys are missing from the
// definition config.
func (sc *StepContext) RequireConfig(keys ...string) error {
	for _, key := range keys {
		if _, ok := sc.Config(key); !ok {
			return errors.Errorf("missing required config %q", key)
		}
	}
	return nil
}

// Own returns a property previously recorded by this very step. It is
// how a re-instantiated step finds what it has to roll back.
func (sc *StepContext) Own(key string) (string, bool) {
	if sc.own == nil {
		return "", false
	}
	return sc.own.Property(key)
}

// Lookup returns the most recent value recorded under key by an
// earlier step of the same Transaction.
func (sc *StepContext) Lookup(key string) (string, bool) {
	for i := len(sc.prior) - 1; i >= 0; i-- {
		if v, ok := sc.prior[i].Property(key); ok {
			return v, true
		}
	}
	return "", false
}

// Prior returns copies of the records of the steps ordered before this
// one.
func (sc *StepContext) Prior() []*model.StepRecord {
	prior := make([]*model.StepRecord, 0, len(sc.prior))
	for _, s := range sc.prior {
		prior = append(prior, s.Clone())
	}
	return prior
}

// BaseStep implements the bookkeeping half of Step. Concrete steps
// embed it and provide Execute, and usually Rollback and Simulate.
type BaseStep struct {
	sc     *StepContext
	status model.StepStatus
	result model.Result
}

// Init stores the StepContext and resets the terminal state.
func (b *BaseStep) Init(ctx context.Context, sc *StepContext) error {
	if sc == nil {
		return errors.New("step context must not be nil")
	}
	b.sc = sc
	b.status = model.StepStatusPending
	b.result = model.ResultUnset
	return nil
}

// Context returns the StepContext given to Init.
func (b *BaseStep) Context() *StepContext {
	return b.sc
}

// Logger returns a logger tagged with the transaction and step.
func (b *BaseStep) Logger() log.FieldLogger {
	if b.sc == nil || b.sc.Logger == nil {
		return log.StandardLogger()
	}
	return b.sc.Logger
}

func (b *BaseStep) StepID() int {
	if b.sc == nil {
		return 0
	}
	return b.sc.Definition.StepID
}

func (b *BaseStep) Type() string {
	if b.sc == nil {
		return ""
	}
	return b.sc.Definition.Type
}

func (b *BaseStep) Description() string {
	if b.sc == nil {
		return ""
	}
	return b.sc.Definition.Description
}

func (b *BaseStep) Status() model.StepStatus {
	if b.status == "" {
		return model.StepStatusPending
	}
	return b.status
}

func (b *BaseStep) Result() model.Result {
	if b.result == "" {
		return model.ResultUnset
	}
	return b.result
}

// Succeed records a successful terminal state and returns props.
func (b *BaseStep) Succeed(props ...model.ResultProperty) ([]model.ResultProperty, error) {
	b.status = model.StepStatusCompleted
	b.result = model.ResultSuccess
	return props, nil
}

// Fail records a failed terminal state and returns err wrapped in an
// ExecutionError.
func (b *BaseStep) Fail(err error, props ...model.ResultProperty) ([]model.ResultProperty, error) {
	b.status = model.StepStatusCompleted
	b.result = model.ResultFailure
	return props, &ExecutionError{StepID: b.StepID(), Err: err}
}

// Simulate reports success without side effects.
func (b *BaseStep) Simulate(ctx context.Context) ([]model.ResultProperty, error) {
	return b.Succeed(model.NewResultProperty("simulated", "true"))
}

// ForceFail reports failure without side effects.
func (b *BaseStep) ForceFail(ctx context.Context) ([]model.ResultProperty, error) {
	b.status = model.StepStatusCompleted
	b.result = model.ResultFailure
	return []model.ResultProperty{model.NewResultProperty("forced", "true")}, nil
}

// Rollback does nothing by default.
func (b *BaseStep) Rollback(ctx context.Context) error {
	return nil
}

// Simulated reports whether the step recorded a simulated execution,
// in which case there is nothing to roll back.
func (b *BaseStep) Simulated() bool {
	if b.sc == nil {
		return false
	}
	v, _ := b.sc.Own("simulated")
	return v == "true"
}
