package saga

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/internal/store"
	"github.com/mattermost/awsprov/internal/testlib"
	"github.com/mattermost/awsprov/model"
)

// journal records the side effects of scripted steps in the order
// they happened, across every transaction of a test.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) record(format string, args ...interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// scriptedStep behaves according to its definition config:
//
//	init:     fail
//	execute:  fail | report-failure | panic | block
//	rollback: fail | panic
type scriptedStep struct {
	BaseStep
	journal *journal
	gate    <-chan struct{}
	started chan<- string
}

func (s *scriptedStep) Init(ctx context.Context, sc *StepContext) error {
	if err := s.BaseStep.Init(ctx, sc); err != nil {
		return err
	}
	if v, _ := sc.Config("init"); v == "fail" {
		return errors.New("missing credentials")
	}
	return nil
}

func (s *scriptedStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	id := s.StepID()
	tag := fmt.Sprintf("%s/%d", s.Context().TransactionID, id)
	s.journal.record("execute %s", tag)

	behavior, _ := s.Context().Config("execute")
	switch behavior {
	case "fail":
		return s.Fail(errors.New("boom"))
	case "report-failure":
		s.BaseStep.status = model.StepStatusCompleted
		s.BaseStep.result = model.ResultFailure
		return nil, nil
	case "panic":
		panic("kaboom")
	case "block":
		if s.started != nil {
			s.started <- tag
		}
		select {
		case <-s.gate:
		case <-ctx.Done():
		}
	}

	props := []model.ResultProperty{model.NewResultProperty(fmt.Sprintf("step%d", id), "done")}
	if previous, ok := s.Context().Lookup(fmt.Sprintf("step%d", id-1)); ok {
		props = append(props, model.NewResultProperty("seen", previous))
	}
	return s.Succeed(props...)
}

func (s *scriptedStep) Simulate(ctx context.Context) ([]model.ResultProperty, error) {
	s.journal.record("simulate %s/%d", s.Context().TransactionID, s.StepID())
	return s.BaseStep.Simulate(ctx)
}

func (s *scriptedStep) ForceFail(ctx context.Context) ([]model.ResultProperty, error) {
	s.journal.record("force-fail %s/%d", s.Context().TransactionID, s.StepID())
	return s.BaseStep.ForceFail(ctx)
}

func (s *scriptedStep) Rollback(ctx context.Context) error {
	s.journal.record("rollback %s/%d", s.Context().TransactionID, s.StepID())
	switch v, _ := s.Context().Config("rollback"); v {
	case "fail":
		return errors.New("compensation refused")
	case "panic":
		panic("kaboom")
	}
	return nil
}

// failingStore wraps a MemoryStore and fails UpdateTransaction once
// it was called failAfter times.
type failingStore struct {
	*store.MemoryStore
	mu        sync.Mutex
	updates   int
	failAfter int
}

func (s *failingStore) UpdateTransaction(transaction *model.Transaction) error {
	s.mu.Lock()
	s.updates++
	fail := s.failAfter > 0 && s.updates > s.failAfter
	s.mu.Unlock()
	if fail {
		return errors.New("database unavailable")
	}
	return s.MemoryStore.UpdateTransaction(transaction)
}

type harness struct {
	t        *testing.T
	logger   log.FieldLogger
	store    *store.MemoryStore
	registry *StepRegistry
	journal  *journal
	gate     chan struct{}
	started  chan string
}

func newHarness(t *testing.T, defs ...model.StepDefinition) *harness {
	h := &harness{
		t:        t,
		logger:   testlib.MakeLogger(t),
		store:    store.NewMemoryStore(),
		registry: NewStepRegistry(),
		journal:  &journal{},
		gate:     make(chan struct{}),
		started:  make(chan string, 16),
	}
	require.NoError(t, h.registry.RegisterFactory("scripted", func() Step {
		return &scriptedStep{journal: h.journal, gate: h.gate, started: h.started}
	}))
	require.NoError(t, h.registry.RegisterKind(model.Kind{Name: model.KindCustomRole, Steps: defs}))
	require.NoError(t, h.registry.Validate())

	return h
}

func scripted(stepID int, config map[string]string) model.StepDefinition {
	return model.StepDefinition{
		StepID:              stepID,
		Type:                fmt.Sprintf("test-%d", stepID),
		Description:         fmt.Sprintf("scripted step %d", stepID),
		AnticipatedDuration: 100,
		ImplementationKey:   "scripted",
		Config:              config,
	}
}

func validRequisition() *model.Requisition {
	return &model.Requisition{
		AccountID:  "123456789012",
		RoleName:   "deployer",
		Action:     model.ActionCreate,
		PolicyARNs: []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"},
		Requester:  "jdoe",
	}
}

// create persists a Pending Transaction the way Generate does.
func (h *harness) create(id string, requisition *model.Requisition) *model.Transaction {
	defs, err := h.registry.Definitions(requisition.Kind())
	require.NoError(h.t, err)

	transaction := &model.Transaction{
		ID:          id,
		Kind:        requisition.Kind(),
		Requisition: requisition.Clone(),
		Status:      model.TransactionStatusPending,
		Result:      model.ResultUnset,
		CreateAt:    model.GetMillis(),
	}
	for i := range defs {
		transaction.Steps = append(transaction.Steps, defs[i].NewStepRecord())
	}
	require.NoError(h.t, h.store.CreateTransaction(transaction))

	return transaction
}

func (h *harness) runner(s TransactionStore) *StepRunner {
	if s == nil {
		s = h.store
	}
	return NewStepRunner(s, h.registry, "test-runner", time.Hour, h.logger, nil)
}

func (h *harness) load(id string) *model.Transaction {
	transaction, err := h.store.GetTransaction(id)
	require.NoError(h.t, err)
	require.NotNil(h.t, transaction)
	return transaction
}

func (h *harness) release() {
	close(h.gate)
}
