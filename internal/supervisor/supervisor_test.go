package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/internal/store"
	"github.com/mattermost/awsprov/internal/testlib"
	"github.com/mattermost/awsprov/model"
)

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []string
	running   map[string]bool
	errs      map[string]error
}

func (f *fakeSubmitter) Resubmit(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return err
	}
	f.submitted = append(f.submitted, id)
	return nil
}

func (f *fakeSubmitter) Running(id string) bool {
	return f.running[id]
}

func (f *fakeSubmitter) Submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

func createTransaction(t *testing.T, s *store.MemoryStore, id string, age time.Duration) *model.Transaction {
	transaction := &model.Transaction{
		ID:       id,
		Kind:     model.KindCustomRole,
		Status:   model.TransactionStatusPending,
		Result:   model.ResultUnset,
		CreateAt: model.GetMillis() - age.Milliseconds(),
		Steps: []*model.StepRecord{
			{StepID: 1, Type: "iam-create-role", Status: model.StepStatusPending, Result: model.ResultUnset},
		},
	}
	require.NoError(t, s.CreateTransaction(transaction))
	return transaction
}

func TestRecoverySupervisor(t *testing.T) {
	memory := store.NewMemoryStore()
	createTransaction(t, memory, "custom-role-1", time.Hour)
	createTransaction(t, memory, "custom-role-2", time.Second)
	createTransaction(t, memory, "custom-role-3", time.Hour)
	createTransaction(t, memory, "custom-role-4", time.Hour)
	done := createTransaction(t, memory, "custom-role-5", time.Hour)
	interrupted := createTransaction(t, memory, "custom-role-6", time.Hour)

	locked, err := memory.TryLockTransaction("custom-role-3", "another-runner", 0)
	require.NoError(t, err)
	require.True(t, locked)

	done.Status = model.TransactionStatusCompleted
	require.NoError(t, memory.UpdateTransaction(done))

	interrupted.Steps[0].Status = model.StepStatusCompleted
	interrupted.Steps[0].Result = model.ResultSuccess
	require.NoError(t, memory.UpdateTransaction(interrupted))

	submitter := &fakeSubmitter{running: map[string]bool{"custom-role-4": true}}
	supervisor := NewRecoverySupervisor(memory, submitter, RecoveryOptions{
		Interval: time.Minute,
		Grace:    time.Minute,
		Lease:    time.Hour,
	}, testlib.MakeLogger(t))

	supervisor.Supervise()
	assert.Equal(t, []string{"custom-role-1", "custom-role-6"}, submitter.Submitted())
}

func TestRecoverySupervisorStopsWhenPoolIsBusy(t *testing.T) {
	memory := store.NewMemoryStore()
	createTransaction(t, memory, "custom-role-1", time.Hour)
	createTransaction(t, memory, "custom-role-2", 2*time.Hour)

	submitter := &fakeSubmitter{errs: map[string]error{"custom-role-2": saga.ErrPoolSaturated}}
	supervisor := NewRecoverySupervisor(memory, submitter, RecoveryOptions{Interval: time.Minute}, testlib.MakeLogger(t))

	supervisor.Supervise()
	assert.Empty(t, submitter.Submitted(), "the oldest transaction is retried first on the next pass")

	submitter.errs = map[string]error{"custom-role-2": errors.New("boom")}
	supervisor.Supervise()
	assert.Equal(t, []string{"custom-role-1"}, submitter.Submitted())
}

func TestRecoverySupervisorSchedule(t *testing.T) {
	memory := store.NewMemoryStore()
	createTransaction(t, memory, "custom-role-1", time.Hour)

	submitter := &fakeSubmitter{}
	supervisor := NewRecoverySupervisor(memory, submitter, RecoveryOptions{Interval: time.Second}, testlib.MakeLogger(t))
	require.NoError(t, supervisor.Start())

	assert.Eventually(t, func() bool {
		return len(submitter.Submitted()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	supervisor.Stop()
}
