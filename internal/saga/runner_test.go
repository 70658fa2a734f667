package saga

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/model"
)

func stepStates(transaction *model.Transaction) []string {
	states := []string{}
	for _, s := range transaction.Steps {
		states = append(states, string(s.Status)+"/"+string(s.Result))
	}
	return states
}

func TestStepRunnerOutcomes(t *testing.T) {
	var testCases = []struct {
		testName        string
		steps           []model.StepDefinition
		requisition     func(*model.Requisition)
		expectedResult  model.Result
		expectedJournal []string
		expectedStates  []string
	}{
		{
			"all steps succeed",
			[]model.StepDefinition{scripted(1, nil), scripted(2, nil), scripted(3, nil)},
			nil,
			model.ResultSuccess,
			[]string{"execute t/1", "execute t/2", "execute t/3"},
			[]string{"Completed/Success", "Completed/Success", "Completed/Success"},
		},
		{
			"middle step fails",
			[]model.StepDefinition{scripted(1, nil), scripted(2, map[string]string{"execute": "fail"}), scripted(3, nil)},
			nil,
			model.ResultFailure,
			[]string{"execute t/1", "execute t/2", "rollback t/1"},
			[]string{"RolledBack/Success", "Completed/Failure", "Pending/Unset"},
		},
		{
			"last step fails and a compensation fails",
			[]model.StepDefinition{scripted(1, map[string]string{"rollback": "fail"}), scripted(2, nil), scripted(3, map[string]string{"execute": "fail"})},
			nil,
			model.ResultFailure,
			[]string{"execute t/1", "execute t/2", "execute t/3", "rollback t/2", "rollback t/1"},
			[]string{"Completed/Success", "RolledBack/Success", "Completed/Failure"},
		},
		{
			"first step fails",
			[]model.StepDefinition{scripted(1, map[string]string{"execute": "fail"}), scripted(2, nil)},
			nil,
			model.ResultFailure,
			[]string{"execute t/1"},
			[]string{"Completed/Failure", "Pending/Unset"},
		},
		{
			"step reports failure without an error",
			[]model.StepDefinition{scripted(1, nil), scripted(2, map[string]string{"execute": "report-failure"})},
			nil,
			model.ResultFailure,
			[]string{"execute t/1", "execute t/2", "rollback t/1"},
			[]string{"RolledBack/Success", "Completed/Failure"},
		},
		{
			"step panics",
			[]model.StepDefinition{scripted(1, nil), scripted(2, map[string]string{"execute": "panic"})},
			nil,
			model.ResultFailure,
			[]string{"execute t/1", "execute t/2", "rollback t/1"},
			[]string{"RolledBack/Success", "Completed/Failure"},
		},
		{
			"compensation panics",
			[]model.StepDefinition{scripted(1, nil), scripted(2, map[string]string{"rollback": "panic"}), scripted(3, map[string]string{"execute": "fail"})},
			nil,
			model.ResultFailure,
			[]string{"execute t/1", "execute t/2", "execute t/3", "rollback t/2", "rollback t/1"},
			[]string{"RolledBack/Success", "Completed/Success", "Completed/Failure"},
		},
		{
			"initialization fails",
			[]model.StepDefinition{scripted(1, nil), scripted(2, map[string]string{"init": "fail"}), scripted(3, nil)},
			nil,
			model.ResultFailure,
			[]string{"execute t/1", "rollback t/1"},
			[]string{"RolledBack/Success", "Completed/Failure", "Pending/Unset"},
		},
		{
			"dry run",
			[]model.StepDefinition{scripted(1, nil), scripted(2, nil)},
			func(r *model.Requisition) { r.DryRun = true },
			model.ResultSuccess,
			[]string{"simulate t/1", "simulate t/2"},
			[]string{"Completed/Success", "Completed/Success"},
		},
		{
			"forced failure",
			[]model.StepDefinition{scripted(1, nil), scripted(2, nil), scripted(3, nil)},
			func(r *model.Requisition) { r.ForceFailStep = 2 },
			model.ResultFailure,
			[]string{"execute t/1", "force-fail t/2", "rollback t/1"},
			[]string{"RolledBack/Success", "Completed/Failure", "Pending/Unset"},
		},
		{
			"definition modes",
			[]model.StepDefinition{
				func() model.StepDefinition { d := scripted(1, nil); d.Mode = model.StepModeSimulate; return d }(),
				func() model.StepDefinition { d := scripted(2, nil); d.Mode = model.StepModeFail; return d }(),
			},
			nil,
			model.ResultFailure,
			[]string{"simulate t/1", "force-fail t/2", "rollback t/1"},
			[]string{"RolledBack/Success", "Completed/Failure"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			h := newHarness(t, tc.steps...)
			requisition := validRequisition()
			if tc.requisition != nil {
				tc.requisition(requisition)
			}
			h.create("t", requisition)

			err := h.runner(nil).Run(context.Background(), "t", time.Now())
			require.NoError(t, err)

			transaction := h.load("t")
			assert.Equal(t, model.TransactionStatusCompleted, transaction.Status)
			assert.Equal(t, tc.expectedResult, transaction.Result)
			assert.Equal(t, tc.expectedJournal, h.journal.Entries())
			assert.Equal(t, tc.expectedStates, stepStates(transaction))
			assert.NotZero(t, transaction.StartAt)
			assert.NotZero(t, transaction.CompleteAt)
			assert.GreaterOrEqual(t, transaction.ActualDuration, int64(0))
			assert.Empty(t, transaction.LockedBy)
		})
	}
}

func TestStepRunnerRecordsErrors(t *testing.T) {
	h := newHarness(t,
		scripted(1, map[string]string{"rollback": "fail"}),
		scripted(2, map[string]string{"init": "fail"}),
	)
	h.create("t", validRequisition())

	require.NoError(t, h.runner(nil).Run(context.Background(), "t", time.Now()))

	transaction := h.load("t")
	assert.Equal(t, "compensation refused", transaction.Step(1).RollbackError)
	assert.Empty(t, transaction.Step(1).Error)
	assert.Contains(t, transaction.Step(2).Error, "failed to initialize step 2")
	assert.Contains(t, transaction.Step(2).Error, "missing credentials")
}

func TestStepRunnerResultProperties(t *testing.T) {
	h := newHarness(t, scripted(1, nil), scripted(2, nil))
	h.create("t", validRequisition())

	require.NoError(t, h.runner(nil).Run(context.Background(), "t", time.Now()))

	transaction := h.load("t")
	value, ok := transaction.Step(1).Property("step1")
	assert.True(t, ok)
	assert.Equal(t, "done", value)

	seen, ok := transaction.Step(2).Property("seen")
	assert.True(t, ok, "later steps see earlier results")
	assert.Equal(t, "done", seen)
}

func TestStepRunnerCompletedIsTerminal(t *testing.T) {
	h := newHarness(t, scripted(1, nil), scripted(2, nil))
	h.create("t", validRequisition())
	runner := h.runner(nil)

	require.NoError(t, runner.Run(context.Background(), "t", time.Now()))
	first := h.load("t")

	require.NoError(t, runner.Run(context.Background(), "t", time.Now()))
	second := h.load("t")

	assert.Equal(t, first, second)
	assert.Len(t, h.journal.Entries(), 2)
}

func TestStepRunnerSkipsTransactionsLockedElsewhere(t *testing.T) {
	h := newHarness(t, scripted(1, nil))
	h.create("t", validRequisition())

	locked, err := h.store.TryLockTransaction("t", "someone-else", 0)
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, h.runner(nil).Run(context.Background(), "t", time.Now()))

	transaction := h.load("t")
	assert.Equal(t, model.TransactionStatusPending, transaction.Status)
	assert.Equal(t, "someone-else", transaction.LockedBy)
	assert.Empty(t, h.journal.Entries())
}

func TestStepRunnerMissingTransaction(t *testing.T) {
	h := newHarness(t, scripted(1, nil))

	err := h.runner(nil).Run(context.Background(), "missing", time.Now())
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
}

func TestStepRunnerStoreFailure(t *testing.T) {
	h := newHarness(t, scripted(1, nil), scripted(2, nil), scripted(3, nil))
	h.create("t", validRequisition())

	// The write after step 1 goes through, the one after step 2 fails.
	broken := &failingStore{MemoryStore: h.store, failAfter: 1}
	err := h.runner(broken).Run(context.Background(), "t", time.Now())
	require.Error(t, err)
	assert.True(t, IsStoreError(err))

	transaction := h.load("t")
	assert.Equal(t, model.TransactionStatusPending, transaction.Status)
	assert.Equal(t, []string{"Completed/Success", "Pending/Unset", "Pending/Unset"}, stepStates(transaction))
	assert.Empty(t, transaction.LockedBy, "the lease is released when a pass aborts")
	assert.Equal(t, []string{"execute t/1", "execute t/2", "rollback t/2", "rollback t/1"}, h.journal.Entries(),
		"the steps of the aborted pass are compensated, including the unrecorded one")

	t.Run("next pass fails the interrupted step and compensates what was recorded", func(t *testing.T) {
		require.NoError(t, h.runner(nil).Run(context.Background(), "t", time.Now()))

		transaction := h.load("t")
		assert.Equal(t, model.TransactionStatusCompleted, transaction.Status)
		assert.Equal(t, model.ResultFailure, transaction.Result)
		assert.Equal(t, []string{"RolledBack/Success", "Completed/Failure", "Pending/Unset"}, stepStates(transaction))
		assert.Contains(t, transaction.Steps[1].Error, "interrupted")
		assert.Equal(t, []string{"execute t/1", "execute t/2", "rollback t/2", "rollback t/1", "rollback t/1"}, h.journal.Entries())
	})
}

func TestStepRunnerStoreFailureAfterLastStep(t *testing.T) {
	h := newHarness(t, scripted(1, nil), scripted(2, nil), scripted(3, nil))
	h.create("t", validRequisition())

	// Every step is recorded; only the terminal write fails.
	broken := &failingStore{MemoryStore: h.store, failAfter: 3}
	err := h.runner(broken).Run(context.Background(), "t", time.Now())
	require.Error(t, err)
	assert.True(t, IsStoreError(err))

	transaction := h.load("t")
	assert.Equal(t, model.TransactionStatusPending, transaction.Status)
	assert.Equal(t, []string{"Completed/Success", "Completed/Success", "Completed/Success"}, stepStates(transaction))

	t.Run("next pass completes the transaction as success", func(t *testing.T) {
		require.NoError(t, h.runner(nil).Run(context.Background(), "t", time.Now()))

		transaction := h.load("t")
		assert.Equal(t, model.TransactionStatusCompleted, transaction.Status)
		assert.Equal(t, model.ResultSuccess, transaction.Result)
		assert.Equal(t, []string{"Completed/Success", "Completed/Success", "Completed/Success"}, stepStates(transaction))
		assert.Equal(t, []string{"execute t/1", "execute t/2", "execute t/3"}, h.journal.Entries())
	})
}

func TestStepRunnerCancellation(t *testing.T) {
	h := newHarness(t, scripted(1, nil), scripted(2, map[string]string{"execute": "block"}), scripted(3, nil))
	h.create("t", validRequisition())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- h.runner(nil).Run(ctx, "t", time.Now())
	}()

	select {
	case <-h.started:
	case <-time.After(5 * time.Second):
		t.Fatal("step 2 never started")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}

	transaction := h.load("t")
	assert.Equal(t, model.TransactionStatusCompleted, transaction.Status)
	assert.Equal(t, model.ResultFailure, transaction.Result)
	assert.Equal(t, []string{"execute t/1", "execute t/2", "rollback t/2", "rollback t/1"}, h.journal.Entries())
	assert.Equal(t, []string{"RolledBack/Success", "RolledBack/Success", "Completed/Failure"}, stepStates(transaction))
	assert.Contains(t, transaction.Steps[2].Error, "canceled")
}

func TestStepRunnerCanceledBeforeStart(t *testing.T) {
	h := newHarness(t, scripted(1, nil), scripted(2, nil))
	h.create("t", validRequisition())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.runner(nil).Run(ctx, "t", time.Now()))

	transaction := h.load("t")
	assert.Equal(t, model.ResultFailure, transaction.Result)
	assert.Equal(t, []string{"Completed/Failure", "Pending/Unset"}, stepStates(transaction))
	assert.Contains(t, transaction.Steps[0].Error, "canceled")
	assert.Empty(t, h.journal.Entries())
}

func TestStepRunnerFallsBackToRecordedDefinition(t *testing.T) {
	h := newHarness(t, scripted(1, nil), scripted(2, nil))
	h.create("t", validRequisition())

	// The catalog loses step 2 after the Transaction was created.
	require.NoError(t, h.registry.RegisterKind(model.Kind{Name: model.KindCustomRole, Steps: []model.StepDefinition{scripted(1, nil)}}))

	require.NoError(t, h.runner(nil).Run(context.Background(), "t", time.Now()))

	transaction := h.load("t")
	assert.Equal(t, model.ResultSuccess, transaction.Result)
	assert.Equal(t, []string{"execute t/1", "execute t/2"}, h.journal.Entries())
}
