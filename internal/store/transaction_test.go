package store

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/internal/testlib"
	"github.com/mattermost/awsprov/model"
)

// makeSQLStore connects to the Postgres database named by
// AWSPROV_TEST_DATABASE and migrates it, or skips the test.
func makeSQLStore(t *testing.T) *SQLStore {
	dsn := os.Getenv("AWSPROV_TEST_DATABASE")
	if dsn == "" {
		t.Skip("set AWSPROV_TEST_DATABASE to run the SQL store tests")
	}

	sqlStore, err := New(dsn, testlib.MakeLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	require.NoError(t, sqlStore.Migrate())

	return sqlStore
}

func TestSQLStoreMigrate(t *testing.T) {
	sqlStore := makeSQLStore(t)

	version, err := sqlStore.GetCurrentVersion()
	require.NoError(t, err)
	assert.True(t, version.EQ(LatestVersion()))

	require.NoError(t, sqlStore.Migrate(), "migrating twice is a no-op")
}

func TestSQLStoreTransactions(t *testing.T) {
	sqlStore := makeSQLStore(t)
	id := "custom-role-" + model.NewID()

	missing, err := sqlStore.GetTransaction(id)
	require.NoError(t, err)
	assert.Nil(t, missing)

	transaction := newPendingTransaction(id, model.GetMillis())
	transaction.AnticipatedDuration = 1500
	transaction.Steps[0].ImplementationKey = "iam-create-role"
	require.NoError(t, sqlStore.CreateTransaction(transaction))
	assert.EqualValues(t, 1, transaction.Version)

	got, err := sqlStore.GetTransaction(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, transaction.Requisition, got.Requisition)
	assert.EqualValues(t, 1500, got.AnticipatedDuration)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "iam-create-role", got.Steps[0].ImplementationKey)

	stale, err := sqlStore.GetTransaction(id)
	require.NoError(t, err)

	got.Steps[0].Status = model.StepStatusCompleted
	got.Steps[0].Result = model.ResultSuccess
	got.Steps[0].ResultProperties = []model.ResultProperty{model.NewResultProperty("roleArn", "arn:aws:iam::123456789012:role/deployer")}
	require.NoError(t, sqlStore.UpdateTransaction(got))
	assert.EqualValues(t, 2, got.Version)

	stale.Status = model.TransactionStatusCompleted
	err = sqlStore.UpdateTransaction(stale)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	reloaded, err := sqlStore.GetTransaction(id)
	require.NoError(t, err)
	value, ok := reloaded.Steps[0].Property("roleArn")
	assert.True(t, ok)
	assert.Equal(t, "arn:aws:iam::123456789012:role/deployer", value)

	reloaded.Status = model.TransactionStatusCompleted
	reloaded.Result = model.ResultSuccess
	require.NoError(t, sqlStore.UpdateTransaction(reloaded))

	err = sqlStore.UpdateTransaction(reloaded)
	assert.True(t, errors.Is(err, ErrTransactionCompleted))

	missing = newPendingTransaction("custom-role-"+model.NewID(), 0)
	missing.Version = 1
	err = sqlStore.UpdateTransaction(missing)
	assert.True(t, errors.Is(err, ErrTransactionNotFound))

	completed, err := sqlStore.GetTransactions(&model.TransactionFilter{
		Status:  model.TransactionStatusCompleted,
		Kind:    model.KindCustomRole,
		PerPage: model.AllPerPage,
	})
	require.NoError(t, err)
	found := false
	for _, c := range completed {
		found = found || c.ID == id
	}
	assert.True(t, found)
}

func TestSQLStoreLocking(t *testing.T) {
	sqlStore := makeSQLStore(t)
	id := "custom-role-" + model.NewID()
	require.NoError(t, sqlStore.CreateTransaction(newPendingTransaction(id, 10)))

	orphaned := func() bool {
		orphans, err := sqlStore.GetOrphanedTransactions(model.GetMillis(), 100)
		require.NoError(t, err)
		for _, o := range orphans {
			if o.ID == id {
				return true
			}
		}
		return false
	}
	assert.True(t, orphaned())

	locked, err := sqlStore.TryLockTransaction(id, "runner-a", 0)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.False(t, orphaned())

	locked, err = sqlStore.TryLockTransaction(id, "runner-b", 0)
	require.NoError(t, err)
	assert.False(t, locked, "the lease of runner-a is still valid")

	locked, err = sqlStore.TryLockTransaction(id, "runner-b", model.GetMillis()+1000)
	require.NoError(t, err)
	assert.True(t, locked, "an expired lease can be taken over")

	require.NoError(t, sqlStore.UnlockTransaction(id, "runner-a"))
	got, err := sqlStore.GetTransaction(id)
	require.NoError(t, err)
	assert.Equal(t, "runner-b", got.LockedBy)

	require.NoError(t, sqlStore.UnlockTransaction(id, "runner-b"))
	assert.True(t, orphaned())
}

func TestSQLStoreSequence(t *testing.T) {
	sqlStore := makeSQLStore(t)

	first, err := sqlStore.Next()
	require.NoError(t, err)
	second, err := sqlStore.Next()
	require.NoError(t, err)
	assert.Greater(t, second, first)
}
