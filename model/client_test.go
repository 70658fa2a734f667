// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package model_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/internal/api"
	mock_api "github.com/mattermost/awsprov/internal/mocks/api"
	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/internal/testlib"
	"github.com/mattermost/awsprov/model"
)

func TestTransactionClient(t *testing.T) {
	logger := testlib.MakeLogger(t)
	mockController := gomock.NewController(t)
	orchestrator := mock_api.NewMockOrchestrator(mockController)
	router := mux.NewRouter()
	api.Register(
		router,
		&api.Context{
			Orchestrator: orchestrator,
			Logger:       logger,
		})
	ts := httptest.NewServer(router)
	defer ts.Close()

	client := model.NewClient(ts.URL)

	requisition := &model.Requisition{
		AccountID:  "123456789012",
		RoleName:   "deployer",
		Action:     model.ActionCreate,
		PolicyARNs: []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"},
	}

	t.Run("create a transaction", func(t *testing.T) {
		orchestrator.EXPECT().
			Generate(gomock.Any(), requisition).
			Return(&model.Transaction{
				ID:          "custom-role-1",
				Kind:        model.KindCustomRole,
				Requisition: *requisition,
				Status:      model.TransactionStatusPending,
				Result:      model.ResultUnset,
			}, nil).
			Times(1)

		transaction, err := client.CreateTransaction(requisition)
		require.NoError(t, err)
		assert.Equal(t, "custom-role-1", transaction.ID)
		assert.Equal(t, requisition.PolicyARNs, transaction.Requisition.PolicyARNs)
	})

	t.Run("create is rejected", func(t *testing.T) {
		orchestrator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			Return(nil, &saga.ValidationError{Err: errors.New("role name is not a valid IAM role name")}).
			Times(1)

		transaction, err := client.CreateTransaction(requisition)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
		assert.Nil(t, transaction)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		orchestrator.EXPECT().
			Query("bogusID").
			Return(nil, saga.ErrTransactionNotFound).
			Times(1)

		transaction, err := client.GetTransaction("bogusID")
		assert.NoError(t, err)
		assert.Nil(t, transaction)
	})

	t.Run("fetch a transaction successfully", func(t *testing.T) {
		orchestrator.EXPECT().
			Query("custom-role-1").
			Return(&model.Transaction{ID: "custom-role-1", Status: model.TransactionStatusCompleted, Result: model.ResultSuccess}, nil).
			Times(1)

		transaction, err := client.GetTransaction("custom-role-1")
		require.NoError(t, err)
		assert.Equal(t, model.ResultSuccess, transaction.Result)
	})

	t.Run("fetch a transaction with a db error", func(t *testing.T) {
		orchestrator.EXPECT().
			Query("custom-role-2").
			Return(nil, &saga.StoreError{Op: "query transaction", Err: errors.New("problem talking to database")}).
			Times(1)

		transaction, err := client.GetTransaction("custom-role-2")
		assert.Error(t, err)
		assert.Nil(t, transaction)
	})

	t.Run("list transactions", func(t *testing.T) {
		filter := &model.TransactionFilter{Status: model.TransactionStatusCompleted, Page: 1, PerPage: 5}
		orchestrator.EXPECT().
			List(filter).
			Return([]*model.Transaction{{ID: "custom-role-1"}, {ID: "custom-role-2"}}, nil).
			Times(1)

		transactions, err := client.GetTransactions(filter)
		require.NoError(t, err)
		require.Len(t, transactions, 2)
		assert.Equal(t, "custom-role-2", transactions[1].ID)
	})

	t.Run("list kinds", func(t *testing.T) {
		orchestrator.EXPECT().
			Kinds().
			Return([]*model.Kind{{Name: model.KindCustomRole}, {Name: model.KindCustomRoleDelete}}).
			Times(1)

		kinds, err := client.GetKinds()
		require.NoError(t, err)
		require.Len(t, kinds, 2)
		assert.Equal(t, model.KindCustomRoleDelete, kinds[1].Name)
	})
}
