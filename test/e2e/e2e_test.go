// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

//go:build e2e
// +build e2e

package e2e

/*
   The following line makes this package work with LSP in Emacs

	 (setq lsp-go-build-flags ["-tags=e2e"])

   To make this file work properly with LSP in VSCode, set the following in settings.json:
	 "gopls.env": {
				"GOFLAGS": "-tags=e2e"
		},
*/

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattermost/awsprov/model"
)

const readOnlyPolicy = "arn:aws:iam::aws:policy/ReadOnlyAccess"

type environment struct {
	client    *model.Client
	accountID string
	bucket    string
	iam       *iam.Client
	s3        *s3.Client
}

func TestCustomRoleLifecycle(t *testing.T) {
	env := setupEnvironment(t)
	roleName := fmt.Sprintf("awsprov-e2e-%s", model.NewID()[:8])

	t.Logf("provision role %s", roleName)
	created := runAndWait(t, env, &model.Requisition{
		AccountID:  env.accountID,
		RoleName:   roleName,
		Action:     model.ActionCreate,
		PolicyARNs: []string{readOnlyPolicy},
		Requester:  "awsprov-e2e",
	})
	t.Cleanup(func() { deleteRoleQuietly(env, roleName) })
	require.Equal(t, model.ResultSuccess, created.Result)
	for _, step := range created.Steps {
		assert.Equal(t, model.StepStatusCompleted, step.Status, step.Type)
	}

	exists, err := roleExists(env, roleName)
	require.NoError(t, err)
	assert.True(t, exists)

	key, ok := created.Steps[3].Property("manifestKey")
	require.True(t, ok)
	assert.True(t, objectExists(t, env, key))

	t.Logf("deprovision role %s", roleName)
	deleted := runAndWait(t, env, &model.Requisition{
		AccountID: env.accountID,
		RoleName:  roleName,
		Action:    model.ActionDelete,
		Requester: "awsprov-e2e",
	})
	require.Equal(t, model.ResultSuccess, deleted.Result)

	exists, err = roleExists(env, roleName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCustomRoleRollback(t *testing.T) {
	env := setupEnvironment(t)
	roleName := fmt.Sprintf("awsprov-e2e-%s", model.NewID()[:8])

	t.Logf("provision role %s and fail on the last step", roleName)
	transaction := runAndWait(t, env, &model.Requisition{
		AccountID:     env.accountID,
		RoleName:      roleName,
		Action:        model.ActionCreate,
		PolicyARNs:    []string{readOnlyPolicy},
		Requester:     "awsprov-e2e",
		ForceFailStep: 5,
	})
	t.Cleanup(func() { deleteRoleQuietly(env, roleName) })

	require.Equal(t, model.ResultFailure, transaction.Result)
	for _, step := range transaction.Steps[:4] {
		assert.Equal(t, model.StepStatusRolledBack, step.Status, step.Type)
		assert.Empty(t, step.RollbackError, step.Type)
	}
	assert.Equal(t, model.ResultFailure, transaction.Steps[4].Result)

	exists, err := roleExists(env, roleName)
	require.NoError(t, err)
	assert.False(t, exists, "the role must have been rolled back")

	key, ok := transaction.Steps[3].Property("manifestKey")
	require.True(t, ok)
	assert.False(t, objectExists(t, env, key))
}

func TestDryRun(t *testing.T) {
	env := setupEnvironment(t)
	roleName := fmt.Sprintf("awsprov-e2e-%s", model.NewID()[:8])

	transaction := runAndWait(t, env, &model.Requisition{
		AccountID: env.accountID,
		RoleName:  roleName,
		Action:    model.ActionCreate,
		DryRun:    true,
	})
	require.Equal(t, model.ResultSuccess, transaction.Result)

	exists, err := roleExists(env, roleName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func setupEnvironment(t *testing.T) *environment {
	t.Log("validate the environment and gather variables")

	env, err := validatedEnvironment()
	require.NoError(t, err)

	return env
}

func runAndWait(t *testing.T, env *environment, requisition *model.Requisition) *model.Transaction {
	transaction, err := env.client.CreateTransaction(requisition)
	require.NoError(t, err)
	require.Equal(t, model.TransactionStatusPending, transaction.Status)

	t.Logf("wait for transaction %s to complete", transaction.ID)

	retryFor(time.Minute*5, func() bool {
		transaction, err = env.client.GetTransaction(transaction.ID)
		require.NoError(t, err)
		require.NotNil(t, transaction)
		return transaction.IsCompleted()
	})
	require.Equal(t, model.TransactionStatusCompleted, transaction.Status)

	return transaction
}

// if the doer returns true, consider it done, and stop retrying
func retryFor(d time.Duration, doer func() bool) {
	for i := float64(0); i < d.Seconds(); i++ {
		if doer() {
			break
		}
		time.Sleep(time.Second)
	}
}

func roleExists(env *environment, roleName string) (bool, error) {
	ctx, cancelFunc := context.WithTimeout(context.Background(), time.Second*10)
	defer cancelFunc()

	_, err := env.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: &roleName})
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchEntity" {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func objectExists(t *testing.T, env *environment, key string) bool {
	ctx, cancelFunc := context.WithTimeout(context.Background(), time.Second*10)
	defer cancelFunc()

	_, err := env.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &env.bucket, Key: &key})
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false
	}
	require.NoError(t, err)

	return true
}

// deleteRoleQuietly is a best-effort cleanup of roles left behind by
// interrupted runs.
func deleteRoleQuietly(env *environment, roleName string) {
	ctx, cancelFunc := context.WithTimeout(context.Background(), time.Second*30)
	defer cancelFunc()

	policies, err := env.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{RoleName: &roleName})
	if err != nil {
		return
	}
	for _, policy := range policies.AttachedPolicies {
		_, _ = env.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{RoleName: &roleName, PolicyArn: policy.PolicyArn})
	}
	_, _ = env.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: &roleName})
}

func validatedEnvironment() (*environment, error) {
	bucket := os.Getenv("AWSPROV_E2E_BUCKET")
	if bucket == "" {
		return nil, errors.New("provided bucket name must not be empty; set AWSPROV_E2E_BUCKET")
	}

	server := os.Getenv("AWSPROV_E2E_URL")
	if server == "" {
		return nil, errors.New("provided awsprov URL must not be empty; set AWSPROV_E2E_URL")
	}

	accountID := os.Getenv("AWSPROV_E2E_ACCOUNT")
	if accountID == "" {
		return nil, errors.New("provided AWS account must not be empty; set AWSPROV_E2E_ACCOUNT")
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, err
	}

	return &environment{
		client:    model.NewClient(server),
		accountID: accountID,
		bucket:    bucket,
		iam:       iam.NewFromConfig(cfg),
		s3:        s3.NewFromConfig(cfg),
	}, nil
}
