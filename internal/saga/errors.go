// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package saga

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTransactionNotFound is returned when a Transaction does not
	// exist in the store.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrUnknownKind is returned when no step definitions exist for a
	// transaction kind.
	ErrUnknownKind = errors.New("unknown transaction kind")
)

// ValidationError reports a malformed requisition. It is returned
// synchronously by Generate before anything is persisted.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid requisition: %s", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
func (e *ValidationError) Cause() error  { return e.Err }

// InitializationError reports a step that could not acquire its
// configuration or dependencies.
type InitializationError struct {
	StepID int
	Err    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("failed to initialize step %d: %s", e.StepID, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
func (e *InitializationError) Cause() error  { return e.Err }

// ExecutionError reports a step whose external action failed.
type ExecutionError struct {
	StepID int
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("step %d failed: %s", e.StepID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
func (e *ExecutionError) Cause() error  { return e.Err }

// RollbackError reports a compensating action that failed. It never
// aborts the rollback of sibling steps.
type RollbackError struct {
	StepID int
	Err    error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("failed to roll back step %d: %s", e.StepID, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }
func (e *RollbackError) Cause() error  { return e.Err }

// StoreError reports a persistence failure while reading or writing a
// Transaction.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
func (e *StoreError) Cause() error  { return e.Err }

// IsValidationError reports whether err is, or wraps, a
// ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsStoreError reports whether err is, or wraps, a StoreError.
func IsStoreError(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}
