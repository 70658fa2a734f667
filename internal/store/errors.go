package store

import "github.com/pkg/errors"

var (
	// ErrVersionConflict is returned when a Transaction was modified
	// since it was read.
	ErrVersionConflict = errors.New("transaction was modified concurrently")

	// ErrTransactionCompleted is returned when writing to a Transaction
	// that already reached its terminal status.
	ErrTransactionCompleted = errors.New("transaction is already completed")

	// ErrTransactionNotFound is returned when writing to a Transaction
	// that does not exist.
	ErrTransactionNotFound = errors.New("transaction does not exist")
)
