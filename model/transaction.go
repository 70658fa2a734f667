// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package model

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// TransactionStatus is the lifecycle status of a Transaction.
type TransactionStatus string

// Result is the outcome of a Transaction or of a single step.
type Result string

// StepStatus is the lifecycle status of a single step of a Transaction.
type StepStatus string

// The literal values below are part of the API and of the database
// schema and must not be renamed.
const (
	TransactionStatusPending   TransactionStatus = "Pending"
	TransactionStatusCompleted TransactionStatus = "Completed"

	ResultUnset   Result = "Unset"
	ResultSuccess Result = "Success"
	ResultFailure Result = "Failure"

	StepStatusPending    StepStatus = "Pending"
	StepStatusCompleted  StepStatus = "Completed"
	StepStatusRolledBack StepStatus = "RolledBack"
)

// Transaction represents one provisioning or deprovisioning request
// and the full history of the steps executed on its behalf.
type Transaction struct {
	ID                  string
	Kind                string
	Requisition         Requisition
	Status              TransactionStatus
	Result              Result
	AnticipatedDuration int64
	ActualDuration      int64
	CreateAt            int64
	StartAt             int64
	CompleteAt          int64
	LockedBy            string
	LockAcquiredAt      int64
	Version             int64
	Steps               []*StepRecord
}

// StepRecord is the persisted state of one step of a Transaction.
type StepRecord struct {
	StepID              int
	Type                string
	Description         string
	ImplementationKey   string
	AnticipatedDuration int64
	Status              StepStatus
	Result              Result
	ResultProperties    []ResultProperty
	Error               string
	RollbackError       string
	CompleteAt          int64
}

// ResultProperty is a single named fact produced by a step, such as
// the ARN of a role it created.
type ResultProperty struct {
	Key   string
	Value string
}

// NewResultProperty is a shorthand for building a ResultProperty.
func NewResultProperty(key, value string) ResultProperty {
	return ResultProperty{Key: key, Value: value}
}

// IsCompleted reports whether the Transaction reached its terminal
// status.
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// Step returns the StepRecord with the given ID or nil.
func (t *Transaction) Step(stepID int) *StepRecord {
	for _, s := range t.Steps {
		if s.StepID == stepID {
			return s
		}
	}
	return nil
}

// Progressed reports whether any step left the Pending status, which
// means external side effects may have been applied.
func (t *Transaction) Progressed() bool {
	for _, s := range t.Steps {
		if s.Status != StepStatusPending {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the Transaction. Records are copied
// every time they cross the store boundary so that no two runners or
// callers ever share mutable state.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.Requisition = t.Requisition.Clone()
	c.Steps = make([]*StepRecord, 0, len(t.Steps))
	for _, s := range t.Steps {
		c.Steps = append(c.Steps, s.Clone())
	}
	return &c
}

// Clone returns a deep copy of the StepRecord.
func (s *StepRecord) Clone() *StepRecord {
	if s == nil {
		return nil
	}
	c := *s
	if s.ResultProperties != nil {
		c.ResultProperties = make([]ResultProperty, len(s.ResultProperties))
		copy(c.ResultProperties, s.ResultProperties)
	}
	return &c
}

// Property returns the value recorded under key by this step.
func (s *StepRecord) Property(key string) (string, bool) {
	for _, p := range s.ResultProperties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// TransactionFilter describes the parameters used to list
// Transactions.
type TransactionFilter struct {
	Status  TransactionStatus
	Kind    string
	Page    int
	PerPage int
}

// AllPerPage signals that paging should be disabled.
const AllPerPage = -1

// NewTransactionFromReader creates a Transaction from a Reader
func NewTransactionFromReader(reader io.Reader) (*Transaction, error) {
	var transaction Transaction
	err := json.NewDecoder(reader).Decode(&transaction)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode transaction")
	}
	return &transaction, nil
}

// NewTransactionListFromReader creates a list of Transactions from a
// Reader
func NewTransactionListFromReader(reader io.Reader) ([]*Transaction, error) {
	var transactions []*Transaction
	err := json.NewDecoder(reader).Decode(&transactions)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode transaction list")
	}
	return transactions, nil
}
