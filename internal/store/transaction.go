package store

import (
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/mattermost/awsprov/model"
)

const (
	TransactionTableName = "TransactionRecord"
	StepTableName        = "StepRecord"
)

var transactionSelect sq.SelectBuilder
var stepSelect sq.SelectBuilder

func init() {
	transactionSelect = sq.
		Select(
			"ID",
			"Kind",
			"Requisition",
			"Status",
			"Result",
			"AnticipatedDuration",
			"ActualDuration",
			"CreateAt",
			"StartAt",
			"CompleteAt",
			"LockedBy",
			"LockAcquiredAt",
			"Version",
		).
		From(TransactionTableName)

	stepSelect = sq.
		Select(
			"TransactionID",
			"StepID",
			"Type",
			"Description",
			"ImplementationKey",
			"AnticipatedDuration",
			"Status",
			"Result",
			"ResultProperties",
			"Error",
			"RollbackError",
			"CompleteAt",
		).
		From(StepTableName).
		OrderBy("StepID ASC")
}

type transactionRow struct {
	ID                  string
	Kind                string
	Requisition         []byte
	Status              string
	Result              string
	AnticipatedDuration int64
	ActualDuration      int64
	CreateAt            int64
	StartAt             int64
	CompleteAt          int64
	LockedBy            string
	LockAcquiredAt      int64
	Version             int64
}

type stepRow struct {
	TransactionID       string
	StepID              int
	Type                string
	Description         string
	ImplementationKey   string
	AnticipatedDuration int64
	Status              string
	Result              string
	ResultProperties    []byte
	Error               string
	RollbackError       string
	CompleteAt          int64
}

func (r *transactionRow) toModel(steps []stepRow) (*model.Transaction, error) {
	transaction := &model.Transaction{
		ID:                  r.ID,
		Kind:                r.Kind,
		Status:              model.TransactionStatus(r.Status),
		Result:              model.Result(r.Result),
		AnticipatedDuration: r.AnticipatedDuration,
		ActualDuration:      r.ActualDuration,
		CreateAt:            r.CreateAt,
		StartAt:             r.StartAt,
		CompleteAt:          r.CompleteAt,
		LockedBy:            r.LockedBy,
		LockAcquiredAt:      r.LockAcquiredAt,
		Version:             r.Version,
	}
	if len(r.Requisition) > 0 {
		err := json.Unmarshal(r.Requisition, &transaction.Requisition)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode requisition of transaction %s", r.ID)
		}
	}

	for _, s := range steps {
		step := &model.StepRecord{
			StepID:              s.StepID,
			Type:                s.Type,
			Description:         s.Description,
			ImplementationKey:   s.ImplementationKey,
			AnticipatedDuration: s.AnticipatedDuration,
			Status:              model.StepStatus(s.Status),
			Result:              model.Result(s.Result),
			Error:               s.Error,
			RollbackError:       s.RollbackError,
			CompleteAt:          s.CompleteAt,
		}
		if len(s.ResultProperties) > 0 {
			err := json.Unmarshal(s.ResultProperties, &step.ResultProperties)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to decode result properties of step %d of transaction %s", s.StepID, r.ID)
			}
		}
		transaction.Steps = append(transaction.Steps, step)
	}

	return transaction, nil
}

// GetTransaction fetches a Transaction and its steps. It returns nil
// without an error if no such Transaction exists.
func (sqlStore *SQLStore) GetTransaction(id string) (*model.Transaction, error) {
	var row transactionRow
	err := sqlStore.getBuilder(sqlStore.db, &row, transactionSelect.Where(sq.Eq{"ID": id}))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction by id")
	}

	var steps []stepRow
	err = sqlStore.selectBuilder(sqlStore.db, &steps, stepSelect.Where(sq.Eq{"TransactionID": id}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction steps")
	}

	return row.toModel(steps)
}

// GetTransactions fetches a page of Transactions matching filter,
// oldest first.
func (sqlStore *SQLStore) GetTransactions(filter *model.TransactionFilter) ([]*model.Transaction, error) {
	builder := transactionSelect.OrderBy("CreateAt ASC", "ID ASC")
	if filter != nil {
		if filter.Status != "" {
			builder = builder.Where(sq.Eq{"Status": string(filter.Status)})
		}
		if filter.Kind != "" {
			builder = builder.Where(sq.Eq{"Kind": filter.Kind})
		}
		if filter.PerPage != model.AllPerPage && filter.PerPage > 0 {
			builder = builder.
				Limit(uint64(filter.PerPage)).
				Offset(uint64(filter.Page * filter.PerPage))
		}
	}

	return sqlStore.getTransactions(builder)
}

// GetOrphanedTransactions fetches Pending Transactions created before
// createdBefore whose lease is free or was last refreshed before
// lockExpiredBefore.
func (sqlStore *SQLStore) GetOrphanedTransactions(createdBefore, lockExpiredBefore int64) ([]*model.Transaction, error) {
	return sqlStore.getTransactions(transactionSelect.
		Where(sq.Eq{"Status": string(model.TransactionStatusPending)}).
		Where(sq.Lt{"CreateAt": createdBefore}).
		Where(sq.Or{
			sq.Eq{"LockedBy": ""},
			sq.Lt{"LockAcquiredAt": lockExpiredBefore},
		}).
		OrderBy("CreateAt ASC"),
	)
}

func (sqlStore *SQLStore) getTransactions(builder sq.SelectBuilder) ([]*model.Transaction, error) {
	var rows []transactionRow
	err := sqlStore.selectBuilder(sqlStore.db, &rows, builder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query for transactions")
	}
	if len(rows) == 0 {
		return []*model.Transaction{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var steps []stepRow
	err = sqlStore.selectBuilder(sqlStore.db, &steps, stepSelect.Where(sq.Eq{"TransactionID": ids}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query for transaction steps")
	}
	stepsByTransaction := make(map[string][]stepRow, len(rows))
	for _, s := range steps {
		stepsByTransaction[s.TransactionID] = append(stepsByTransaction[s.TransactionID], s)
	}

	transactions := make([]*model.Transaction, 0, len(rows))
	for i := range rows {
		transaction, err := rows[i].toModel(stepsByTransaction[rows[i].ID])
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}

	return transactions, nil
}

// CreateTransaction stores a new Transaction and its steps. On
// success the Version of the argument is set to 1.
func (sqlStore *SQLStore) CreateTransaction(transaction *model.Transaction) error {
	requisition, err := json.Marshal(transaction.Requisition)
	if err != nil {
		return errors.Wrap(err, "failed to encode requisition")
	}

	tx, err := sqlStore.beginTransaction(sqlStore.db)
	if err != nil {
		return err
	}
	defer tx.RollbackUnlessCommitted()

	_, err = sqlStore.execBuilder(tx, sq.
		Insert(TransactionTableName).
		SetMap(map[string]interface{}{
			"ID":                  transaction.ID,
			"Kind":                transaction.Kind,
			"Requisition":         requisition,
			"Status":              string(transaction.Status),
			"Result":              string(transaction.Result),
			"AnticipatedDuration": transaction.AnticipatedDuration,
			"ActualDuration":      transaction.ActualDuration,
			"CreateAt":            transaction.CreateAt,
			"StartAt":             transaction.StartAt,
			"CompleteAt":          transaction.CompleteAt,
			"LockedBy":            transaction.LockedBy,
			"LockAcquiredAt":      transaction.LockAcquiredAt,
			"Version":             1,
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to store transaction")
	}

	for _, step := range transaction.Steps {
		properties, err := json.Marshal(step.ResultProperties)
		if err != nil {
			return errors.Wrapf(err, "failed to encode result properties of step %d", step.StepID)
		}
		_, err = sqlStore.execBuilder(tx, sq.
			Insert(StepTableName).
			SetMap(map[string]interface{}{
				"TransactionID":       transaction.ID,
				"StepID":              step.StepID,
				"Type":                step.Type,
				"Description":         step.Description,
				"ImplementationKey":   step.ImplementationKey,
				"AnticipatedDuration": step.AnticipatedDuration,
				"Status":              string(step.Status),
				"Result":              string(step.Result),
				"ResultProperties":    properties,
				"Error":               step.Error,
				"RollbackError":       step.RollbackError,
				"CompleteAt":          step.CompleteAt,
			}),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to store step %d", step.StepID)
		}
	}

	err = tx.Commit()
	if err != nil {
		return err
	}
	transaction.Version = 1

	return nil
}

// UpdateTransaction writes the state of a Transaction and its steps.
// The write only succeeds if the stored Version still equals the
// Version of the argument and the stored Transaction is not Completed;
// on success the Version of the argument is incremented.
func (sqlStore *SQLStore) UpdateTransaction(transaction *model.Transaction) error {
	tx, err := sqlStore.beginTransaction(sqlStore.db)
	if err != nil {
		return err
	}
	defer tx.RollbackUnlessCommitted()

	result, err := sqlStore.execBuilder(tx, sq.
		Update(TransactionTableName).
		SetMap(map[string]interface{}{
			"Status":         string(transaction.Status),
			"Result":         string(transaction.Result),
			"ActualDuration": transaction.ActualDuration,
			"StartAt":        transaction.StartAt,
			"CompleteAt":     transaction.CompleteAt,
			"LockedBy":       transaction.LockedBy,
			"LockAcquiredAt": transaction.LockAcquiredAt,
			"Version":        transaction.Version + 1,
		}).
		Where(sq.Eq{
			"ID":      transaction.ID,
			"Version": transaction.Version,
			"Status":  string(model.TransactionStatusPending),
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update transaction")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to count updated transactions")
	}
	if rows != 1 {
		return sqlStore.explainRejectedUpdate(tx, transaction.ID)
	}

	for _, step := range transaction.Steps {
		properties, err := json.Marshal(step.ResultProperties)
		if err != nil {
			return errors.Wrapf(err, "failed to encode result properties of step %d", step.StepID)
		}
		_, err = sqlStore.execBuilder(tx, sq.
			Update(StepTableName).
			SetMap(map[string]interface{}{
				"Status":           string(step.Status),
				"Result":           string(step.Result),
				"ResultProperties": properties,
				"Error":            step.Error,
				"RollbackError":    step.RollbackError,
				"CompleteAt":       step.CompleteAt,
			}).
			Where(sq.Eq{"TransactionID": transaction.ID, "StepID": step.StepID}),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to update step %d", step.StepID)
		}
	}

	err = tx.Commit()
	if err != nil {
		return err
	}
	transaction.Version++

	return nil
}

func (sqlStore *SQLStore) explainRejectedUpdate(q dbInterface, id string) error {
	var status string
	err := sqlStore.getBuilder(q, &status, sq.Select("Status").From(TransactionTableName).Where(sq.Eq{"ID": id}))
	if err == sql.ErrNoRows {
		return ErrTransactionNotFound
	} else if err != nil {
		return errors.Wrap(err, "failed to inspect rejected update")
	}
	if model.TransactionStatus(status) == model.TransactionStatusCompleted {
		return ErrTransactionCompleted
	}
	return ErrVersionConflict
}

// TryLockTransaction claims a Pending Transaction for owner. The claim
// succeeds if the Transaction is unclaimed, already held by owner, or
// its lease was last refreshed before expireBefore.
func (sqlStore *SQLStore) TryLockTransaction(id, owner string, expireBefore int64) (bool, error) {
	result, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(TransactionTableName).
		Set("LockedBy", owner).
		Set("LockAcquiredAt", model.GetMillis()).
		Where(sq.Eq{"ID": id, "Status": string(model.TransactionStatusPending)}).
		Where(sq.Or{
			sq.Eq{"LockedBy": ""},
			sq.Eq{"LockedBy": owner},
			sq.Lt{"LockAcquiredAt": expireBefore},
		}),
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to lock transaction")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to count locked transactions")
	}

	return rows == 1, nil
}

// UnlockTransaction releases the claim of owner on a Transaction. It
// is a no-op if owner does not hold the claim.
func (sqlStore *SQLStore) UnlockTransaction(id, owner string) error {
	_, err := sqlStore.execBuilder(sqlStore.db, sq.
		Update(TransactionTableName).
		Set("LockedBy", "").
		Set("LockAcquiredAt", 0).
		Where(sq.Eq{"ID": id, "LockedBy": owner}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to unlock transaction")
	}

	return nil
}

// Next returns the next transaction number from the database
// sequence.
func (sqlStore *SQLStore) Next() (int64, error) {
	var n int64
	err := sqlStore.get(sqlStore.db, &n, "SELECT nextval('TransactionSequence')")
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate transaction number")
	}
	return n, nil
}
