package store

import (
	"sort"
	"sync"

	"github.com/mattermost/awsprov/model"
)

// MemoryStore keeps Transactions in process memory. It honours the
// same versioning and locking rules as SQLStore and is meant for tests
// and single-process trial runs.
type MemoryStore struct {
	mu           sync.Mutex
	transactions map[string]*model.Transaction
	sequence     int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transactions: make(map[string]*model.Transaction)}
}

// GetTransaction returns a copy of the stored Transaction or nil.
func (s *MemoryStore) GetTransaction(id string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transactions[id].Clone(), nil
}

// GetTransactions returns copies of the Transactions matching filter,
// oldest first.
func (s *MemoryStore) GetTransactions(filter *model.TransactionFilter) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matching(func(t *model.Transaction) bool {
		if filter == nil {
			return true
		}
		if filter.Status != "" && t.Status != filter.Status {
			return false
		}
		if filter.Kind != "" && t.Kind != filter.Kind {
			return false
		}
		return true
	})

	if filter == nil || filter.PerPage == model.AllPerPage || filter.PerPage <= 0 {
		return matched, nil
	}
	start := filter.Page * filter.PerPage
	if start >= len(matched) {
		return []*model.Transaction{}, nil
	}
	end := start + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}

	return matched[start:end], nil
}

// GetOrphanedTransactions mirrors SQLStore.GetOrphanedTransactions.
func (s *MemoryStore) GetOrphanedTransactions(createdBefore, lockExpiredBefore int64) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.matching(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusPending &&
			t.CreateAt < createdBefore &&
			(t.LockedBy == "" || t.LockAcquiredAt < lockExpiredBefore)
	}), nil
}

func (s *MemoryStore) matching(match func(*model.Transaction) bool) []*model.Transaction {
	matched := []*model.Transaction{}
	for _, t := range s.transactions {
		if match(t) {
			matched = append(matched, t.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreateAt == matched[j].CreateAt {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreateAt < matched[j].CreateAt
	})
	return matched
}

// CreateTransaction stores a copy of transaction and sets its Version
// to 1.
func (s *MemoryStore) CreateTransaction(transaction *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[transaction.ID]; ok {
		return ErrVersionConflict
	}
	transaction.Version = 1
	s.transactions[transaction.ID] = transaction.Clone()

	return nil
}

// UpdateTransaction mirrors SQLStore.UpdateTransaction.
func (s *MemoryStore) UpdateTransaction(transaction *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[transaction.ID]
	if !ok {
		return ErrTransactionNotFound
	}
	if stored.IsCompleted() {
		return ErrTransactionCompleted
	}
	if stored.Version != transaction.Version {
		return ErrVersionConflict
	}

	transaction.Version++
	updated := transaction.Clone()
	// Identity and creation data are immutable.
	updated.Kind = stored.Kind
	updated.Requisition = stored.Requisition.Clone()
	updated.CreateAt = stored.CreateAt
	updated.AnticipatedDuration = stored.AnticipatedDuration
	s.transactions[transaction.ID] = updated

	return nil
}

// TryLockTransaction mirrors SQLStore.TryLockTransaction.
func (s *MemoryStore) TryLockTransaction(id, owner string, expireBefore int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[id]
	if !ok || stored.IsCompleted() {
		return false, nil
	}
	if stored.LockedBy != "" && stored.LockedBy != owner && stored.LockAcquiredAt >= expireBefore {
		return false, nil
	}
	stored.LockedBy = owner
	stored.LockAcquiredAt = model.GetMillis()

	return true, nil
}

// UnlockTransaction mirrors SQLStore.UnlockTransaction.
func (s *MemoryStore) UnlockTransaction(id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.transactions[id]
	if ok && stored.LockedBy == owner {
		stored.LockedBy = ""
		stored.LockAcquiredAt = 0
	}

	return nil
}

// Next returns the next transaction number.
func (s *MemoryStore) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	return s.sequence, nil
}
