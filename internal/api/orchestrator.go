package api

import (
	"context"

	"github.com/mattermost/awsprov/model"
)

//go:generate mockgen -destination=../mocks/api/orchestrator.go -package=mock_api github.com/mattermost/awsprov/internal/api Orchestrator

// Orchestrator is the part of saga.Orchestrator the API serves.
type Orchestrator interface {
	Generate(ctx context.Context, requisition *model.Requisition) (*model.Transaction, error)
	Query(id string) (*model.Transaction, error)
	List(filter *model.TransactionFilter) ([]*model.Transaction, error)
	Kinds() []*model.Kind
}
