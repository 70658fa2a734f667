package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/model"
)

const defaultPerPage = 100

func handleCreateTransaction(c *Context, w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	requisition, err := model.NewRequisitionFromReader(r.Body)
	if err != nil {
		c.Logger.WithError(err).Error("failed to unmarshal JSON from request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	transaction, err := c.Orchestrator.Generate(r.Context(), requisition)
	if err != nil {
		if saga.IsValidationError(err) {
			c.Logger.WithError(err).Debug("rejected invalid requisition")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.Logger.WithError(err).Error("failed to create transaction")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	c.Logger.Debugf("Created transaction %s for role %s in account %s", transaction.ID, requisition.RoleName, requisition.AccountID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	outputJSON(c, w, transaction)
}

func handleGetTransaction(c *Context, w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["id"]

	transaction, err := c.Orchestrator.Query(transactionID)
	if errors.Is(err, saga.ErrTransactionNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		c.Logger.WithError(err).Errorf("failed to fetch transaction with ID %s", transactionID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, transaction)
}

func handleListTransactions(c *Context, w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	transactions, err := c.Orchestrator.List(filter)
	if err != nil {
		c.Logger.WithError(err).Error("failed to list transactions")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []*model.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, transactions)
}

func parseTransactionFilter(r *http.Request) (*model.TransactionFilter, error) {
	query := r.URL.Query()
	filter := &model.TransactionFilter{
		Kind:    query.Get("kind"),
		PerPage: defaultPerPage,
	}

	switch status := model.TransactionStatus(query.Get("status")); status {
	case "", model.TransactionStatusPending, model.TransactionStatusCompleted:
		filter.Status = status
	default:
		return nil, errors.Errorf("unknown transaction status %q", status)
	}

	var err error
	if page := query.Get("page"); page != "" {
		filter.Page, err = strconv.Atoi(page)
		if err != nil || filter.Page < 0 {
			return nil, errors.Errorf("invalid page %q", page)
		}
	}
	if perPage := query.Get("per_page"); perPage != "" {
		filter.PerPage, err = strconv.Atoi(perPage)
		if err != nil || (filter.PerPage < 1 && filter.PerPage != model.AllPerPage) {
			return nil, errors.Errorf("invalid per_page %q", perPage)
		}
	}

	return filter, nil
}
