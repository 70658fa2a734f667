package steps

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mattermost/awsprov/internal/saga"
	"github.com/mattermost/awsprov/internal/ticketing"
	"github.com/mattermost/awsprov/model"
)

const (
	defaultTicketQueue = "cloud-provisioning"

	propTicketID = "ticketId"
)

// TicketStep files a change ticket for the transaction. Rolling back
// cancels the ticket rather than deleting it, so the attempt stays on
// record.
type TicketStep struct {
	saga.BaseStep
	ticketing TicketingAPI
}

func (s *TicketStep) Init(ctx context.Context, sc *saga.StepContext) error {
	if err := s.BaseStep.Init(ctx, sc); err != nil {
		return err
	}
	if s.ticketing == nil {
		return errors.New("no ticketing client configured")
	}
	return nil
}

func (s *TicketStep) ticket() *ticketing.Ticket {
	sc := s.Context()
	req := sc.Requisition

	queue, ok := sc.Config("queue")
	if !ok {
		queue = defaultTicketQueue
	}
	verb := "Provision"
	if req.Action == model.ActionDelete {
		verb = "Deprovision"
	}
	labels := map[string]string{
		"account": req.AccountID,
		"role":    req.RoleName,
	}
	if req.Requester != "" {
		labels["requester"] = req.Requester
	}

	return &ticketing.Ticket{
		Queue:       queue,
		Summary:     fmt.Sprintf("%s IAM role %s in account %s", verb, req.RoleName, req.AccountID),
		Description: fmt.Sprintf("Tracked by transaction %s.", sc.TransactionID),
		Reference:   sc.TransactionID,
		Labels:      labels,
	}
}

func (s *TicketStep) Execute(ctx context.Context) ([]model.ResultProperty, error) {
	ticket, err := s.ticketing.CreateTicket(ctx, s.ticket())
	if err != nil {
		return s.Fail(err)
	}
	s.Logger().WithField("ticket", ticket.ID).Info("Recorded change ticket")

	return s.Succeed(model.NewResultProperty(propTicketID, ticket.ID))
}

func (s *TicketStep) Rollback(ctx context.Context) error {
	if s.Simulated() {
		return nil
	}
	id, ok := s.Context().Own(propTicketID)
	if !ok {
		return nil
	}

	return s.ticketing.TransitionTicket(ctx, id, &ticketing.Transition{
		Status:  ticketing.StatusCanceled,
		Comment: fmt.Sprintf("Transaction %s was rolled back.", s.Context().TransactionID),
	})
}
