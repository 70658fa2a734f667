// Package ticketing is a client for the change ticketing service where
// every provisioning change is recorded.
package ticketing

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mattermost/awsprov/internal/client"
)

// Ticket statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusCanceled = "canceled"
)

// Ticket is a change record.
type Ticket struct {
	ID          string            `json:"id,omitempty"`
	Queue       string            `json:"queue"`
	Summary     string            `json:"summary"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Transition changes the status of a ticket.
type Transition struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// Client talks to the ticketing service.
type Client struct {
	client *client.Client
}

// NewClient creates a ticketing Client for the service at address.
func NewClient(address, token string, logger log.FieldLogger) *Client {
	c := client.NewClient("ticketing", address, logger)
	if token != "" {
		c.SetHeader("Authorization", "Bearer "+token)
	}
	return &Client{client: c}
}

// CreateTicket files ticket and returns it as stored.
func (c *Client) CreateTicket(ctx context.Context, ticket *Ticket) (*Ticket, error) {
	var created Ticket
	err := c.client.Do(ctx, http.MethodPost, ticket, &created, "/api/tickets")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ticket")
	}
	return &created, nil
}

// TransitionTicket moves the ticket with the given ID to a new status.
func (c *Client) TransitionTicket(ctx context.Context, id string, transition *Transition) error {
	err := c.client.Do(ctx, http.MethodPost, transition, nil, "/api/tickets/%s/transitions", url.PathEscape(id))
	if err != nil {
		return errors.Wrapf(err, "failed to transition ticket %s to %s", id, transition.Status)
	}
	return nil
}
