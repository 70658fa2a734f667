// Package directory is a client for the identity directory service
// that holds the groups mirroring provisioned roles.
package directory

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mattermost/awsprov/internal/client"
)

// Group is a directory group.
type Group struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Client talks to the directory service.
type Client struct {
	client *client.Client
}

// NewClient creates a directory Client for the service at address.
func NewClient(address, token string, logger log.FieldLogger) *Client {
	c := client.NewClient("directory", address, logger)
	if token != "" {
		c.SetHeader("Authorization", "Bearer "+token)
	}
	return &Client{client: c}
}

// CreateGroup creates group and returns it as stored by the directory.
func (c *Client) CreateGroup(ctx context.Context, group *Group) (*Group, error) {
	var created Group
	err := c.client.Do(ctx, http.MethodPost, group, &created, "/api/v1/groups")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create group %s", group.Name)
	}
	return &created, nil
}

// GetGroupByName returns the group called name, or nil if there is
// none.
func (c *Client) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	var groups []*Group
	err := c.client.Do(ctx, http.MethodGet, nil, &groups, "/api/v1/groups?name=%s", url.QueryEscape(name))
	if client.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to look up group %s", name)
	}
	for _, group := range groups {
		if group.Name == name {
			return group, nil
		}
	}
	return nil, nil
}

// DeleteGroup deletes the group with the given ID. Deleting a group
// that does not exist is not an error.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	err := c.client.Do(ctx, http.MethodDelete, nil, nil, "/api/v1/groups/%s", url.PathEscape(id))
	if err != nil && !client.IsNotFound(err) {
		return errors.Wrapf(err, "failed to delete group %s", id)
	}
	return nil
}
