// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Client is the programmatic interface to the awsprov API.
type Client struct {
	address    string
	headers    map[string]string
	httpClient *http.Client
}

// NewClient creates a new instance of Client.
func NewClient(address string) *Client {
	return &Client{
		address:    address,
		headers:    make(map[string]string),
		httpClient: &http.Client{},
	}
}

// CreateTransaction submits a Requisition. The returned Transaction is
// still Pending; its outcome is observable with GetTransaction.
func (c *Client) CreateTransaction(requisition *Requisition) (*Transaction, error) {
	resp, err := c.doPost(c.buildURL("/transactions"), requisition)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New("failed to read response body")
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return NewTransactionFromReader(bytes.NewReader(bodyBytes))

	default:
		return nil, errors.Errorf("failed with status code %d: %s", resp.StatusCode, string(bodyBytes))
	}
}

// GetTransaction returns the Transaction with the given ID, or nil if
// it does not exist.
func (c *Client) GetTransaction(transactionID string) (*Transaction, error) {
	resp, err := c.doGet(c.buildURL("/transaction/%s", transactionID))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, nil
	case http.StatusOK:
		return NewTransactionFromReader(resp.Body)
	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// GetTransactions returns the Transactions matching the filter.
func (c *Client) GetTransactions(filter *TransactionFilter) ([]*Transaction, error) {
	query := url.Values{}
	if filter != nil {
		if filter.Status != "" {
			query.Set("status", string(filter.Status))
		}
		if filter.Kind != "" {
			query.Set("kind", filter.Kind)
		}
		query.Set("page", strconv.Itoa(filter.Page))
		query.Set("per_page", strconv.Itoa(filter.PerPage))
	}

	resp, err := c.doGet(c.buildURL("/transactions?%s", query.Encode()))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewTransactionListFromReader(resp.Body)

	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// GetKinds returns the transaction kinds the server can run.
func (c *Client) GetKinds() ([]*Kind, error) {
	resp, err := c.doGet(c.buildURL("/kinds"))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return NewKindListFromReader(resp.Body)

	default:
		return nil, errors.Errorf("failed with status code %d", resp.StatusCode)
	}
}

// closeBody ensures the Body of an http.Response is properly closed.
func closeBody(r *http.Response) {
	if r.Body != nil {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	}
}

// buildURL builds a complete URL from a path and arguments.
func (c *Client) buildURL(urlPath string, args ...interface{}) string {
	return fmt.Sprintf("%s%s", c.address, fmt.Sprintf(urlPath, args...))
}

func (c *Client) doGet(u string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create http request")
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}

	return c.httpClient.Do(req)
}

func (c *Client) doPost(u string, request interface{}) (*http.Response, error) {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(requestBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create http request")
	}
	for k, v := range c.headers {
		req.Header.Add(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}
