package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mattermost/awsprov/internal/common"
)

// StatusError is returned when a service answers with a non 2xx
// status code.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Client is a JSON over HTTP client for an internal service. Calls go
// through a circuit breaker; transport errors and 5xx answers count as
// failures, 4xx answers do not.
type Client struct {
	service    string
	address    string
	headers    map[string]string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a Client for the service listening at address.
func NewClient(service, address string, logger log.FieldLogger) *Client {
	return &Client{
		service:    service,
		address:    strings.TrimSuffix(address, "/"),
		headers:    make(map[string]string),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    common.NewBreaker(service, common.DefaultBreakerSettings(), logger),
	}
}

// SetHeader adds a header sent with every request, such as an
// authorization token.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Do sends request, if not nil, as the JSON body of a method call to
// the path built from urlPath and args, and decodes the answer into
// response, if not nil.
func (c *Client) Do(ctx context.Context, method string, request, response interface{}, urlPath string, args ...interface{}) error {
	var body []byte
	if request != nil {
		var err error
		body, err = json.Marshal(request)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
	}
	u := c.buildURL(urlPath, args...)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create http request")
		}
		for k, v := range c.headers {
			req.Header.Add(k, v)
		}
		if request != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to call %s", c.service)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer closeBody(resp)
			return nil, c.statusError(resp)
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return errors.Wrapf(err, "%s is currently unavailable", c.service)
		}
		return err
	}

	resp := result.(*http.Response)
	defer closeBody(resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(resp)
	}
	if response == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil && err != io.EOF {
		return errors.Wrapf(err, "failed to decode %s response", c.service)
	}

	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	message, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Service:    c.service,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(message)),
	}
}

// closeBody ensures the Body of an http.Response is properly closed.
func closeBody(r *http.Response) {
	if r.Body != nil {
		_, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}
}

func (c *Client) buildURL(urlPath string, args ...interface{}) string {
	return fmt.Sprintf("%s%s", c.address, fmt.Sprintf(urlPath, args...))
}
