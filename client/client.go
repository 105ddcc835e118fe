// Package client is a Go client for a remote vmjobs server. Actions go
// through the single POST endpoint; job lifecycle events arrive over the
// websocket stream.
//
// Usage:
//
//	c := client.New("http://localhost:8070", client.WithServiceName("vm"))
//
//	// Launch a background action and wait for it.
//	res, err := c.Launch(ctx, "fit", map[string]any{"model_id": "m1"})
//	info, err := c.WaitJob(ctx, res.JobID)
//
//	// Watch everything that happens to jobs named "fit".
//	events, err := c.Watch(ctx, "name:fit")
//	for evt := range events {
//	    fmt.Println(evt.Type, evt.Data.JobID)
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/darkh14/vmjobs/backoff"
	"github.com/darkh14/vmjobs/stream"
)

// RemoteError is an action failure reported by the server in the
// response envelope.
type RemoteError struct {
	RequestType string
	Text        string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("vmjobs/client: %s: %s", e.RequestType, e.Text)
}

// Client talks to one vmjobs server. It is safe for concurrent use.
type Client struct {
	baseURL     string
	serviceName string
	http        *http.Client
	logger      *slog.Logger
	codec       stream.Codec
	types       []stream.EventType
	poll        backoff.Strategy

	reconnect  backoff.Strategy
	maxRetries int
}

// New creates a client for the server at baseURL (scheme and host, e.g.
// "http://localhost:8070").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  slog.Default(),
		codec:   stream.JSONCodec{},
		poll:    backoff.DefaultPoll(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status    string          `json:"status"`
	ErrorText string          `json:"error_text"`
	Result    json.RawMessage `json:"result"`
}

// Do sends one action request and returns the raw result. params is not
// modified; request_type and service_name are added to a copy.
func (c *Client) Do(ctx context.Context, requestType string, params map[string]any) (json.RawMessage, error) {
	body := make(map[string]any, len(params)+2)
	for k, v := range params {
		body[k] = v
	}
	body["request_type"] = requestType
	if c.serviceName != "" {
		body["service_name"] = c.serviceName
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("vmjobs/client: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("vmjobs/client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vmjobs/client: %s: %w", requestType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("vmjobs/client: %s: unexpected status %d: %s",
			requestType, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("vmjobs/client: decode response: %w", err)
	}
	if env.Status != "OK" {
		return nil, &RemoteError{RequestType: requestType, Text: env.ErrorText}
	}
	return env.Result, nil
}
