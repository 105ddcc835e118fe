package client

import (
	"log/slog"
	"net/http"

	"github.com/darkh14/vmjobs/backoff"
	"github.com/darkh14/vmjobs/stream"
)

// Option configures a Client.
type Option func(*Client)

// WithServiceName sets the service_name sent with every action request.
func WithServiceName(name string) Option {
	return func(c *Client) { c.serviceName = name }
}

// WithHTTPClient replaces the HTTP client used for action requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithCodec selects the job stream encoding: "json" (default) or "msgpack".
func WithCodec(name string) Option {
	return func(c *Client) { c.codec = stream.GetCodec(name) }
}

// WithPoll sets the delay strategy WaitJob uses between status checks.
func WithPoll(s backoff.Strategy) Option {
	return func(c *Client) { c.poll = s }
}

// WithReconnect makes Watch redial a dropped stream up to maxRetries
// times, waiting per s between attempts.
func WithReconnect(maxRetries int, s backoff.Strategy) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.reconnect = s
	}
}

// WithEventTypes limits Watch to events of the given types.
func WithEventTypes(types ...stream.EventType) Option {
	return func(c *Client) { c.types = append(c.types[:0:0], types...) }
}
