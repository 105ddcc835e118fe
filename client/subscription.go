package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/darkh14/vmjobs/stream"
)

// Watch opens the job event stream for topics ("jobs" when none are
// given) and returns a channel of events. The channel is closed when ctx
// is done or the stream ends and cannot be redialed.
//
// Topics:
//   - "jobs"        all job lifecycle events
//   - "job:<id>"    events of one job
//   - "name:<name>" events of jobs launched under name
func (c *Client) Watch(ctx context.Context, topics ...string) (<-chan *stream.Event, error) {
	for _, topic := range topics {
		if err := stream.ValidateTopic(topic); err != nil {
			return nil, fmt.Errorf("vmjobs/client: %w", err)
		}
	}
	u, err := c.streamURL(topics)
	if err != nil {
		return nil, err
	}
	conn, _, _, err := ws.Dial(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("vmjobs/client: dial stream: %w", err)
	}

	ch := make(chan *stream.Event, 64)
	go c.watchLoop(ctx, u, conn, ch)
	return ch, nil
}

func (c *Client) streamURL(topics []string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("vmjobs/client: parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/jobs/stream"

	q := url.Values{}
	q.Set("codec", c.codec.Name())
	for _, topic := range topics {
		q.Add("topic", topic)
	}
	for _, t := range c.types {
		q.Add("type", string(t))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) watchLoop(ctx context.Context, u string, conn net.Conn, ch chan<- *stream.Event) {
	defer close(ch)
	for {
		err := c.readEvents(ctx, conn, ch)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("job stream lost", slog.String("error", err.Error()))
		if c.reconnect == nil {
			return
		}
		if conn = c.redial(ctx, u); conn == nil {
			return
		}
	}
}

// readEvents forwards decoded events until the connection fails.
func (c *Client) readEvents(ctx context.Context, conn net.Conn, ch chan<- *stream.Event) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		data, _, err := wsutil.ReadServerData(conn)
		if err != nil {
			return err
		}
		evt, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("job stream: invalid event", slog.String("error", err.Error()))
			continue
		}
		select {
		case ch <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) redial(ctx context.Context, u string) net.Conn {
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		delay := c.reconnect.Delay(attempt)
		c.logger.Info("job stream reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil
		}
		conn, _, _, err := ws.Dial(ctx, u)
		if err == nil {
			c.logger.Info("job stream reconnected")
			return conn
		}
		c.logger.Warn("job stream reconnect failed", slog.String("error", err.Error()))
	}
	c.logger.Error("job stream: max reconnection attempts reached")
	return nil
}
