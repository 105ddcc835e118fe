package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/labstack/echo/v4"

	"github.com/darkh14/vmjobs/stream"
)

// streamJobs upgrades the request to a websocket and forwards job
// lifecycle events until either side closes. Query parameters:
// codec=json|msgpack, any number of topic=jobs|job:<id>|name:<name> and
// any number of type=job.launched|job.started|... (all types when absent).
func (a *API) streamJobs(c echo.Context) error {
	topics := c.QueryParams()["topic"]
	if len(topics) == 0 {
		topics = []string{stream.TopicJobs}
	}
	for _, topic := range topics {
		if err := stream.ValidateTopic(topic); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	var types []stream.EventType
	for _, raw := range c.QueryParams()["type"] {
		t, err := stream.ParseEventType(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		types = append(types, t)
	}
	codec := stream.GetCodec(c.QueryParam("codec"))

	conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
	if err != nil {
		// The upgrader already wrote the handshake failure.
		a.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return nil
	}

	connID := fmt.Sprintf("ws-%d", a.connSeq.Add(1))
	broker := a.eng.Broker()
	sub := broker.SubscribeTypes(connID, types, topics...)
	a.logger.Info("job stream connected",
		slog.String("conn_id", connID),
		slog.String("codec", codec.Name()),
		slog.Any("topics", topics),
		slog.Any("types", types),
	)

	done := make(chan struct{})
	go readUntilClosed(conn, done)

	defer func() {
		broker.RemoveSubscriber(connID)
		_ = conn.Close()
		stats := sub.Stats()
		a.logger.Info("job stream disconnected",
			slog.String("conn_id", connID),
			slog.Int64("delivered", stats.Delivered),
			slog.Int64("dropped", stats.Dropped),
		)
	}()

	for {
		select {
		case <-done:
			return nil
		case evt, ok := <-sub.C():
			if !ok {
				_ = ws.WriteFrame(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusGoingAway, "shutting down")))
				return nil
			}
			if err := writeEvent(conn, codec, evt); err != nil {
				return nil
			}
			// The credit spent on evt comes back once it reached the socket.
			sub.AddCredits(1)
		}
	}
}

// readUntilClosed drains client frames and closes done when the client
// goes away. Control frames are answered by wsutil.
func readUntilClosed(conn net.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			return
		}
	}
}

// writeEvent encodes evt with codec and writes it as a text or binary
// frame.
func writeEvent(conn net.Conn, codec stream.Codec, evt *stream.Event) error {
	data, err := codec.Encode(evt)
	if err != nil {
		return err
	}
	op := ws.OpText
	if codec.Binary() {
		op = ws.OpBinary
	}
	return wsutil.WriteServerMessage(conn, op, data)
}
