package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"roadsafety/internal/bus"
	"roadsafety/internal/logger"
	"roadsafety/internal/models"
)

const (
	clientBuffer   = 64
	heartbeatEvery = 15 * time.Second
)

// broker fans bus events out to connected event streams. A client that
// falls behind loses events rather than stalling the publisher.
type broker struct {
	mu      sync.Mutex
	clients map[string]chan models.HighlightEvent
	closed  bool
}

func newBroker() *broker {
	return &broker{clients: make(map[string]chan models.HighlightEvent)}
}

func (b *broker) add() (string, <-chan models.HighlightEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", nil, false
	}
	id := uuid.NewString()
	ch := make(chan models.HighlightEvent, clientBuffer)
	b.clients[id] = ch
	return id, ch, true
}

func (b *broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.clients[id]; ok {
		delete(b.clients, id)
		close(ch)
	}
}

func (b *broker) publish(ev models.HighlightEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			logger.Log.WithFields(logrus.Fields{"client": id, "channel": ev.Channel}).Debug("Event stream full, dropping event")
		}
	}
	return nil
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.clients {
		delete(b.clients, id)
		close(ch)
	}
}

func writeEvent(w http.ResponseWriter, name string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// GetEvents streams bus events as server-sent events until the client goes
// away or the server shuts down.
func (h *Handler) GetEvents(c echo.Context) error {
	id, events, ok := h.events.add()
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
	}
	defer h.events.remove(id)

	log := logger.Log.WithField("client", id)
	log.Info("Event stream opened")
	defer log.Info("Event stream closed")

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, "hello", map[string]interface{}{"client": id, "selection": dash(c).Selection()}); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(res, ev.Channel, ev); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// PostEvent publishes a transient event on the channel named in the path.
// Failing subscribers are logged; the event still counts as delivered.
func (h *Handler) PostEvent(c echo.Context) error {
	var ev models.HighlightEvent
	if err := c.Bind(&ev); err != nil {
		return err
	}
	ch := c.Param("channel")
	err := dash(c).Publish(ch, ev)
	switch {
	case errors.Is(err, bus.ErrUnknownChannel):
		return httpError(err)
	case err != nil:
		logger.Log.WithError(err).WithField("channel", ch).Warn("Event handlers failed")
	}
	return c.NoContent(http.StatusAccepted)
}
