package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"lendchain/core/events"
	"lendchain/core/types"
)

const wsWriteTimeout = 10 * time.Second

type eventFeed struct {
	recorder *events.Recorder
}

type eventPayload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// attributed is implemented by the engine event wrappers that expose the
// underlying attribute map.
type attributed interface {
	Event() *types.Event
}

func payloadFrom(evt events.Event) eventPayload {
	payload := eventPayload{Type: evt.EventType()}
	if carrier, ok := evt.(attributed); ok {
		if inner := carrier.Event(); inner != nil {
			payload.Attributes = inner.Attributes
		}
	}
	return payload
}

// handle upgrades the request and replays the recorded backlog before
// streaming live events until the client disconnects.
func (f *eventFeed) handle(w http.ResponseWriter, r *http.Request) {
	if f == nil || f.recorder == nil {
		http.Error(w, "event feed unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := f.stream(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (f *eventFeed) stream(ctx context.Context, conn *websocket.Conn) error {
	// The backlog snapshot and the subscription are taken atomically, so an
	// event emitted while the client connects is replayed or streamed, never
	// both.
	backlog, live, cancel := f.recorder.SubscribeWithBacklog(64)
	defer cancel()

	for _, evt := range backlog {
		if err := writeEvent(ctx, conn, evt); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-live:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt events.Event) error {
	data, err := json.Marshal(payloadFrom(evt))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
