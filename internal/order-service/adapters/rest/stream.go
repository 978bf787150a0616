package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/httpx"
	"github.com/jcmexdev/order-payment-saga/internal/statushub"
)

const (
	sseEventName = "status"

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamStatus serves the order's payment status as server-sent events. The
// stream ends after COMPLETED or FAILED, on lifetime expiry, or when the
// client goes away.
func (h *Handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseID("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.status.Subscribe(r.Context(), orderID)
	err = sub.Stream(func(evt statushub.Event) error {
		b, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sseEventName, b); err != nil {
			return err
		}
		return rc.Flush()
	})
	slog.DebugContext(r.Context(), "status stream closed", "order_id", orderID, "transport", "sse", "reason", err)
}

// StreamStatusWS serves the same events over a WebSocket, one JSON text
// frame per event.
func (h *Handler) StreamStatusWS(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseID("orderId", chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "order_id", orderID, "error", err)
		return
	}
	defer conn.Close()

	sub := h.status.Subscribe(r.Context(), orderID)
	defer sub.Close()

	// Reads only serve pong and close frames; any read error ends the stream.
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer sub.Close()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-sub.Done():
			writeClose(conn, websocket.CloseGoingAway, "subscription ended")
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				slog.DebugContext(r.Context(), "websocket write failed", "order_id", orderID, "error", err)
				return
			}
			if evt.Status.Terminal() {
				writeClose(conn, websocket.CloseNormalClosure, string(evt.Status))
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
