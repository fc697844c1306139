package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ankittk/postcraft/internal/otel"
	"github.com/ankittk/postcraft/pkg/models"
)

const sseKeepalive = 30 * time.Second

// sseMessage is one frame on the stream: "id", "event" and "data" lines.
type sseMessage struct {
	ID    uint64
	Event string
	Data  []byte
}

// SSEHub fans turn events out to every /stream subscriber. Slow subscribers lose messages rather than
// blocking the engine.
type SSEHub struct {
	mu   sync.RWMutex
	subs map[chan sseMessage]struct{}
	seq  atomic.Uint64
}

func NewSSEHub() *SSEHub {
	return &SSEHub{subs: make(map[chan sseMessage]struct{})}
}

func (h *SSEHub) Subscribe() chan sseMessage {
	ch := make(chan sseMessage, models.DefaultSSEChannelBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	otel.AddSSEConnection()
	return ch
}

func (h *SSEHub) Unsubscribe(ch chan sseMessage) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
		otel.RemoveSSEConnection()
	}
	h.mu.Unlock()
}

// Publish sends ev to every subscriber under its type as the SSE event name.
func (h *SSEHub) Publish(ev models.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.broadcast(sseMessage{Event: ev.Type, Data: b})
}

func (h *SSEHub) broadcast(msg sseMessage) {
	msg.ID = h.seq.Add(1)
	otel.RecordSSEEvent(context.Background())
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Handler serves /stream. The first frame is a "connected" event; a comment line is sent every 30s.
func (h *SSEHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := h.Subscribe()
		defer h.Unsubscribe(ch)

		writeFrame(w, sseMessage{Event: "connected", Data: []byte(`{"type":"connected"}`)})
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case msg, ok := <-ch:
				if !ok {
					return
				}
				writeFrame(w, msg)
				flusher.Flush()
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, msg sseMessage) {
	if msg.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", msg.ID)
	}
	if msg.Event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}
