package www

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/engine"
)

// SSEEvent is one server-sent event. Keepalives carry no ID.
type SSEEvent struct {
	ID    uint64
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	keepalive time.Duration
	seq       atomic.Uint64
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
		keepalive: 30 * time.Second,
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.fanOut(evt)
		case <-keepalive.C:
			h.fanOut(SSEEvent{Event: "keepalive", Data: "ping"})
		}
	}
}

func (h *EventHub) fanOut(evt SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// slow client, drop
		}
	}
}

func (h *EventHub) Broadcast(event, data string) {
	select {
	case h.broadcast <- SSEEvent{ID: h.seq.Add(1), Event: event, Data: data}:
	default:
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners forwards engine events to SSE clients, named by event
// type. Node payloads carry the display coordinates the map uses. The
// returned func detaches the listener.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) func() {
	id := eng.Events.Subscribe(func(evt engine.Event) {
		payload := evt.Payload
		if ev, ok := payload.(engine.NodeUpdatedEvent); ok && ev.Node != nil {
			payload = map[string]any{"node": newNodeView(ev.Node)}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("sse: encode %s event: %v", evt.Type.Name(), err)
			return
		}
		h.Broadcast(evt.Type.Name(), string(data))
	},
		engine.EventNodeUpdated,
		engine.EventTextMessage,
		engine.EventPosition,
		engine.EventTelemetry,
		engine.EventNodeStatus,
		engine.EventMessagingConnected,
		engine.EventMessagingDisconnected,
	)
	return func() { eng.Events.Unsubscribe(id) }
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt := <-ch:
			if err := writeEvent(w, evt); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, evt SSEEvent) error {
	if evt.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", evt.ID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data)
	return err
}
