// Package transport frames deliberation events as server-sent text records
// and reassembles them on the client side. Each record is a single JSON
// event behind a "data: " prefix, terminated by a blank line; records are
// flushed individually so progress reaches the client as it happens.
package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/synod-dev/synod/internal/council"
)

// Writer streams events over an HTTP response. Token deltas arrive on
// gateway goroutines while stage events arrive on the orchestrator's, so
// writes are serialized internally; a Writer is safe to hand to the
// orchestrator as an Emitter.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	failed  bool
}

// NewWriter prepares an SSE stream on the response, setting the streaming
// headers. Returns an error when the ResponseWriter cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent frames and flushes one event. After the first write failure
// (client gone) subsequent writes become no-ops: the deliberation keeps
// running server-side and only the stream is abandoned.
func (w *Writer) WriteEvent(ev council.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failed {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		w.failed = true
		return nil
	}
	w.flusher.Flush()
	return nil
}

// Emitter adapts the writer to the orchestrator's callback shape.
func (w *Writer) Emitter() council.Emitter {
	return func(ev council.Event) {
		_ = w.WriteEvent(ev)
	}
}
