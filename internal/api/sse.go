package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// streamWriter frames generation output as Server-Sent Events.
//
// Wire format: each delta is a default-typed event carrying
// {"d":"<delta>"}; the stream ends with exactly one terminal event,
// either "done" (empty data) after a completed generation or
// "business-error" carrying {"message":"..."}.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newStreamWriter(w http.ResponseWriter) (*streamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &streamWriter{w: w, flusher: flusher}, nil
}

type deltaPayload struct {
	D string `json:"d"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// WriteDelta sends one text delta. JSON encoding keeps newlines inside
// the delta from breaking SSE line framing.
func (s *streamWriter) WriteDelta(delta string) error {
	data, err := json.Marshal(deltaPayload{D: delta})
	if err != nil {
		return fmt.Errorf("encoding delta: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing delta: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteDone sends the successful terminal event.
func (s *streamWriter) WriteDone() error {
	if _, err := fmt.Fprint(s.w, "event: done\ndata: \n\n"); err != nil {
		return fmt.Errorf("writing done event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteBusinessError sends the failure terminal event.
func (s *streamWriter) WriteBusinessError(message string) error {
	data, err := json.Marshal(errorPayload{Message: message})
	if err != nil {
		return fmt.Errorf("encoding error event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: business-error\ndata: %s\n\n", data); err != nil {
		return fmt.Errorf("writing error event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
