package stream

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/agentq/pkg/domain"

	"github.com/gin-contrib/sse"
)

// SSESink frames events as server-sent events: an `event:` line naming the
// channel, a `data:` line with the JSON payload, and a blank-line terminator,
// flushed per event.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares the response for streaming and returns a sink over it.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &SSESink{w: w, flusher: flusher}, nil
}

func (s *SSESink) Send(event domain.Event) error {
	if err := sse.Encode(s.w, sse.Event{Event: event.Name, Data: event.Data}); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
