package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/loopwork/agentry/pkg/agent"
	"github.com/loopwork/agentry/pkg/logger"
)

// eventStream writes agent events to a response as server-sent events.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, nil
}

func (s *eventStream) send(e agent.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Errorf("encoding event: %v", err)
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Type, data)
	s.flusher.Flush()
}
