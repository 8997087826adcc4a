package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hopstack/toolcatalog/internal/respond"
)

// HeartbeatInterval is the default interval between SSE heartbeat comments
const HeartbeatInterval = 15 * time.Second

// serveStream holds an SSE connection open for session. The catalog never
// changes, so the stream only carries heartbeat comments. It returns when
// the client disconnects, the session is terminated, or shutdown is closed.
func serveStream(ctx context.Context, w http.ResponseWriter, session *Session, heartbeat time.Duration, shutdown <-chan struct{}) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.Error(w, http.StatusInternalServerError, "streaming not supported")
		return fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(HeaderSessionID, session.ID())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return nil
		case <-shutdown:
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
