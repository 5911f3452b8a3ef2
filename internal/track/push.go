package track

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/cddevrks/code-run/internal/job"
)

// WSEvents implements EventSource over the server's websocket push channel.
type WSEvents struct {
	url string
}

// NewWSEvents creates a push client for the given HTTP base URL; the scheme
// is rewritten to ws(s) and the channel path appended.
func NewWSEvents(baseURL string) *WSEvents {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return &WSEvents{url: u + "/api/ws"}
}

// Subscribe dials the push channel, registers interest in the job id and
// streams decoded events until ctx is cancelled or the connection drops.
func (w *WSEvents) Subscribe(ctx context.Context, jobID string) (<-chan job.Event, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", w.url, err)
	}

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "jobId": jobID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to job %s: %w", jobID, err)
	}

	ch := make(chan job.Event, 8)

	// Closing the connection on cancellation unblocks the read loop.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(ch)
		for {
			var ev job.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
