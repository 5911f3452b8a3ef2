package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cddevrks/code-run/internal/job"
)

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketDeliversSubscribedJobEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "jobId": "job-ws"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// The subscribe message is handled asynchronously; keep re-broadcasting
	// until the read loop has seen it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(10 * time.Millisecond):
				srv.hub.Broadcast(job.Event{
					Type:   job.EventCompleted,
					JobID:  "job-ws",
					Result: &job.Result{Output: "hi\n", ExecutionTimeMs: 21},
				})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev job.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}

	if ev.Type != job.EventCompleted || ev.JobID != "job-ws" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Result == nil || ev.Result.Output != "hi\n" || ev.Result.ExecutionTimeMs != 21 {
		t.Errorf("result = %+v", ev.Result)
	}
}

func TestWebSocketFiltersOtherJobs(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "jobId": "job-mine"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(10 * time.Millisecond):
				// An event for a different job must not reach this client.
				srv.hub.Broadcast(job.Event{Type: job.EventCompleted, JobID: "job-other"})
				srv.hub.Broadcast(job.Event{Type: job.EventProgress, JobID: "job-mine", Progress: 50})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev job.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.JobID != "job-mine" {
		t.Fatalf("received event for %q, want job-mine only", ev.JobID)
	}
}

func TestWebSocketRejectsInvalidMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(map[string]string{"type": "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp wsError
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("reading error reply: %v", err)
	}
	if resp.Type != "error" {
		t.Errorf("reply = %+v, want error", resp)
	}
}
