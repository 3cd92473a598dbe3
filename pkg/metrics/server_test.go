package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServerServesCollectors(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("transport", true, "")

	c1 := NewCollector("agent-1")
	c1.Inc(CounterMessagesReceived, 2)
	c2 := NewCollector("agent-2")
	c2.Inc(CounterMessagesSent, 1)

	srv := NewServer("127.0.0.1:0", c1, c2)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", resp.StatusCode)
	}

	text := string(body)
	if !strings.Contains(text, `converge_messages_received_total{agent="agent-1"} 2`) {
		t.Errorf("missing agent-1 counter in:\n%s", text)
	}
	if !strings.Contains(text, `converge_messages_sent_total{agent="agent-2"} 1`) {
		t.Errorf("missing agent-2 counter in:\n%s", text)
	}

	resp, err = http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get("http://" + srv.Addr() + "/live")
	if err != nil {
		t.Fatalf("GET /live error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /live status = %d, want 200", resp.StatusCode)
	}
}

func TestServerStartFailsOnBadAddr(t *testing.T) {
	srv := NewServer("256.0.0.1:99999")
	if err := srv.Start(); err == nil {
		t.Error("Start() should fail on an invalid address")
		srv.Stop(context.Background())
	}
}
