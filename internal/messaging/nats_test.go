package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hanghive/ai-gateway/internal/automod"
)

// newTestClient connects to a local NATS server. Requires NATS on
// localhost:4222.
func newTestClient(t *testing.T, name string) *NATSClient {
	t.Helper()
	config := DefaultNATSConfig()
	config.Name = name
	client, err := NewNATSClient(config)
	if err != nil {
		t.Skipf("nats not available: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

// TestCheckResultRoundTrip runs the full exchange: a worker subscribed to
// checks evaluates and publishes a result the requester receives on its
// per-request subject.
func TestCheckResultRoundTrip(t *testing.T) {
	worker := newTestClient(t, "hanghive-test-worker")
	requester := newTestClient(t, "hanghive-test-requester")

	err := worker.SubscribeChecks(func(data []byte) {
		var req automod.CheckRequest
		if err := json.Unmarshal(data, &req); err != nil {
			t.Errorf("worker decode: %v", err)
			return
		}
		result, err := json.Marshal(automod.CheckResult{
			RequestID: req.RequestID,
			Blocked:   true,
			Reason:    "spam",
			Term:      "phrase",
		})
		if err != nil {
			t.Errorf("marshal result: %v", err)
			return
		}
		if err := worker.PublishResult(req.RequestID, result); err != nil {
			t.Errorf("publish result: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("SubscribeChecks() error: %v", err)
	}

	req := automod.NewCheckRequest("u1", "buy now!!!", nil)

	got := make(chan automod.CheckResult, 1)
	err = requester.SubscribeResult(req.RequestID, func(data []byte) {
		var res automod.CheckResult
		if err := json.Unmarshal(data, &res); err != nil {
			t.Errorf("requester decode: %v", err)
			return
		}
		got <- res
	})
	if err != nil {
		t.Fatalf("SubscribeResult() error: %v", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := requester.PublishCheck(data); err != nil {
		t.Fatalf("PublishCheck() error: %v", err)
	}

	select {
	case res := <-got:
		if res.RequestID != req.RequestID {
			t.Errorf("result request id = %q, want %q", res.RequestID, req.RequestID)
		}
		if !res.Blocked || res.Reason != "spam" || res.Term != "phrase" {
			t.Errorf("result = %+v, want blocked spam", res)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	if err := requester.UnsubscribeResult(req.RequestID); err != nil {
		t.Errorf("UnsubscribeResult() error: %v", err)
	}
}

func TestUnsubscribeResult_Unknown(t *testing.T) {
	client := newTestClient(t, "hanghive-test-unsub")

	if err := client.UnsubscribeResult("never-subscribed"); err == nil {
		t.Error("expected error unsubscribing from an unknown request")
	}
}
