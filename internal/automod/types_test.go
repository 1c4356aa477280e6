package automod

import "testing"

func TestNewCheckRequest(t *testing.T) {
	a := NewCheckRequest("u1", "hello", []string{"earlier"})
	b := NewCheckRequest("u1", "hello", nil)

	if a.RequestID == "" || b.RequestID == "" {
		t.Fatal("request id not assigned")
	}
	if a.RequestID == b.RequestID {
		t.Errorf("request ids collide: %q", a.RequestID)
	}
	if a.SenderID != "u1" || a.Text != "hello" {
		t.Errorf("request = %+v", a)
	}
	if len(a.Recent) != 1 || a.Recent[0] != "earlier" {
		t.Errorf("Recent = %v", a.Recent)
	}
	if a.Ts == 0 {
		t.Error("timestamp not assigned")
	}
}
