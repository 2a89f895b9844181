package amqp

import "testing"

func TestRefreshMessageRoundTrip(t *testing.T) {
	msg := NewRefreshMessage("2025-06", true)
	if msg.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := RefreshMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.Month != "2025-06" || !got.Force {
		t.Fatalf("unexpected message: %+v", got)
	}
	if !got.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("timestamp mismatch: %v vs %v", got.Timestamp, msg.Timestamp)
	}
}

func TestRefreshMessageFromJSON_Malformed(t *testing.T) {
	if _, err := RefreshMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
}
