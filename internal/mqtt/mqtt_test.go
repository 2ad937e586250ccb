package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTopicSystem(t *testing.T) {
	if TopicSystem != "waypoint/monitor/system" {
		t.Errorf("unexpected topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     EventShutdown,
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     EventOffline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"OFFLINE"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 9, 0, 0, 0, loc),
		Event:     EventPowerOff,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-10T14:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: EventStartup, RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisherPublishSystem(t *testing.T) {
	pub := NewFakePublisher()

	events := []SystemEvent{
		{Timestamp: time.Now(), Event: EventStartup, Retained: true},
		{Timestamp: time.Now(), Event: EventHeartbeat},
		{Timestamp: time.Now(), Event: EventShutdown, Reason: "SIGINT"},
	}
	for _, e := range events {
		if err := pub.PublishSystem(e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	names := pub.EventNames()
	want := []string{EventStartup, EventHeartbeat, EventShutdown}
	if len(names) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, names[i], want[i])
		}
	}
	if !pub.SystemEvents()[0].Retained {
		t.Error("expected retained flag preserved")
	}
	if len(pub.SystemPayloads()) != 3 {
		t.Errorf("expected 3 payloads, got %d", len(pub.SystemPayloads()))
	}
}

func TestFakePublisherPublishSystemError(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishSystemError = errors.New("broker down")

	if err := pub.PublishSystem(SystemEvent{Event: EventHeartbeat}); err == nil {
		t.Error("expected error")
	}
	if len(pub.SystemEvents()) != 0 {
		t.Error("failed publish must not be recorded")
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	pub := NewFakePublisher()
	pub.SetConnected(true)
	pub.PublishSystem(SystemEvent{Event: EventStartup})
	pub.Close()

	if !pub.Closed() || !pub.IsConnected() {
		t.Error("expected closed and connected")
	}

	pub.Reset()
	if pub.Closed() || pub.IsConnected() || len(pub.SystemEvents()) != 0 {
		t.Error("expected Reset to clear state")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.PublishSystem(SystemEvent{Event: EventStartup}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if (NopPublisher{}).IsConnected() {
		t.Error("NopPublisher must report disconnected")
	}
}
