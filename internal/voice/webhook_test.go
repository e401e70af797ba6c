package voice

import (
	"encoding/json"
	"testing"

	appevents "dialcart_backend/internal/events"
)

func parseMessage(t *testing.T, raw string) webhookMessage {
	t.Helper()
	var envelope webhookEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatal(err)
	}
	return envelope.Message
}

func TestMapStatusUpdate(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"ringing", "dialing"},
		{"queued", "dialing"},
		{"in-progress", "in_progress"},
	}

	for _, tt := range tests {
		msg := parseMessage(t, `{"message":{"type":"status-update","status":"`+tt.provider+`","call":{"id":"call-1"}}}`)
		events := mapEvents(msg)
		if len(events) != 1 {
			t.Fatalf("status %q: events = %d, want 1", tt.provider, len(events))
		}
		started, ok := events[0].(appevents.CallStarted)
		if !ok {
			t.Fatalf("status %q: wrong event type %T", tt.provider, events[0])
		}
		if started.Status != tt.want || started.ProviderCallID != "call-1" {
			t.Errorf("status %q mapped to %+v", tt.provider, started)
		}
	}
}

func TestMapEndOfCallWithTranscript(t *testing.T) {
	msg := parseMessage(t, `{"message":{
		"type":"end-of-call-report",
		"endedReason":"customer-ended-call",
		"transcript":"AI: Do you have it?\nStore: Yes, 1499 rupees.",
		"call":{"id":"call-2"}}}`)

	events := mapEvents(msg)
	if len(events) != 2 {
		t.Fatalf("events = %d, want ended + transcript", len(events))
	}

	ended, ok := events[0].(appevents.CallEnded)
	if !ok || !ended.Succeeded {
		t.Errorf("first event = %+v, want successful CallEnded", events[0])
	}

	transcript, ok := events[1].(appevents.CallTranscriptReady)
	if !ok || transcript.Transcript == "" {
		t.Errorf("second event = %+v, want CallTranscriptReady", events[1])
	}
}

func TestMapEndOfCallNoAnswer(t *testing.T) {
	msg := parseMessage(t, `{"message":{
		"type":"end-of-call-report",
		"endedReason":"customer-did-not-answer",
		"call":{"id":"call-3"}}}`)

	events := mapEvents(msg)
	if len(events) != 1 {
		t.Fatalf("events = %d, want only CallEnded", len(events))
	}
	ended := events[0].(appevents.CallEnded)
	if ended.Succeeded {
		t.Error("no-answer must map to a failed call")
	}
}

func TestMapTranscriptFromArtifact(t *testing.T) {
	msg := parseMessage(t, `{"message":{
		"type":"end-of-call-report",
		"endedReason":"assistant-ended-call",
		"artifact":{"transcript":"Store: in stock."},
		"call":{"id":"call-4"}}}`)

	events := mapEvents(msg)
	if len(events) != 2 {
		t.Fatalf("events = %d, artifact transcript must be picked up", len(events))
	}
}

func TestMapIgnoresUnknownShapes(t *testing.T) {
	cases := []string{
		`{"message":{"type":"speech-update","call":{"id":"call-5"}}}`,
		`{"message":{"type":"status-update","status":"forwarding","call":{"id":"call-5"}}}`,
		`{"message":{"type":"end-of-call-report"}}`,
	}

	for _, raw := range cases {
		if events := mapEvents(parseMessage(t, raw)); len(events) != 0 {
			t.Errorf("payload %s produced events %v, want none", raw, events)
		}
	}
}

func TestEventIDStability(t *testing.T) {
	withID := parseMessage(t, `{"message":{"id":"msg-9","type":"status-update","call":{"id":"c"}}}`)
	if withID.eventID() != "msg-9" {
		t.Errorf("eventID = %q, provider id must win", withID.eventID())
	}

	withoutID := parseMessage(t, `{"message":{"type":"status-update","timestamp":1700000000,"status":"ringing","call":{"id":"c"}}}`)
	first, second := withoutID.eventID(), withoutID.eventID()
	if first != second || first == "" {
		t.Errorf("synthesized eventID must be stable, got %q / %q", first, second)
	}
}
