package voice

import (
	"fmt"
	"strings"

	appevents "dialcart_backend/internal/events"
)

// webhookEnvelope is the provider's outer payload. Every event arrives as a
// "message" object; the shapes per type vary, so only the fields we act on
// are declared and everything else is ignored.
type webhookEnvelope struct {
	Message webhookMessage `json:"message"`
}

type webhookMessage struct {
	Type        string      `json:"type"`
	ID          string      `json:"id"`
	Timestamp   int64       `json:"timestamp"`
	Status      string      `json:"status"`
	EndedReason string      `json:"endedReason"`
	Transcript  string      `json:"transcript"`
	Call        webhookCall `json:"call"`
	Artifact    struct {
		Transcript string `json:"transcript"`
	} `json:"artifact"`
}

type webhookCall struct {
	ID string `json:"id"`
}

// eventID returns a stable identifier for deduplication. The provider's
// message id is preferred; without one, type + call id + timestamp still
// catches straight redeliveries.
func (m webhookMessage) eventID() string {
	if m.ID != "" {
		return m.ID
	}
	return fmt.Sprintf("%s:%s:%d", m.Type, m.Call.ID, m.Timestamp)
}

// endedReasons that indicate the conversation actually happened. Everything
// else (no-answer, busy, failed dials) counts as a failed call.
var succeededReasons = map[string]bool{
	"customer-ended-call":  true,
	"assistant-ended-call": true,
	"hangup":               true,
}

// mapEvents converts a provider message to typed domain events. Unknown
// message types return nil; the handler acks them without acting, per the
// reject-don't-duck-type rule for loosely structured provider payloads.
func mapEvents(m webhookMessage) []appevents.Event {
	if m.Call.ID == "" {
		return nil
	}

	switch m.Type {
	case "status-update":
		status := mapCallStatus(m.Status)
		if status == "" {
			return nil
		}
		return []appevents.Event{appevents.CallStarted{
			BaseEvent:      appevents.NewBaseEvent(),
			ProviderCallID: m.Call.ID,
			Status:         status,
		}}

	case "end-of-call-report":
		transcript := strings.TrimSpace(m.Transcript)
		if transcript == "" {
			transcript = strings.TrimSpace(m.Artifact.Transcript)
		}

		out := []appevents.Event{appevents.CallEnded{
			BaseEvent:      appevents.NewBaseEvent(),
			ProviderCallID: m.Call.ID,
			Succeeded:      succeededReasons[m.EndedReason],
			Reason:         m.EndedReason,
		}}
		if transcript != "" {
			out = append(out, appevents.CallTranscriptReady{
				BaseEvent:      appevents.NewBaseEvent(),
				ProviderCallID: m.Call.ID,
				Transcript:     transcript,
			})
		}
		return out

	default:
		return nil
	}
}

func mapCallStatus(providerStatus string) string {
	switch providerStatus {
	case "queued", "ringing":
		return "dialing"
	case "in-progress":
		return "in_progress"
	default:
		return ""
	}
}
