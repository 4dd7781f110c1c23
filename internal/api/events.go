package api

import (
	"encoding/json"
	"time"

	"github.com/iksnae/hdt-console/internal"
)

// EventType enumerates everything the event channel can deliver
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventReconnecting
	EventConnectionResponse
	EventSubscriptionConfirmed
	EventPhysiologicalData
	EventActivityData
	EventInvalid
	EventUnknown
)

var eventTypeNames = [...]string{
	"connected",
	"disconnected",
	"reconnecting",
	"connection_response",
	"subscription_confirmed",
	"physiological_data",
	"activity_data",
	"invalid",
	"unknown",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// Outbound event names
const (
	OutSubscribeSession    = "subscribe_session"
	OutPhysiologicalUpdate = "physiological_update"
	OutActivityUpdate      = "activity_update"
)

var inboundTypes = map[string]EventType{
	"connection_response":    EventConnectionResponse,
	"subscription_confirmed": EventSubscriptionConfirmed,
	"physiological_data":     EventPhysiologicalData,
	"activity_data":          EventActivityData,
}

// Event is one delivery from the channel. Only the fields relevant to Type
// are set.
type Event struct {
	Type          EventType
	Name          string // wire name of inbound events
	Status        string
	SessionID     int
	Physiological *internal.PhysiologicalReading
	Activity      *internal.ActivitySample
	Attempt       int
	Delay         time.Duration
	Err           error
	Raw           json.RawMessage
}

// envelope is one Socket.IO event: its name and first argument
type envelope struct {
	Event string
	Data  json.RawMessage
}

// parseEvent converts an inbound envelope into a typed Event. Payloads
// that do not match their schema produce an EventInvalid carrying a
// DecodeError.
func parseEvent(env envelope) Event {
	t, ok := inboundTypes[env.Event]
	if !ok {
		return Event{Type: EventUnknown, Name: env.Event, Raw: env.Data}
	}
	ev := Event{Type: t, Name: env.Event, Raw: env.Data}
	invalid := func(field string, err error) Event {
		return Event{
			Type: EventInvalid,
			Name: env.Event,
			Raw:  env.Data,
			Err:  &internal.DecodeError{Type: env.Event, Field: field, Err: err},
		}
	}

	switch t {
	case EventConnectionResponse:
		var data struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return invalid("", err)
		}
		ev.Status = data.Status
	case EventSubscriptionConfirmed:
		var data struct {
			SessionID int `json:"session_id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return invalid("", err)
		}
		ev.SessionID = data.SessionID
	case EventPhysiologicalData:
		var reading internal.PhysiologicalReading
		if err := json.Unmarshal(env.Data, &reading); err != nil {
			return invalid("", err)
		}
		if reading.SessionID <= 0 {
			return invalid("session_id", errMissing)
		}
		ev.SessionID = reading.SessionID
		ev.Physiological = &reading
	case EventActivityData:
		var activity internal.ActivitySample
		if err := json.Unmarshal(env.Data, &activity); err != nil {
			return invalid("", err)
		}
		if activity.SessionID <= 0 {
			return invalid("session_id", errMissing)
		}
		ev.SessionID = activity.SessionID
		ev.Activity = &activity
	}
	return ev
}
