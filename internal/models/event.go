package models

import "encoding/json"

// IngestionEvent is one event accepted from a webhook caller, after the
// resource path has been resolved. EventID is assigned exactly once at
// ingestion time and is the acknowledgement token returned to the caller.
type IngestionEvent struct {
	EventID       string
	Tenant        string
	DataCoreID    string
	FlowTypeID    string
	EventTypeID   string
	FlowTypeName  string
	EventTypeName string
	Payload       json.RawMessage
	Metadata      map[string]any
	EventTime     string
	ValidTime     string
	Producer      string
}

// Envelope is the canonical wire format placed on the message bus.
type Envelope struct {
	Pattern string       `json:"pattern"`
	ID      string       `json:"id"`
	Data    EnvelopeData `json:"data"`
}

// EnvelopeData carries the event itself. The payload is re-encoded as a
// string because downstream consumers expect it serialized, not nested.
type EnvelopeData struct {
	EventID           string            `json:"eventId"`
	DataCore          string            `json:"dataCore"`
	Aggregator        string            `json:"aggregator"`
	EventType         string            `json:"eventType"`
	Metadata          map[string]string `json:"metadata"`
	SerializedPayload string            `json:"serializedPayload"`
}
