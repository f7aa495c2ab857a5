// Package publisher transforms ingestion events into the canonical wire
// envelope and emits them onto the message bus with guaranteed-flush
// semantics.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowgate-systems/flowgate/internal/metrics"
	"github.com/flowgate-systems/flowgate/internal/models"
)

// ErrMissingTenant is returned for a batch without a tenant. Batches
// originate from one HTTP call, so all events share the first event's
// tenant; an empty one is malformed input detected before any I/O.
var ErrMissingTenant = errors.New("events must have a tenant")

// Bus is the message bus surface the publisher consumes. Publish and
// PublishBatch return only after the broker acknowledged the flush.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
	PublishBatch(ctx context.Context, subject string, messages [][]byte, headers map[string]string) error
}

// Publisher builds envelopes and hands them to the bus.
type Publisher struct {
	bus      Bus
	topic    string
	producer string
}

// New creates a Publisher. Empty topic or producer fall back to defaults.
func New(bus Bus, topic, producer string) *Publisher {
	if topic == "" {
		topic = TopicGuaranteedIngestion
	}
	if producer == "" {
		producer = ProducerName
	}
	return &Publisher{
		bus:      bus,
		topic:    topic,
		producer: producer,
	}
}

// PublishEvent emits one event and returns its event ID once the bus has
// acknowledged the flush.
func (p *Publisher) PublishEvent(ctx context.Context, event *models.IngestionEvent) (string, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	envelope, err := p.buildEnvelope(event, now)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	headers := map[string]string{HeaderTenantID: event.Tenant}

	start := time.Now()
	if err := p.bus.Publish(ctx, p.topic, data, headers); err != nil {
		metrics.PublishErrors.Inc()
		return "", err
	}
	metrics.PublishDuration.Observe(time.Since(start).Seconds())

	return event.EventID, nil
}

// PublishEvents emits a batch sharing one tenant, one ingestion timestamp
// and one flush, and returns the event IDs in order. The flush cost is
// amortized across the whole batch.
func (p *Publisher) PublishEvents(ctx context.Context, events []*models.IngestionEvent) ([]string, error) {
	if len(events) == 0 || events[0].Tenant == "" {
		return nil, ErrMissingTenant
	}
	tenant := events[0].Tenant

	now := time.Now().UTC().Format(time.RFC3339)

	messages := make([][]byte, 0, len(events))
	eventIDs := make([]string, 0, len(events))
	for _, event := range events {
		envelope, err := p.buildEnvelope(event, now)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(envelope)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal envelope: %w", err)
		}
		messages = append(messages, data)
		eventIDs = append(eventIDs, event.EventID)
	}

	headers := map[string]string{HeaderTenantID: tenant}

	start := time.Now()
	if err := p.bus.PublishBatch(ctx, p.topic, messages, headers); err != nil {
		metrics.PublishErrors.Inc()
		return nil, err
	}
	metrics.PublishDuration.Observe(time.Since(start).Seconds())

	return eventIDs, nil
}

// buildEnvelope derives the wire envelope from an event. The payload is
// re-encoded as a string because downstream consumers expect it serialized.
func (p *Publisher) buildEnvelope(event *models.IngestionEvent, ingestedAt string) (*models.Envelope, error) {
	metadata := coerceMetadata(event.Metadata)

	producer := event.Producer
	if producer == "" {
		producer = p.producer
	}
	metadata[MetadataProducer] = producer
	metadata[MetadataIngestedAt] = ingestedAt
	if event.EventTime != "" {
		metadata[MetadataEventTime] = event.EventTime
	}
	if event.ValidTime != "" {
		metadata[MetadataValidTime] = event.ValidTime
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	return &models.Envelope{
		Pattern: p.topic,
		ID:      event.EventID,
		Data: models.EnvelopeData{
			EventID:           event.EventID,
			DataCore:          event.DataCoreID,
			Aggregator:        event.FlowTypeName,
			EventType:         event.EventTypeName,
			Metadata:          metadata,
			SerializedPayload: string(payload),
		},
	}, nil
}

// coerceMetadata converts caller metadata to string values. Non-string
// values are JSON-stringified; downstream consumers expect string-valued
// metadata.
func coerceMetadata(in map[string]any) map[string]string {
	out := make(map[string]string, len(in)+4)
	for key, value := range in {
		if s, ok := value.(string); ok {
			out[key] = s
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			out[key] = fmt.Sprintf("%v", value)
			continue
		}
		out[key] = string(data)
	}
	return out
}
