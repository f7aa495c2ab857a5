package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/flowgate-systems/flowgate/internal/bus"
	"github.com/flowgate-systems/flowgate/internal/httputil"
	"github.com/flowgate-systems/flowgate/internal/logging"
	"github.com/flowgate-systems/flowgate/internal/metrics"
	"github.com/flowgate-systems/flowgate/internal/models"
	"github.com/flowgate-systems/flowgate/internal/publisher"
	"github.com/flowgate-systems/flowgate/internal/validator"
)

// Request headers accepted on the ingestion endpoints.
const (
	HeaderEventTime    = "X-Flowgate-Event-Time"
	HeaderValidTime    = "X-Flowgate-Valid-Time"
	HeaderMetadataJSON = "X-Flowgate-Metadata-Json"
	HeaderEventTimeKey = "X-Flowgate-Event-Time-Key"
	HeaderValidTimeKey = "X-Flowgate-Valid-Time-Key"
)

// DefaultMaxEventSize bounds a single event payload.
const DefaultMaxEventSize = 64 * 1024

// DefaultMaxBatchSize bounds a batch request body.
const DefaultMaxBatchSize = 8 * 1024 * 1024

// Readiness reports whether a dependency is usable.
type Readiness interface {
	Ping(ctx context.Context) error
}

// IngestHandler accepts webhook events, validates the resource path and
// publishes onto the message bus.
type IngestHandler struct {
	validator    *validator.Validator
	publisher    *publisher.Publisher
	busClient    *bus.Client
	store        Readiness
	logger       *logging.Logger
	maxEventSize int64
	maxBatchSize int64
}

// NewIngestHandler wires the ingestion pipeline. Zero size limits fall back
// to the defaults.
func NewIngestHandler(v *validator.Validator, p *publisher.Publisher, busClient *bus.Client, store Readiness, logger *logging.Logger, maxEventSize, maxBatchSize int64) *IngestHandler {
	if maxEventSize <= 0 {
		maxEventSize = DefaultMaxEventSize
	}
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &IngestHandler{
		validator:    v,
		publisher:    p,
		busClient:    busClient,
		store:        store,
		logger:       logger,
		maxEventSize: maxEventSize,
		maxBatchSize: maxBatchSize,
	}
}

type singleResponse struct {
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
	FlowType  string `json:"flowType"`
	EventID   string `json:"eventId"`
}

type batchResponse struct {
	Received bool     `json:"received"`
	EventIDs []string `json:"eventIds"`
}

// HandleEvent ingests a single event.
// POST /api/v1/ingest/{tenant}/{dataCore}/{flowType}/{eventType}
func (h *IngestHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	dataCore := r.PathValue("dataCore")
	flowType := r.PathValue("flowType")
	eventType := r.PathValue("eventType")

	payload, ok := h.readBody(w, r, h.maxEventSize)
	if !ok {
		return
	}
	if !json.Valid(payload) {
		metrics.EventsTotal.WithLabelValues("single", "rejected").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	metadata, err := parseMetadataHeader(r.Header.Get(HeaderMetadataJSON))
	if err != nil {
		metrics.EventsTotal.WithLabelValues("single", "rejected").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "metadata header is not valid base64-encoded JSON")
		return
	}

	ids, ok := h.resolve(w, r, tenant, dataCore, flowType, eventType)
	if !ok {
		return
	}

	event := &models.IngestionEvent{
		EventID:       newEventID(),
		Tenant:        tenant,
		DataCoreID:    ids.DataCoreID,
		FlowTypeID:    ids.FlowTypeID,
		EventTypeID:   ids.EventTypeID,
		FlowTypeName:  flowType,
		EventTypeName: eventType,
		Payload:       payload,
		Metadata:      metadata,
		EventTime:     r.Header.Get(HeaderEventTime),
		ValidTime:     r.Header.Get(HeaderValidTime),
	}

	eventID, err := h.publisher.PublishEvent(r.Context(), event)
	if err != nil {
		h.writePublishError(w, r, err)
		return
	}

	metrics.EventsTotal.WithLabelValues("single", "accepted").Inc()
	metrics.EventBytesTotal.Add(float64(len(payload)))

	httputil.WriteJSON(w, http.StatusOK, singleResponse{
		Received:  true,
		EventType: eventType,
		FlowType:  flowType,
		EventID:   eventID,
	})
}

// HandleBatch ingests an array of payloads in one request.
// POST /api/v1/ingest/{tenant}/{dataCore}/{flowType}/{eventType}/events
func (h *IngestHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	dataCore := r.PathValue("dataCore")
	flowType := r.PathValue("flowType")
	eventType := r.PathValue("eventType")

	body, ok := h.readBody(w, r, h.maxBatchSize)
	if !ok {
		return
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(body, &payloads); err != nil {
		metrics.EventsTotal.WithLabelValues("batch", "rejected").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "request body must be a JSON array of payloads")
		return
	}
	if len(payloads) == 0 {
		metrics.EventsTotal.WithLabelValues("batch", "rejected").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "batch must contain at least one payload")
		return
	}

	metadata, err := parseMetadataHeader(r.Header.Get(HeaderMetadataJSON))
	if err != nil {
		metrics.EventsTotal.WithLabelValues("batch", "rejected").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "metadata header is not valid base64-encoded JSON")
		return
	}

	ids, ok := h.resolve(w, r, tenant, dataCore, flowType, eventType)
	if !ok {
		return
	}

	eventTimeKey := r.Header.Get(HeaderEventTimeKey)
	validTimeKey := r.Header.Get(HeaderValidTimeKey)

	events := make([]*models.IngestionEvent, 0, len(payloads))
	for _, payload := range payloads {
		events = append(events, &models.IngestionEvent{
			EventID:       newEventID(),
			Tenant:        tenant,
			DataCoreID:    ids.DataCoreID,
			FlowTypeID:    ids.FlowTypeID,
			EventTypeID:   ids.EventTypeID,
			FlowTypeName:  flowType,
			EventTypeName: eventType,
			Payload:       payload,
			Metadata:      metadata,
			EventTime:     extractTimeField(payload, eventTimeKey),
			ValidTime:     extractTimeField(payload, validTimeKey),
		})
	}

	eventIDs, err := h.publisher.PublishEvents(r.Context(), events)
	if err != nil {
		if errors.Is(err, publisher.ErrMissingTenant) {
			metrics.EventsTotal.WithLabelValues("batch", "rejected").Inc()
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writePublishError(w, r, err)
		return
	}

	metrics.EventsTotal.WithLabelValues("batch", "accepted").Add(float64(len(eventIDs)))
	metrics.EventBytesTotal.Add(float64(len(body)))
	metrics.BatchSize.Observe(float64(len(eventIDs)))

	httputil.WriteJSON(w, http.StatusOK, batchResponse{
		Received: true,
		EventIDs: eventIDs,
	})
}

// Health is the liveness endpoint.
func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports readiness: the store must answer and the bus must be
// connected or able to reconnect lazily.
func (h *IngestHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"store":  "unreachable",
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"bus":    h.busClient.Status().String(),
	})
}

// resolve validates the resource path, writing the error response itself on
// failure.
func (h *IngestHandler) resolve(w http.ResponseWriter, r *http.Request, tenant, dataCore, flowType, eventType string) (*models.ResourceIDs, bool) {
	ids, err := h.validator.Validate(r.Context(), tenant, dataCore, flowType, eventType)
	if err != nil {
		if errors.Is(err, validator.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound,
				fmt.Sprintf("resource path %s/%s/%s/%s not found", tenant, dataCore, flowType, eventType))
			return nil, false
		}
		h.logger.ErrorContext(r.Context(), "validation failed", logging.Error(err), logging.Tenant(tenant))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return ids, true
}

func (h *IngestHandler) readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	defer r.Body.Close()

	if int64(len(body)) > limit {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", limit))
		return nil, false
	}
	if len(body) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "request body is empty")
		return nil, false
	}
	return body, true
}

func (h *IngestHandler) writePublishError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "publish failed", logging.Error(err))
	if errors.Is(err, bus.ErrNotConnected) {
		httputil.WriteError(w, http.StatusServiceUnavailable, "message bus unavailable")
		return
	}
	httputil.WriteError(w, http.StatusInternalServerError, "internal error")
}

// parseMetadataHeader decodes the base64-encoded JSON metadata header.
func parseMetadataHeader(header string) (map[string]any, error) {
	if header == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	var metadata map[string]any
	if err := json.Unmarshal(decoded, &metadata); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return metadata, nil
}

// extractTimeField pulls a string-valued field out of an object payload,
// used by batch requests to carry per-event time overrides in-band.
func extractTimeField(payload json.RawMessage, key string) string {
	if key == "" {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(obj[key], &value); err != nil {
		return ""
	}
	return value
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does; fall back to v4.
		return uuid.New().String()
	}
	return id.String()
}
