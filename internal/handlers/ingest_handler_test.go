package handlers_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate-systems/flowgate/internal/bus"
	"github.com/flowgate-systems/flowgate/internal/cache"
	"github.com/flowgate-systems/flowgate/internal/handlers"
	"github.com/flowgate-systems/flowgate/internal/logging"
	"github.com/flowgate-systems/flowgate/internal/models"
	"github.com/flowgate-systems/flowgate/internal/publisher"
	"github.com/flowgate-systems/flowgate/internal/repository"
	"github.com/flowgate-systems/flowgate/internal/server"
	"github.com/flowgate-systems/flowgate/internal/validator"
)

// fakeBus satisfies publisher.Bus and records envelopes.
type fakeBus struct {
	singles [][]byte
	batches [][][]byte
	headers map[string]string
	err     error
}

func (f *fakeBus) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.singles = append(f.singles, data)
	f.headers = headers
	return nil
}

func (f *fakeBus) PublishBatch(ctx context.Context, subject string, messages [][]byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, messages)
	f.headers = headers
	return nil
}

type fixture struct {
	router http.Handler
	bus    *fakeBus
	repo   *repository.InMemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := repository.NewInMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.UpsertDataCore(ctx, &models.DataCore{ID: "dc-1", Tenant: "t1", Name: "orders"}))
	require.NoError(t, repo.UpsertFlowType(ctx, &models.FlowType{ID: "ft-1", DataCoreID: "dc-1", Name: "order.flow.0"}))
	require.NoError(t, repo.UpsertEventType(ctx, &models.EventType{ID: "et-1", FlowTypeID: "ft-1", Name: "order.placed.0"}))

	local := cache.NewResolutionCache(30 * time.Second)
	t.Cleanup(local.Close)

	logger := logging.Default()
	valid := validator.New(local, nil, repo, logger)
	fb := &fakeBus{}
	pub := publisher.New(fb, "", "")
	busClient := bus.NewClient(bus.DefaultConfig(), nil)

	handler := handlers.NewIngestHandler(valid, pub, busClient, repo, logger, 1024, 8192)
	return &fixture{
		router: server.NewRouter(handler, nil),
		bus:    fb,
		repo:   repo,
	}
}

const ingestPath = "/api/v1/ingest/t1/orders/order.flow.0/order.placed.0"

func (f *fixture) post(path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, data []byte) *models.Envelope {
	t.Helper()
	var env models.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return &env
}

func TestIngestSingleEvent(t *testing.T) {
	f := newFixture(t)

	rec := f.post(ingestPath, `{"orderId":"o-1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Received  bool   `json:"received"`
		EventType string `json:"eventType"`
		FlowType  string `json:"flowType"`
		EventID   string `json:"eventId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.Equal(t, "order.placed.0", resp.EventType)
	assert.Equal(t, "order.flow.0", resp.FlowType)
	assert.NotEmpty(t, resp.EventID)

	require.Len(t, f.bus.singles, 1)
	env := decodeEnvelope(t, f.bus.singles[0])
	assert.Equal(t, resp.EventID, env.ID)
	assert.Equal(t, "dc-1", env.Data.DataCore)
	assert.Equal(t, `{"orderId":"o-1"}`, env.Data.SerializedPayload)
	assert.Equal(t, "t1", f.bus.headers["X-Tenant-Id"])
}

func TestIngestUnknownPath(t *testing.T) {
	f := newFixture(t)

	rec := f.post("/api/v1/ingest/t1/orders/order.flow.0/no.such.event", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.bus.singles, "nothing may be published for an invalid path")
}

func TestIngestRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"broken":`},
		{"empty body", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.post(ingestPath, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestIngestRejectsOversizeBody(t *testing.T) {
	f := newFixture(t)

	big := `{"pad":"` + strings.Repeat("x", 2048) + `"}`
	rec := f.post(ingestPath, big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestIngestMetadataHeader(t *testing.T) {
	f := newFixture(t)

	meta := base64.StdEncoding.EncodeToString([]byte(`{"channel":"shop","attempt":2}`))
	rec := f.post(ingestPath, `{"orderId":"o-1"}`, map[string]string{
		handlers.HeaderMetadataJSON: meta,
		handlers.HeaderEventTime:    "2026-01-02T03:04:05Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, f.bus.singles[0])
	assert.Equal(t, "shop", env.Data.Metadata["channel"])
	assert.Equal(t, "2", env.Data.Metadata["attempt"])
	assert.Equal(t, "2026-01-02T03:04:05Z", env.Data.Metadata["event-time"])
}

func TestIngestRejectsBadMetadataHeader(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		value string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"base64 of non-json", base64.StdEncoding.EncodeToString([]byte("not json"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.post(ingestPath, `{}`, map[string]string{handlers.HeaderMetadataJSON: tt.value})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestIngestBatch(t *testing.T) {
	f := newFixture(t)

	rec := f.post(ingestPath+"/events", `[{"n":1},{"n":2},{"n":3}]`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Received bool     `json:"received"`
		EventIDs []string `json:"eventIds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	require.Len(t, resp.EventIDs, 3)

	seen := make(map[string]bool)
	for _, id := range resp.EventIDs {
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "event ids must be unique")
		seen[id] = true
	}

	require.Len(t, f.bus.batches, 1, "a batch request maps to one bus batch")
	assert.Len(t, f.bus.batches[0], 3)
	assert.Equal(t, "t1", f.bus.headers["X-Tenant-Id"])
}

func TestIngestBatchTimeKeys(t *testing.T) {
	f := newFixture(t)

	body := `[{"n":1,"ts":"2026-01-02T00:00:00Z"},{"n":2}]`
	rec := f.post(ingestPath+"/events", body, map[string]string{
		handlers.HeaderEventTimeKey: "ts",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	first := decodeEnvelope(t, f.bus.batches[0][0])
	assert.Equal(t, "2026-01-02T00:00:00Z", first.Data.Metadata["event-time"])

	second := decodeEnvelope(t, f.bus.batches[0][1])
	_, has := second.Data.Metadata["event-time"]
	assert.False(t, has, "payloads without the named field carry no override")
}

func TestIngestBatchRejectsBadBodies(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"not an array", `{"n":1}`},
		{"empty array", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.post(ingestPath+"/events", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestIngestStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.Err = errors.New("store down")

	rec := f.post(ingestPath, `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.repo.Err = errors.New("store down")
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
