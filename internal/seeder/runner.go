package seeder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/flowgate-systems/flowgate/internal/models"
	"github.com/flowgate-systems/flowgate/internal/repository"
)

// target is one seeded resource path the traffic phase can ingest against.
type target struct {
	Tenant    string
	DataCore  string
	FlowType  string
	EventType string
}

// Runner seeds the resource hierarchy into the store and then drives
// ingestion traffic through the gateway's HTTP endpoints.
type Runner struct {
	Config     *Config
	HTTPClient *http.Client
}

func NewRunner(cfg *Config) *Runner {
	return &Runner{
		Config: cfg,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Run executes both phases: hierarchy creation and traffic.
func (r *Runner) Run(ctx context.Context) error {
	gofakeit.Seed(time.Now().UnixNano())

	repo, err := repository.NewPostgresRepository(ctx, r.Config.Database.ConnString())
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer repo.Close()

	targets, err := r.seedHierarchy(ctx, repo)
	if err != nil {
		return err
	}
	log.Printf("Seeded %d resource paths", len(targets))

	if r.Config.Traffic.Events > 0 {
		if err := r.fireTraffic(ctx, targets); err != nil {
			return err
		}
	}
	return nil
}

// seedHierarchy writes tenants, data cores, flow types and event types per
// the configured fan-out and returns every full resource path.
func (r *Runner) seedHierarchy(ctx context.Context, repo repository.Repository) ([]target, error) {
	var targets []target

	for t := 0; t < r.Config.Hierarchy.Tenants; t++ {
		tenant := TenantName()

		for d := 0; d < r.Config.Hierarchy.DataCoresPerTenant; d++ {
			dc := &models.DataCore{
				ID:            uuid.New().String(),
				Tenant:        tenant,
				Name:          DataCoreName(),
				AccessControl: models.AccessControlPrivate,
			}
			if err := repo.UpsertDataCore(ctx, dc); err != nil {
				return nil, fmt.Errorf("failed to seed data core: %w", err)
			}

			for f := 0; f < r.Config.Hierarchy.FlowTypesPerCore; f++ {
				ft := &models.FlowType{
					ID:         uuid.New().String(),
					DataCoreID: dc.ID,
					Name:       FlowTypeName(),
				}
				if err := repo.UpsertFlowType(ctx, ft); err != nil {
					return nil, fmt.Errorf("failed to seed flow type: %w", err)
				}

				for e := 0; e < r.Config.Hierarchy.EventTypesPerFlow; e++ {
					et := &models.EventType{
						ID:         uuid.New().String(),
						FlowTypeID: ft.ID,
						Name:       EventTypeName(),
					}
					if err := repo.UpsertEventType(ctx, et); err != nil {
						return nil, fmt.Errorf("failed to seed event type: %w", err)
					}

					targets = append(targets, target{
						Tenant:    tenant,
						DataCore:  dc.Name,
						FlowType:  ft.Name,
						EventType: et.Name,
					})
				}
			}
		}
	}
	return targets, nil
}

// fireTraffic sends the configured number of events, batching where the
// batch size allows and mixing in single-event requests.
func (r *Runner) fireTraffic(ctx context.Context, targets []target) error {
	log.Printf("Sending %d events (batch size %d) to %s",
		r.Config.Traffic.Events, r.Config.Traffic.BatchSize, r.Config.Gateway.URL)

	sent := 0
	failed := 0
	for sent+failed < r.Config.Traffic.Events {
		tgt := targets[rand.Intn(len(targets))]
		remaining := r.Config.Traffic.Events - sent - failed

		n := r.Config.Traffic.BatchSize
		if n > remaining {
			n = remaining
		}

		var err error
		if n == 1 {
			err = r.sendSingle(ctx, tgt)
		} else {
			err = r.sendBatch(ctx, tgt, n)
		}
		if err != nil {
			log.Printf("Send failed: %v", err)
			failed += n
			continue
		}
		sent += n
	}

	log.Printf("Done: %d sent, %d failed", sent, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d events failed", failed, r.Config.Traffic.Events)
	}
	return nil
}

func (r *Runner) sendSingle(ctx context.Context, tgt target) error {
	body, err := json.Marshal(Payload())
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/ingest/%s/%s/%s/%s",
		r.Config.Gateway.URL, tgt.Tenant, tgt.DataCore, tgt.FlowType, tgt.EventType)
	return r.post(ctx, url, body)
}

func (r *Runner) sendBatch(ctx context.Context, tgt target, n int) error {
	payloads := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		payloads = append(payloads, Payload())
	}
	body, err := json.Marshal(payloads)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/ingest/%s/%s/%s/%s/events",
		r.Config.Gateway.URL, tgt.Tenant, tgt.DataCore, tgt.FlowType, tgt.EventType)
	return r.post(ctx, url, body)
}

func (r *Runner) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Config.Gateway.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Config.Gateway.Token)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
