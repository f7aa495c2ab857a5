// Package lifecycle consumes platform resource events off the message bus
// and projects them into the local resource store, keeping the validation
// caches coherent as data cores, flow types and event types change upstream.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgate-systems/flowgate/internal/logging"
	"github.com/flowgate-systems/flowgate/internal/models"
	"github.com/flowgate-systems/flowgate/internal/repository"
)

// Invalidator is the cache surface the projector notifies after a projection
// lands. Invalidation failures are logged and swallowed; the store is the
// source of truth and caches recover via TTL.
type Invalidator interface {
	InvalidateDataCore(ctx context.Context, tenant, dataCoreName string) error
	InvalidateFlowType(ctx context.Context, dataCoreID, flowTypeName string) error
	InvalidateEventType(ctx context.Context, flowTypeID, eventTypeName string) error
}

// Event payload shapes on the lifecycle subjects. Updated events carry only
// the fields that changed; pointers distinguish absent from zero.

type DataCoreCreated struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Tenant           string               `json:"tenant"`
	DeleteProtection bool                 `json:"deleteProtection"`
	AccessControl    models.AccessControl `json:"accessControl"`
	CreatedAt        string               `json:"createdAt"`
}

type DataCoreUpdated struct {
	ID               string                `json:"id"`
	Name             *string               `json:"name,omitempty"`
	DeleteProtection *bool                 `json:"deleteProtection,omitempty"`
	AccessControl    *models.AccessControl `json:"accessControl,omitempty"`
	UpdatedAt        string                `json:"updatedAt"`
}

type FlowTypeCreated struct {
	ID         string `json:"id"`
	DataCoreID string `json:"dataCoreId"`
	Name       string `json:"name"`
	CreatedAt  string `json:"createdAt"`
}

type FlowTypeUpdated struct {
	ID        string  `json:"id"`
	Name      *string `json:"name,omitempty"`
	UpdatedAt string  `json:"updatedAt"`
}

type EventTypeCreated struct {
	ID         string `json:"id"`
	FlowTypeID string `json:"flowTypeId"`
	Name       string `json:"name"`
	CreatedAt  string `json:"createdAt"`
}

type EventTypeUpdated struct {
	ID        string  `json:"id"`
	Name      *string `json:"name,omitempty"`
	UpdatedAt string  `json:"updatedAt"`
}

type ResourceDeleted struct {
	ID        string `json:"id"`
	DeletedAt string `json:"deletedAt"`
}

// Projector applies lifecycle events to the store and then invalidates the
// affected cache entries.
type Projector struct {
	repo        repository.Repository
	invalidator Invalidator
	logger      *logging.Logger
}

func NewProjector(repo repository.Repository, invalidator Invalidator, logger *logging.Logger) *Projector {
	return &Projector{
		repo:        repo,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (p *Projector) HandleDataCoreCreated(ctx context.Context, data []byte, sourceEventID string) error {
	var payload DataCoreCreated
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal data core created event: %w", err)
	}

	dc := &models.DataCore{
		ID:               payload.ID,
		Tenant:           payload.Tenant,
		Name:             payload.Name,
		DeleteProtection: payload.DeleteProtection,
		AccessControl:    payload.AccessControl,
		SourceEventID:    sourceEventID,
	}
	if err := p.repo.UpsertDataCore(ctx, dc); err != nil {
		return fmt.Errorf("failed to project data core %s: %w", payload.ID, err)
	}

	p.invalidateDataCore(ctx, payload.Tenant, payload.Name)
	return nil
}

func (p *Projector) HandleDataCoreUpdated(ctx context.Context, data []byte, sourceEventID string) error {
	var payload DataCoreUpdated
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal data core updated event: %w", err)
	}

	upd := repository.DataCoreUpdate{
		Name:             payload.Name,
		DeleteProtection: payload.DeleteProtection,
		AccessControl:    payload.AccessControl,
	}
	if err := p.repo.UpdateDataCore(ctx, payload.ID, upd, sourceEventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Update for a row we never projected; nothing to do.
			p.logger.WarnContext(ctx, "update for unknown data core", slog.String("id", payload.ID))
			return nil
		}
		return fmt.Errorf("failed to update data core %s: %w", payload.ID, err)
	}

	dc, err := p.repo.DataCoreByID(ctx, payload.ID)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load data core for invalidation", logging.Error(err))
		return nil
	}
	p.invalidateDataCore(ctx, dc.Tenant, dc.Name)
	return nil
}

func (p *Projector) HandleDataCoreDeleted(ctx context.Context, data []byte, _ string) error {
	var payload ResourceDeleted
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal data core deleted event: %w", err)
	}

	// Read before delete; invalidation needs the natural names.
	dc, err := p.repo.DataCoreByID(ctx, payload.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to load data core %s: %w", payload.ID, err)
	}

	if err := p.repo.DeleteDataCore(ctx, payload.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete data core %s: %w", payload.ID, err)
	}

	if dc != nil {
		p.invalidateDataCore(ctx, dc.Tenant, dc.Name)
	}
	return nil
}

func (p *Projector) HandleFlowTypeCreated(ctx context.Context, data []byte, sourceEventID string) error {
	var payload FlowTypeCreated
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal flow type created event: %w", err)
	}

	ft := &models.FlowType{
		ID:            payload.ID,
		DataCoreID:    payload.DataCoreID,
		Name:          payload.Name,
		SourceEventID: sourceEventID,
	}
	if err := p.repo.UpsertFlowType(ctx, ft); err != nil {
		return fmt.Errorf("failed to project flow type %s: %w", payload.ID, err)
	}

	p.invalidateFlowType(ctx, payload.DataCoreID, payload.Name)
	return nil
}

func (p *Projector) HandleFlowTypeUpdated(ctx context.Context, data []byte, sourceEventID string) error {
	var payload FlowTypeUpdated
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal flow type updated event: %w", err)
	}
	if payload.Name == nil {
		return nil
	}

	if err := p.repo.UpdateFlowTypeName(ctx, payload.ID, *payload.Name, sourceEventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.logger.WarnContext(ctx, "update for unknown flow type", slog.String("id", payload.ID))
			return nil
		}
		return fmt.Errorf("failed to update flow type %s: %w", payload.ID, err)
	}

	ft, err := p.repo.FlowTypeByID(ctx, payload.ID)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load flow type for invalidation", logging.Error(err))
		return nil
	}
	p.invalidateFlowType(ctx, ft.DataCoreID, ft.Name)
	return nil
}

func (p *Projector) HandleFlowTypeDeleted(ctx context.Context, data []byte, _ string) error {
	var payload ResourceDeleted
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal flow type deleted event: %w", err)
	}

	ft, err := p.repo.FlowTypeByID(ctx, payload.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to load flow type %s: %w", payload.ID, err)
	}

	if err := p.repo.DeleteFlowType(ctx, payload.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete flow type %s: %w", payload.ID, err)
	}

	if ft != nil {
		p.invalidateFlowType(ctx, ft.DataCoreID, ft.Name)
	}
	return nil
}

func (p *Projector) HandleEventTypeCreated(ctx context.Context, data []byte, sourceEventID string) error {
	var payload EventTypeCreated
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal event type created event: %w", err)
	}

	et := &models.EventType{
		ID:            payload.ID,
		FlowTypeID:    payload.FlowTypeID,
		Name:          payload.Name,
		SourceEventID: sourceEventID,
	}
	if err := p.repo.UpsertEventType(ctx, et); err != nil {
		return fmt.Errorf("failed to project event type %s: %w", payload.ID, err)
	}

	p.invalidateEventType(ctx, payload.FlowTypeID, payload.Name)
	return nil
}

func (p *Projector) HandleEventTypeUpdated(ctx context.Context, data []byte, sourceEventID string) error {
	var payload EventTypeUpdated
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal event type updated event: %w", err)
	}
	if payload.Name == nil {
		return nil
	}

	if err := p.repo.UpdateEventTypeName(ctx, payload.ID, *payload.Name, sourceEventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			p.logger.WarnContext(ctx, "update for unknown event type", slog.String("id", payload.ID))
			return nil
		}
		return fmt.Errorf("failed to update event type %s: %w", payload.ID, err)
	}

	et, err := p.repo.EventTypeByID(ctx, payload.ID)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load event type for invalidation", logging.Error(err))
		return nil
	}
	p.invalidateEventType(ctx, et.FlowTypeID, et.Name)
	return nil
}

func (p *Projector) HandleEventTypeDeleted(ctx context.Context, data []byte, _ string) error {
	var payload ResourceDeleted
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal event type deleted event: %w", err)
	}

	et, err := p.repo.EventTypeByID(ctx, payload.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to load event type %s: %w", payload.ID, err)
	}

	if err := p.repo.DeleteEventType(ctx, payload.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete event type %s: %w", payload.ID, err)
	}

	if et != nil {
		p.invalidateEventType(ctx, et.FlowTypeID, et.Name)
	}
	return nil
}

func (p *Projector) invalidateDataCore(ctx context.Context, tenant, name string) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.InvalidateDataCore(ctx, tenant, name); err != nil {
		p.logger.WarnContext(ctx, "failed to invalidate data core cache", logging.Error(err))
	}
}

func (p *Projector) invalidateFlowType(ctx context.Context, dataCoreID, name string) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.InvalidateFlowType(ctx, dataCoreID, name); err != nil {
		p.logger.WarnContext(ctx, "failed to invalidate flow type cache", logging.Error(err))
	}
}

func (p *Projector) invalidateEventType(ctx context.Context, flowTypeID, name string) {
	if p.invalidator == nil {
		return
	}
	if err := p.invalidator.InvalidateEventType(ctx, flowTypeID, name); err != nil {
		p.logger.WarnContext(ctx, "failed to invalidate event type cache", logging.Error(err))
	}
}
