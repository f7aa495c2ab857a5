package repository

import (
	"context"
	"sync"
	"time"

	"github.com/flowgate-systems/flowgate/internal/models"
)

// InMemoryRepository is a Repository double for tests and local development.
type InMemoryRepository struct {
	dataCores  map[string]*models.DataCore
	flowTypes  map[string]*models.FlowType
	eventTypes map[string]*models.EventType
	mu         sync.RWMutex

	// Err, when set, is returned by every read so tests can simulate an
	// unavailable store.
	Err error
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		dataCores:  make(map[string]*models.DataCore),
		flowTypes:  make(map[string]*models.FlowType),
		eventTypes: make(map[string]*models.EventType),
	}
}

func (r *InMemoryRepository) Ping(ctx context.Context) error { return r.Err }

func (r *InMemoryRepository) Close() {}

func (r *InMemoryRepository) DataCoreByName(ctx context.Context, tenant, name string) (*models.DataCore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	for _, dc := range r.dataCores {
		if dc.Tenant == tenant && dc.Name == name {
			cp := *dc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) FlowTypeByName(ctx context.Context, dataCoreID, name string) (*models.FlowType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	for _, ft := range r.flowTypes {
		if ft.DataCoreID == dataCoreID && ft.Name == name {
			cp := *ft
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) EventTypeByName(ctx context.Context, flowTypeID, name string) (*models.EventType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	for _, et := range r.eventTypes {
		if et.FlowTypeID == flowTypeID && et.Name == name {
			cp := *et
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) DataCoreByID(ctx context.Context, id string) (*models.DataCore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	dc, exists := r.dataCores[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *dc
	return &cp, nil
}

func (r *InMemoryRepository) FlowTypeByID(ctx context.Context, id string) (*models.FlowType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	ft, exists := r.flowTypes[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *ft
	return &cp, nil
}

func (r *InMemoryRepository) EventTypeByID(ctx context.Context, id string) (*models.EventType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	et, exists := r.eventTypes[id]
	if !exists {
		return nil, ErrNotFound
	}
	cp := *et
	return &cp, nil
}

func (r *InMemoryRepository) UpsertDataCore(ctx context.Context, dc *models.DataCore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *dc
	now := time.Now()
	if existing, exists := r.dataCores[dc.ID]; exists {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.dataCores[dc.ID] = &cp
	return nil
}

func (r *InMemoryRepository) UpdateDataCore(ctx context.Context, id string, upd DataCoreUpdate, sourceEventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc, exists := r.dataCores[id]
	if !exists {
		return ErrNotFound
	}
	if upd.Name != nil {
		dc.Name = *upd.Name
	}
	if upd.DeleteProtection != nil {
		dc.DeleteProtection = *upd.DeleteProtection
	}
	if upd.AccessControl != nil {
		dc.AccessControl = *upd.AccessControl
	}
	dc.SourceEventID = sourceEventID
	dc.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) DeleteDataCore(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.dataCores, id)
	return nil
}

func (r *InMemoryRepository) UpsertFlowType(ctx context.Context, ft *models.FlowType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *ft
	now := time.Now()
	if existing, exists := r.flowTypes[ft.ID]; exists {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.flowTypes[ft.ID] = &cp
	return nil
}

func (r *InMemoryRepository) UpdateFlowTypeName(ctx context.Context, id, name, sourceEventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ft, exists := r.flowTypes[id]
	if !exists {
		return ErrNotFound
	}
	ft.Name = name
	ft.SourceEventID = sourceEventID
	ft.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) DeleteFlowType(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.flowTypes, id)
	return nil
}

func (r *InMemoryRepository) UpsertEventType(ctx context.Context, et *models.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *et
	now := time.Now()
	if existing, exists := r.eventTypes[et.ID]; exists {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.eventTypes[et.ID] = &cp
	return nil
}

func (r *InMemoryRepository) UpdateEventTypeName(ctx context.Context, id, name, sourceEventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	et, exists := r.eventTypes[id]
	if !exists {
		return ErrNotFound
	}
	et.Name = name
	et.SourceEventID = sourceEventID
	et.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) DeleteEventType(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.eventTypes, id)
	return nil
}
