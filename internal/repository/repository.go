package repository

import (
	"context"
	"errors"

	"github.com/flowgate-systems/flowgate/internal/models"
)

// ErrNotFound signals that a resource row does not exist. It is an expected
// outcome, distinct from infrastructure failures, and is never wrapped in
// additional context by implementations.
var ErrNotFound = errors.New("resource not found")

// DataCoreUpdate carries the optional fields of a data core update. Nil
// fields are left untouched.
type DataCoreUpdate struct {
	Name             *string
	DeleteProtection *bool
	AccessControl    *models.AccessControl
}

// Repository is the query/mutate interface over the resource hierarchy.
// The read path (ByName lookups) serves validation; the mutate path serves
// the lifecycle-event projection.
type Repository interface {
	DataCoreByName(ctx context.Context, tenant, name string) (*models.DataCore, error)
	FlowTypeByName(ctx context.Context, dataCoreID, name string) (*models.FlowType, error)
	EventTypeByName(ctx context.Context, flowTypeID, name string) (*models.EventType, error)

	DataCoreByID(ctx context.Context, id string) (*models.DataCore, error)
	FlowTypeByID(ctx context.Context, id string) (*models.FlowType, error)
	EventTypeByID(ctx context.Context, id string) (*models.EventType, error)

	UpsertDataCore(ctx context.Context, dc *models.DataCore) error
	UpdateDataCore(ctx context.Context, id string, upd DataCoreUpdate, sourceEventID string) error
	DeleteDataCore(ctx context.Context, id string) error

	UpsertFlowType(ctx context.Context, ft *models.FlowType) error
	UpdateFlowTypeName(ctx context.Context, id, name, sourceEventID string) error
	DeleteFlowType(ctx context.Context, id string) error

	UpsertEventType(ctx context.Context, et *models.EventType) error
	UpdateEventTypeName(ctx context.Context, id, name, sourceEventID string) error
	DeleteEventType(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close()
}
