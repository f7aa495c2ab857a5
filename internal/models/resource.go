package models

import "time"

// AccessControl restricts who may read a data core.
type AccessControl string

const (
	AccessControlPublic  AccessControl = "public"
	AccessControlPrivate AccessControl = "private"
)

// DataCore is the top level of the resource hierarchy, owned by a tenant.
type DataCore struct {
	ID               string        `json:"id"`
	Tenant           string        `json:"tenant"`
	Name             string        `json:"name"`
	DeleteProtection bool          `json:"deleteProtection"`
	AccessControl    AccessControl `json:"accessControl"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	SourceEventID    string        `json:"sourceEventId,omitempty"`
}

// FlowType groups event types under a data core.
type FlowType struct {
	ID            string    `json:"id"`
	DataCoreID    string    `json:"dataCoreId"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	SourceEventID string    `json:"sourceEventId,omitempty"`
}

// EventType is the leaf of the hierarchy that ingestion targets.
type EventType struct {
	ID            string    `json:"id"`
	FlowTypeID    string    `json:"flowTypeId"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	SourceEventID string    `json:"sourceEventId,omitempty"`
}

// ResourceIDs is the resolved result of a validation lookup. All three
// identifiers are present together or the lookup failed as a whole.
type ResourceIDs struct {
	DataCoreID  string `json:"dataCoreId"`
	FlowTypeID  string `json:"flowTypeId"`
	EventTypeID string `json:"eventTypeId"`
}
