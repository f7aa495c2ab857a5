package logging

import "log/slog"

// Common field names for consistent logging across the gateway.
const (
	FieldService  = "service"
	FieldTenant   = "tenant"
	FieldDataCore = "data_core"
	FieldFlowType = "flow_type"
	FieldEvent    = "event_type"
	FieldEventID  = "event_id"
	FieldSubject  = "subject"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Tenant returns a slog attribute for the tenant identifier.
func Tenant(tenant string) slog.Attr {
	return slog.String(FieldTenant, tenant)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Subject returns a slog attribute for a bus subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
