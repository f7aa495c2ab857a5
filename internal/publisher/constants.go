package publisher

// Bus topic and header layout expected by the downstream ingestion consumer.
const (
	// TopicGuaranteedIngestion is the default publish topic.
	TopicGuaranteedIngestion = "guaranteed-ingestion-channel.1"

	// HeaderTenantID is the bus header carrying the tenant identifier,
	// attached identically to every message in a batch.
	HeaderTenantID = "X-Tenant-Id"
)

// Well-known metadata keys. Caller-supplied metadata is merged with these;
// the fixed keys always win.
const (
	MetadataProducer   = "producer"
	MetadataIngestedAt = "ingested-at"
	MetadataEventTime  = "event-time"
	MetadataValidTime  = "valid-time-on/stored-event"
)

// ProducerName is the fixed service identity stamped on every event.
const ProducerName = "flowgate-webhook-gateway"
