package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flowgate-systems/flowgate/internal/bus"
	"github.com/flowgate-systems/flowgate/internal/logging"
	"github.com/flowgate-systems/flowgate/internal/metrics"
)

// Subject layout: {prefix}.{resource}.{action}.{version}, for example
// "flowcore.data-core.created.0".
const (
	DefaultSubjectPrefix = "flowcore"
	DefaultQueue         = "flowgate-lifecycle"
	contractVersion      = "0"

	resourceDataCore  = "data-core"
	resourceFlowType  = "flow-type"
	resourceEventType = "event-type"

	actionCreated = "created"
	actionUpdated = "updated"
	actionDeleted = "deleted"
)

// handleTimeout bounds the projection work for one message.
const handleTimeout = 10 * time.Second

// envelope is the wire shape on the lifecycle subjects: the platform event
// identifier plus the resource payload.
type envelope struct {
	EventID string          `json:"eventId"`
	Payload json.RawMessage `json:"payload"`
}

// Subscriber consumes lifecycle subjects through queue subscriptions so that
// gateway replicas split the projection work instead of duplicating it.
type Subscriber struct {
	bus       *bus.Client
	projector *Projector
	logger    *logging.Logger
	prefix    string
	queue     string
	subs      []*nats.Subscription
}

func NewSubscriber(busClient *bus.Client, projector *Projector, logger *logging.Logger, prefix, queue string) *Subscriber {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &Subscriber{
		bus:       busClient,
		projector: projector,
		logger:    logger,
		prefix:    prefix,
		queue:     queue,
	}
}

// Start subscribes to all three resource subjects.
func (s *Subscriber) Start(ctx context.Context) error {
	for _, resource := range []string{resourceDataCore, resourceFlowType, resourceEventType} {
		subject := fmt.Sprintf("%s.%s.*.%s", s.prefix, resource, contractVersion)
		sub, err := s.bus.QueueSubscribe(ctx, subject, s.queue, s.handleMessage)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to start lifecycle subscriber: %w", err)
		}
		s.subs = append(s.subs, sub)
		s.logger.InfoContext(ctx, "subscribed to lifecycle subject", logging.Subject(subject))
	}
	return nil
}

// Stop drains the subscriptions. Safe to call on a partially started
// subscriber.
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("failed to unsubscribe lifecycle subject", logging.Error(err))
		}
	}
	s.subs = nil
}

func (s *Subscriber) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	resource, action, ok := parseSubject(msg.Subject)
	if !ok {
		s.logger.WarnContext(ctx, "unexpected lifecycle subject", logging.Subject(msg.Subject))
		return
	}

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.logger.ErrorContext(ctx, "failed to decode lifecycle event",
			logging.Subject(msg.Subject), logging.Error(err))
		return
	}

	if err := s.dispatch(ctx, resource, action, env); err != nil {
		s.logger.ErrorContext(ctx, "failed to project lifecycle event",
			logging.Subject(msg.Subject), logging.EventID(env.EventID), logging.Error(err))
		return
	}

	metrics.LifecycleEventsTotal.WithLabelValues(resource, action).Inc()
}

func (s *Subscriber) dispatch(ctx context.Context, resource, action string, env envelope) error {
	switch resource {
	case resourceDataCore:
		switch action {
		case actionCreated:
			return s.projector.HandleDataCoreCreated(ctx, env.Payload, env.EventID)
		case actionUpdated:
			return s.projector.HandleDataCoreUpdated(ctx, env.Payload, env.EventID)
		case actionDeleted:
			return s.projector.HandleDataCoreDeleted(ctx, env.Payload, env.EventID)
		}
	case resourceFlowType:
		switch action {
		case actionCreated:
			return s.projector.HandleFlowTypeCreated(ctx, env.Payload, env.EventID)
		case actionUpdated:
			return s.projector.HandleFlowTypeUpdated(ctx, env.Payload, env.EventID)
		case actionDeleted:
			return s.projector.HandleFlowTypeDeleted(ctx, env.Payload, env.EventID)
		}
	case resourceEventType:
		switch action {
		case actionCreated:
			return s.projector.HandleEventTypeCreated(ctx, env.Payload, env.EventID)
		case actionUpdated:
			return s.projector.HandleEventTypeUpdated(ctx, env.Payload, env.EventID)
		case actionDeleted:
			return s.projector.HandleEventTypeDeleted(ctx, env.Payload, env.EventID)
		}
	}
	return fmt.Errorf("no handler for %s.%s", resource, action)
}

// parseSubject extracts resource and action from
// "{prefix}.{resource}.{action}.{version}".
func parseSubject(subject string) (resource, action string, ok bool) {
	parts := strings.Split(subject, ".")
	if len(parts) != 4 {
		return "", "", false
	}
	return parts[1], parts[2], true
}
