package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"colorgame/domain/events"
	"colorgame/infrastructure/observability"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// publishTimeout bounds one JetStream publish acknowledgement
const publishTimeout = 2 * time.Second

// NATSEventPublisher implements the EventPublisher interface using NATS
type NATSEventPublisher struct {
	natsClient    *NATSClient
	subjectMapper *EventSubjectMapper
	localHandlers *localHandlers
	metrics       *observability.MetricsProvider
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(natsClient *NATSClient, subjectMapper *EventSubjectMapper, metrics *observability.MetricsProvider) *NATSEventPublisher {
	return &NATSEventPublisher{
		natsClient:    natsClient,
		subjectMapper: subjectMapper,
		localHandlers: newLocalHandlers(),
		metrics:       metrics,
	}
}

// Publish publishes an event to NATS using the appropriate subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	p.localHandlers.dispatch(ctx, event)

	subject := p.subjectMapper.MapEventToSubject(event)
	envelope, data, err := newEnvelope(event)
	if err != nil {
		return err
	}

	if err := p.natsClient.Publish(ctx, subject, data); err != nil {
		// no stream bound to the subject; nobody is listening
		if errors.Is(err, nats.ErrNoStreamResponse) {
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	p.metrics.RecordEventPublished(string(event.Type()))

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}

// RegisterLocalHandler registers a handler invoked in-process for an event type
func (p *NATSEventPublisher) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	p.localHandlers.register(eventType, handler)
}

// EnsureGameEventStream ensures the colorgame_events stream exists with the correct subjects
func (p *NATSEventPublisher) EnsureGameEventStream() error {
	return p.natsClient.ensureStream("colorgame_events", p.subjectMapper.GetAllSubjects())
}
