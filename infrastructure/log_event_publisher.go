package infrastructure

import (
	"colorgame/domain/events"
	"colorgame/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// LogEventPublisher backs EVENT_BACKEND=none. Events never leave the process;
// they are written to the debug log and counted.
type LogEventPublisher struct {
	metrics *observability.MetricsProvider
}

// NewLogEventPublisher creates a publisher without a broker. metrics may be nil.
func NewLogEventPublisher(metrics *observability.MetricsProvider) *LogEventPublisher {
	return &LogEventPublisher{metrics: metrics}
}

func (p *LogEventPublisher) Publish(event events.Event) error {
	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"event":     event,
	}).Debug("Event dropped, no broker configured")

	p.metrics.RecordEventPublished(string(event.Type()))
	return nil
}
