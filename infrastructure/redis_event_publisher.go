package infrastructure

import (
	"context"
	"fmt"

	"colorgame/domain/events"
	"colorgame/infrastructure/observability"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ConnectRedis opens a client and checks the server is reachable
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.WithField("addr", addr).Info("Connected to Redis")
	return rdb, nil
}

// RedisEventPublisher publishes envelopes on Redis pub/sub channels named
// after the event subjects
type RedisEventPublisher struct {
	client        *redis.Client
	subjectMapper *EventSubjectMapper
	localHandlers *localHandlers
	metrics       *observability.MetricsProvider
}

// NewRedisEventPublisher creates a new Redis event publisher
func NewRedisEventPublisher(client *redis.Client, subjectMapper *EventSubjectMapper, metrics *observability.MetricsProvider) *RedisEventPublisher {
	return &RedisEventPublisher{
		client:        client,
		subjectMapper: subjectMapper,
		localHandlers: newLocalHandlers(),
		metrics:       metrics,
	}
}

// Publish publishes an event on its channel
func (p *RedisEventPublisher) Publish(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	p.localHandlers.dispatch(ctx, event)

	channel := p.subjectMapper.MapEventToSubject(event)
	envelope, data, err := newEnvelope(event)
	if err != nil {
		return err
	}

	receivers, err := p.client.Publish(ctx, channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event to redis: %w", err)
	}

	p.metrics.RecordEventPublished(string(event.Type()))

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"channel":   channel,
		"receivers": receivers,
	}).Debug("Successfully published event to Redis")

	return nil
}

// RegisterLocalHandler registers a handler invoked in-process for an event type
func (p *RedisEventPublisher) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	p.localHandlers.register(eventType, handler)
}
