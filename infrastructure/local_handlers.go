package infrastructure

import (
	"context"
	"sync"

	"colorgame/domain/events"

	log "github.com/sirupsen/logrus"
)

// EventHandler handles an event inside the publishing process
type EventHandler func(context.Context, events.Event) error

// localHandlers dispatches events to in-process handlers before they leave
// for the broker. Handler errors are logged and never stop publishing.
type localHandlers struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]EventHandler
}

func newLocalHandlers() *localHandlers {
	return &localHandlers{handlers: make(map[events.EventType][]EventHandler)}
}

func (l *localHandlers) register(eventType events.EventType, handler EventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handlers[eventType] = append(l.handlers[eventType], handler)
	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(l.handlers[eventType]),
	}).Info("Registered local event handler")
}

func (l *localHandlers) dispatch(ctx context.Context, event events.Event) {
	l.mu.RLock()
	handlers := l.handlers[event.Type()]
	l.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Local event handler failed")
		}
	}
}
