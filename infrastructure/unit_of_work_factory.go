package infrastructure

import (
	"time"

	"colorgame/application"
	"colorgame/database"
	"colorgame/domain/events"
	"colorgame/domain/interfaces"
	"colorgame/repository"
)

// localHandlerRegistrar is implemented by publishers that can dispatch events in process
type localHandlerRegistrar interface {
	RegisterLocalHandler(eventType events.EventType, handler EventHandler)
}

// UnitOfWorkFactory implements application.UnitOfWorkFactory. Every unit of
// work it creates queues its events until commit.
type UnitOfWorkFactory struct {
	repoFactory interface {
		CreateWithPublisher(transactionalPublisher interfaces.TransactionalEventPublisher) application.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory
func NewUnitOfWorkFactory(db *database.DB, eventPublisher interfaces.EventPublisher, lockTimeout time.Duration) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repository.NewUnitOfWorkFactory(db, lockTimeout),
		eventPublisher: eventPublisher,
	}
}

// RegisterLocalHandler registers a handler invoked in process for committed events
func (f *UnitOfWorkFactory) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	if registrar, ok := f.eventPublisher.(localHandlerRegistrar); ok {
		registrar.RegisterLocalHandler(eventType, handler)
	}
}

// Create creates a new UnitOfWork with its own transactional publisher
func (f *UnitOfWorkFactory) Create() application.UnitOfWork {
	transactionalPublisher := NewNATSTransactionalPublisher(f.eventPublisher)

	return &publishingUnitOfWork{
		UnitOfWork: f.repoFactory.CreateWithPublisher(transactionalPublisher),
		outbox:     transactionalPublisher,
	}
}
