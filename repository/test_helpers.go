package repository

import (
	"colorgame/application"
	"colorgame/database"
	"colorgame/domain/interfaces"
)

// CreateTestUnitOfWork creates a unit of work for testing with the provided transactional publisher
func CreateTestUnitOfWork(db *database.DB, transactionalPublisher interfaces.TransactionalEventPublisher) application.UnitOfWork {
	return NewUnitOfWorkFactory(db, 0).CreateWithPublisher(transactionalPublisher)
}
