package infrastructure

import (
	"context"

	"colorgame/application"
	"colorgame/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// publishingUnitOfWork is a repository unit of work whose queued events leave
// the process only once its transaction has committed. Repository getters and
// savepoints come from the embedded unit of work.
type publishingUnitOfWork struct {
	application.UnitOfWork

	outbox interfaces.TransactionalEventPublisher
	ctx    context.Context
}

func (u *publishingUnitOfWork) Begin(ctx context.Context) error {
	u.ctx = ctx
	return u.UnitOfWork.Begin(ctx)
}

// Commit flushes the outbox after a successful commit. A failed commit drops it.
func (u *publishingUnitOfWork) Commit() error {
	if err := u.UnitOfWork.Commit(); err != nil {
		u.outbox.Discard()
		return err
	}

	if err := u.outbox.Flush(u.ctx); err != nil {
		log.WithError(err).Error("Committed transaction but failed to flush its events")
	}
	return nil
}

func (u *publishingUnitOfWork) Rollback() error {
	u.outbox.Discard()
	return u.UnitOfWork.Rollback()
}

func (u *publishingUnitOfWork) EventBus() interfaces.EventPublisher {
	return u.outbox
}
