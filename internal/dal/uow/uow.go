package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/iauditrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/icursorrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/postgres"
	auditrepo "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/repositories/audit/postgres"
	cursorrepo "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/repositories/cursor/postgres"
	outboxrepo "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/repositories/outbox/postgres"
)

type unitOfWork struct {
	client     *postgres.Client
	tx         pgx.Tx
	auditRepo  iauditrepo.IAuditRepository
	outboxRepo ioutboxrepo.IOutboxRepository
	cursorRepo icursorrepo.ICursorRepository
}

func (u *unitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return u.auditRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *unitOfWork) CursorRepository() icursorrepo.ICursorRepository {
	return u.cursorRepo
}

// NewUnitOfWork returns repositories bound to the pool until Begin is called.
func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	u := &unitOfWork{client: client}
	u.bind(client.Pool())

	return u
}

func (u *unitOfWork) bind(conn postgres.GenericConn) {
	u.auditRepo = auditrepo.NewAuditRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
	u.cursorRepo = cursorrepo.NewCursorRepository(conn)
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}

	return err
}
