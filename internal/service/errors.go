// Package service holds the business rules behind the HTTP handlers: recipe
// ownership, comment publication on the change feed and account management.
package service

import (
	"context"
	"errors"

	"recipebox/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the services react to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// ChangePublisher emits row changes to change-feed subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, ev models.ChangeEvent)
}

// translateError maps persistence errors onto AppErrors. resource and id name
// the row the caller was after and feed the NOT_FOUND message.
func translateError(err error, resource string, id any) error {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.NewConflictError(resource + " already exists")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return models.NewConflictError(resource + " already exists")
		case pgForeignKeyViolation:
			return models.NewNotFoundError(resource, id)
		}
	}

	return models.NewInternalError(err)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.ChangeEvent) {}
