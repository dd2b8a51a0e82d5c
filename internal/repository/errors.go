package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

// PostgreSQL SQLSTATE
const (
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
	pgLockNotAvailable    = "55P03"
)

var domainErrors = []error{
	pkgerrors.ErrNotFound,
	pkgerrors.ErrConstraintViolation,
	pkgerrors.ErrInvalidMove,
	pkgerrors.ErrForbidden,
	pkgerrors.ErrStorageConflict,
}

// mapError 将驱动错误归入领域错误分类，已分类的错误原样返回
func mapError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", pkgerrors.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgCheckViolation:
			return fmt.Errorf("%w: %s", pkgerrors.ErrConstraintViolation, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", pkgerrors.ErrNotFound, pgErr.ConstraintName)
		case pgSerializationFail, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", pkgerrors.ErrStorageConflict, pgErr.Message)
		}
	}
	return err
}
