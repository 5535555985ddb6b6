package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "reportcard/pkg/errors"
)

// PostgreSQL 错误码
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// ErrForeignKey 外键引用不存在
var ErrForeignKey = errors.New("引用的记录不存在")

// translateError 将驱动层错误翻译为仓储层哨兵错误，原始错误保留在错误链中
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %s", pkgerrors.ErrConflict, pgErr.Message)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrForeignKey, pgErr.ConstraintName)
	}
	return err
}
