package repository

import (
	"errors"

	repo "app/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// コミット時の整合性違反（一意制約・外部キー）はErrConflictにまとめる。
// 呼び出し側から見ればロールバック済みでリトライ可能
func translatePgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return repo.ErrConflict
		}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repo.ErrConflict
	}

	return err
}
