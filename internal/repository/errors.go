package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/invoice-lines/internal/common"
)

func dbError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.NewAppError("NOT_FOUND", op, common.ErrNotFound)
	}
	return common.NewAppError("DATABASE_ERROR", op, fmt.Errorf("%w: %w", common.ErrDatabase, err))
}
