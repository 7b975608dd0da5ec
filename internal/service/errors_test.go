package service

import (
	"errors"
	"fmt"
	"testing"

	"recipebox/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestTranslateError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"record not found", gorm.ErrRecordNotFound, models.CodeNotFound},
		{"wrapped record not found", fmt.Errorf("get: %w", gorm.ErrRecordNotFound), models.CodeNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, models.CodeConflict},
		{"foreign key", gorm.ErrForeignKeyViolated, models.CodeNotFound},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, models.CodeConflict},
		{"pg foreign key violation", &pgconn.PgError{Code: "23503"}, models.CodeNotFound},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, models.CodeInternal},
		{"plain error", errors.New("boom"), models.CodeInternal},
		{"app error passes through", models.NewForbiddenError("nope"), models.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assertAppError(t, translateError(tt.err, "Recipe", "r1"), tt.code)
		})
	}

	assert.NoError(t, translateError(nil, "Recipe", "r1"))
}
