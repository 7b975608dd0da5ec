package repository

import (
	"context"
	"testing"
	"time"

	"recipebox/internal/models"
	"recipebox/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByEmail(t *testing.T) {
	tests := []struct {
		name     string
		behavior func(sqlmock.Sqlmock)
		wantUser bool
	}{
		{
			name: "Found",
			behavior: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
					WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password", "created_at", "updated_at"}).
						AddRow("u1", "ada@example.com", "hash", time.Now(), time.Now()))
			},
			wantUser: true,
		},
		{
			name: "Missing returns nil without error",
			behavior: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.behavior(mock)

			user, err := NewUserRepository(db).GetByEmail(context.Background(), "ada@example.com")
			require.NoError(t, err)
			if tt.wantUser {
				require.NotNil(t, user)
				assert.Equal(t, "u1", user.ID)
			} else {
				assert.Nil(t, user)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateWithProfile(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	name := "Ada Lovelace"
	user := &models.User{Email: "ada@example.com", Password: "hash"}
	require.NoError(t, repo.CreateWithProfile(ctx, user, &models.Profile{FullName: &name}))
	assert.NotEmpty(t, user.ID)

	profile, err := repo.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "Ada Lovelace", profile.DisplayName())

	dup := &models.User{Email: "ada@example.com", Password: "hash"}
	assert.Error(t, repo.CreateWithProfile(ctx, dup, &models.Profile{}))

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.Password)
}
