package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipebox/internal/models"
	"recipebox/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var commentViewColumns = []string{"id", "recipe_id", "user_id", "text", "created_at", "user_email", "user_full_name"}

func TestCommentRepository_ListWithUsers(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "comments_with_users" WHERE recipe_id = \$1 ORDER BY created_at ASC`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(commentViewColumns).
			AddRow("c1", "r1", "u1", "first", now, "ada@example.com", "Ada").
			AddRow("c2", "r1", "u2", "second", now.Add(time.Second), "bob@example.com", nil))

	rows, err := repo.ListWithUsers(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c1", rows[0].ID)
	assert.Equal(t, "Ada", *rows[0].UserFullName)
	assert.Nil(t, rows[1].UserFullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_GetWithUser(t *testing.T) {
	tests := []struct {
		name      string
		behavior  func(sqlmock.Sqlmock)
		expectErr error
	}{
		{
			name: "Found",
			behavior: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT \* FROM "comments_with_users" WHERE id = \$1`).
					WillReturnRows(sqlmock.NewRows(commentViewColumns).
						AddRow("c1", "r1", "u1", "hello", time.Now(), "ada@example.com", nil))
			},
		},
		{
			name: "Not found",
			behavior: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT \* FROM "comments_with_users" WHERE id = \$1`).
					WillReturnRows(sqlmock.NewRows(commentViewColumns))
			},
			expectErr: gorm.ErrRecordNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.behavior(mock)

			row, err := NewCommentRepository(db).GetWithUser(context.Background(), "c1")
			if tt.expectErr != nil {
				assert.True(t, errors.Is(err, tt.expectErr))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "hello", row.Text)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCommentRepository_DeleteOwned(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "comments" WHERE id = \$1 AND user_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recipe_id", "user_id", "text", "created_at"}).
			AddRow("c1", "r1", "u1", "hello", time.Now()))
	mock.ExpectExec(`DELETE FROM "comments" WHERE id = \$1 AND user_id = \$2`).
		WithArgs("c1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.DeleteOwned(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "r1", deleted.RecipeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_DeleteOwned_OtherAuthor(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	ada := testutil.CreateUser(t, db, "ada@example.com", "")
	bob := testutil.CreateUser(t, db, "bob@example.com", "")
	recipe := testutil.CreateRecipe(t, db, ada.ID, "Stew")

	comment := &models.Comment{RecipeID: recipe.ID, UserID: ada.ID, Text: "mine"}
	require.NoError(t, repo.Create(ctx, comment))

	_, err := repo.DeleteOwned(ctx, comment.ID, bob.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	rows, err := repo.ListWithUsers(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = repo.DeleteOwned(ctx, comment.ID, ada.ID)
	require.NoError(t, err)
	rows, err = repo.ListWithUsers(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
