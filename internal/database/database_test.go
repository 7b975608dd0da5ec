package database_test

import (
	"context"
	"testing"

	"recipebox/internal/database"
	"recipebox/internal/models"
	"recipebox/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate_CommentsWithUsersView(t *testing.T) {
	db := testutil.NewTestDB(t)
	ada := testutil.CreateUser(t, db, "ada@example.com", "Ada Lovelace")
	bob := testutil.CreateUser(t, db, "bob@example.com", "")
	recipe := testutil.CreateRecipe(t, db, ada.ID, "Bread")

	require.NoError(t, db.Create(&models.Comment{RecipeID: recipe.ID, UserID: ada.ID, Text: "first"}).Error)
	require.NoError(t, db.Create(&models.Comment{RecipeID: recipe.ID, UserID: bob.ID, Text: "second"}).Error)

	var rows []models.CommentWithUser
	require.NoError(t, db.Where("recipe_id = ?", recipe.ID).Order("created_at ASC").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, "ada@example.com", rows[0].UserEmail)
	require.NotNil(t, rows[0].UserFullName)
	assert.Equal(t, "Ada Lovelace", *rows[0].UserFullName)
	assert.Equal(t, "bob@example.com", rows[1].UserEmail)
	assert.Equal(t, "bob@example.com", rows[1].AuthorName())
}

func TestAutoMigrate_CommentRequiresRecipe(t *testing.T) {
	db := testutil.NewTestDB(t)
	ada := testutil.CreateUser(t, db, "ada@example.com", "")

	err := db.Create(&models.Comment{RecipeID: "missing", UserID: ada.ID, Text: "orphan"}).Error
	assert.Error(t, err)
}

func TestAutoMigrate_RecipeDeleteCascadesComments(t *testing.T) {
	db := testutil.NewTestDB(t)
	ada := testutil.CreateUser(t, db, "ada@example.com", "")
	recipe := testutil.CreateRecipe(t, db, ada.ID, "Soup")
	require.NoError(t, db.Create(&models.Comment{RecipeID: recipe.ID, UserID: ada.ID, Text: "yum"}).Error)

	require.NoError(t, db.Delete(&models.Recipe{}, "id = ?", recipe.ID).Error)

	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Where("recipe_id = ?", recipe.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	assert.NoError(t, database.AutoMigrate(context.Background(), db))
}

func TestGetMigrations(t *testing.T) {
	migrations, err := database.GetMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "000001_initial_schema", migrations[0].String())
	assert.Contains(t, migrations[0].UpScript, "comments_with_users")
	assert.Contains(t, migrations[0].DownScript, "DROP TABLE IF EXISTS comments")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}
