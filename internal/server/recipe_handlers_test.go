package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recipebox/internal/models"
	"recipebox/internal/storage"
	"recipebox/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRecipe_JSON(t *testing.T) {
	env := newTestServer(t)
	user := testutil.CreateUser(t, env.db, "cook@example.com", "Cook")
	token := tokenFor(t, user)

	resp := env.do(t, http.MethodPost, "/api/recipes", "", fiber.Map{"title": "Soup"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/recipes", token, fiber.Map{
		"title":        "  Soup ",
		"description":  "Warm",
		"ingredients":  "water",
		"instructions": "boil",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	recipe := decode[models.Recipe](t, resp)
	assert.Equal(t, "Soup", recipe.Title)
	assert.Equal(t, user.ID, recipe.UserID)
	assert.Nil(t, recipe.ImageURL)

	resp = env.do(t, http.MethodPost, "/api/recipes", token, fiber.Map{"title": "No body"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateRecipe_MultipartWithImage(t *testing.T) {
	env := newTestServer(t)
	user := testutil.CreateUser(t, env.db, "cook@example.com", "Cook")

	body, contentType := multipartBody(t, map[string]string{
		"title":        "Bread",
		"ingredients":  "flour",
		"instructions": "bake",
	}, "loaf.png", testutil.PNGBytes(t, 8, 8))
	req := httptest.NewRequest(http.MethodPost, "/api/recipes", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tokenFor(t, user))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	recipe := decode[models.Recipe](t, resp)
	require.NotNil(t, recipe.ImageURL)
	require.NotNil(t, recipe.ImagePath)
	assert.True(t, strings.HasPrefix(*recipe.ImagePath, storage.ImageFolder+"/"))
	assert.True(t, strings.HasSuffix(*recipe.ImagePath, ".png"))

	// The stored object is served from the bucket route.
	resp = env.do(t, http.MethodGet, "/storage/"+env.store.Bucket()+"/"+*recipe.ImagePath, "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateRecipe_RejectsNonImage(t *testing.T) {
	env := newTestServer(t)
	user := testutil.CreateUser(t, env.db, "cook@example.com", "Cook")

	body, contentType := multipartBody(t, map[string]string{
		"title":        "Bread",
		"ingredients":  "flour",
		"instructions": "bake",
	}, "notes.txt", []byte("just some text"))
	req := httptest.NewRequest(http.MethodPost, "/api/recipes", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tokenFor(t, user))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var count int64
	require.NoError(t, env.db.Model(&models.Recipe{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetRecipes(t *testing.T) {
	env := newTestServer(t)
	ada := testutil.CreateUser(t, env.db, "ada@example.com", "Ada")
	bob := testutil.CreateUser(t, env.db, "bob@example.com", "")
	testutil.CreateRecipe(t, env.db, ada.ID, "Bread")
	testutil.CreateRecipe(t, env.db, bob.ID, "Soup")
	testutil.CreateRecipe(t, env.db, ada.ID, "Cake")

	resp := env.do(t, http.MethodGet, "/api/recipes", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Recipe](t, resp), 3)

	resp = env.do(t, http.MethodGet, "/api/recipes?limit=2", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Recipe](t, resp), 2)

	resp = env.do(t, http.MethodGet, "/api/users/me/recipes", tokenFor(t, ada), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	mine := decode[[]models.Recipe](t, resp)
	require.Len(t, mine, 2)
	for _, r := range mine {
		assert.Equal(t, ada.ID, r.UserID)
	}

	resp = env.do(t, http.MethodGet, "/api/users/me/recipes", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGetRecipe(t *testing.T) {
	env := newTestServer(t)
	ada := testutil.CreateUser(t, env.db, "ada@example.com", "Ada")
	recipe := testutil.CreateRecipe(t, env.db, ada.ID, "Bread")

	resp := env.do(t, http.MethodGet, "/api/recipes/"+recipe.ID, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	got := decode[models.RecipeWithAuthor](t, resp)
	assert.Equal(t, "Bread", got.Title)
	assert.Equal(t, "ada@example.com", got.AuthorEmail)

	resp = env.do(t, http.MethodGet, "/api/recipes/not-a-uuid", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/recipes/4f1c1a52-8a49-4e4b-9d7a-3c2a9b6b1e10", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, resp).Code)
}

func TestUpdateRecipe(t *testing.T) {
	env := newTestServer(t)
	ada := testutil.CreateUser(t, env.db, "ada@example.com", "Ada")
	bob := testutil.CreateUser(t, env.db, "bob@example.com", "")
	recipe := testutil.CreateRecipe(t, env.db, ada.ID, "Bread")
	path := "/api/recipes/" + recipe.ID

	resp := env.do(t, http.MethodPut, path, tokenFor(t, bob), fiber.Map{"title": "Stolen"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, path, tokenFor(t, ada), fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, path, tokenFor(t, ada), fiber.Map{"title": "Sourdough", "image_path": "../../etc/passwd"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	updated := decode[models.Recipe](t, resp)
	assert.Equal(t, "Sourdough", updated.Title)
	assert.Equal(t, "flour\nwater", updated.Ingredients)
	assert.Nil(t, updated.ImagePath, "image_path is not client settable")
}

func TestDeleteRecipe(t *testing.T) {
	env := newTestServer(t)
	ada := testutil.CreateUser(t, env.db, "ada@example.com", "Ada")
	bob := testutil.CreateUser(t, env.db, "bob@example.com", "")
	recipe := testutil.CreateRecipe(t, env.db, ada.ID, "Bread")
	require.NoError(t, env.db.Create(&models.Comment{RecipeID: recipe.ID, UserID: bob.ID, Text: "Yum"}).Error)
	path := "/api/recipes/" + recipe.ID

	resp := env.do(t, http.MethodDelete, path, tokenFor(t, bob), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, path, tokenFor(t, ada), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var comments int64
	require.NoError(t, env.db.Model(&models.Comment{}).Count(&comments).Error)
	assert.Zero(t, comments)
}
