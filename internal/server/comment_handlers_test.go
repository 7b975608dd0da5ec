package server

import (
	"net/http"
	"testing"

	"recipebox/internal/models"
	"recipebox/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentLifecycle(t *testing.T) {
	env := newTestServer(t)
	ada := testutil.CreateUser(t, env.db, "ada@example.com", "Ada")
	bob := testutil.CreateUser(t, env.db, "bob@example.com", "")
	recipe := testutil.CreateRecipe(t, env.db, ada.ID, "Bread")
	commentsPath := "/api/recipes/" + recipe.ID + "/comments"

	resp := env.do(t, http.MethodPost, commentsPath, "", fiber.Map{"text": "Hi"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, commentsPath, tokenFor(t, bob), fiber.Map{"text": "   "})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, commentsPath, tokenFor(t, bob), fiber.Map{"text": "Looks great"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decode[models.Comment](t, resp)
	assert.Equal(t, bob.ID, created.UserID)
	assert.Equal(t, recipe.ID, created.RecipeID)

	resp = env.do(t, http.MethodPost, commentsPath, tokenFor(t, ada), fiber.Map{"text": "Thanks"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodGet, commentsPath, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list := decode[[]models.CommentWithUser](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, "Looks great", list[0].Text)
	assert.Equal(t, "bob@example.com", list[0].UserEmail)
	assert.Equal(t, "Thanks", list[1].Text)

	resp = env.do(t, http.MethodGet, "/api/comments/"+created.ID, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	one := decode[models.CommentWithUser](t, resp)
	assert.Equal(t, "bob@example.com", one.AuthorName())

	resp = env.do(t, http.MethodDelete, "/api/comments/"+created.ID, tokenFor(t, ada), nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, decode[models.ErrorResponse](t, resp).Code)

	resp = env.do(t, http.MethodDelete, "/api/comments/"+created.ID, tokenFor(t, bob), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/comments/"+created.ID, tokenFor(t, bob), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/comments/"+created.ID, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestComments_UnknownRecipe(t *testing.T) {
	env := newTestServer(t)
	bob := testutil.CreateUser(t, env.db, "bob@example.com", "")
	missing := "/api/recipes/4f1c1a52-8a49-4e4b-9d7a-3c2a9b6b1e10/comments"

	resp := env.do(t, http.MethodGet, missing, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, missing, tokenFor(t, bob), fiber.Map{"text": "Hello?"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/comments/nope", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
