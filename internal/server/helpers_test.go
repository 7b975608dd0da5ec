package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"recipebox/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- humanizeParam (pure function, no HTTP) ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"commentId", "comment ID"},
		{"recipeId", "recipe ID"},
		{"shoppingListId", "shopping list ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePagination ---

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	tests := []struct {
		query          string
		expectedLimit  float64
		expectedOffset float64
	}{
		{"", 0, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=1000", maxPaginationLimit, 0},
		{"?limit=-5&offset=-1", 0, 0},
		{"?limit=abc", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			body := decode[map[string]float64](t, resp)
			assert.Equal(t, tt.expectedLimit, body["limit"])
			assert.Equal(t, tt.expectedOffset, body["offset"])
		})
	}
}

// --- parseID ---

func TestParseID(t *testing.T) {
	app := fiber.New()
	app.Get("/things/:commentId", func(c *fiber.Ctx) error {
		id, err := parseID(c, "commentId")
		if err != nil {
			return nil
		}
		return c.SendString(id)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/things/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Invalid comment ID", body.Error)
	assert.Equal(t, models.CodeValidation, body.Code)

	id := "4f1c1a52-8a49-4e4b-9d7a-3c2a9b6b1e10"
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/things/"+id, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, id, readBody(t, resp))
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		next     string
		expected string
	}{
		{"", "/"},
		{"/dashboard", "/dashboard"},
		{"/recipes/1?x=y", "/recipes/1?x=y"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.expected, safeRedirect(tt.next, "/"))
		})
	}
}

func TestChangeFilterFromQuery(t *testing.T) {
	app := fiber.New()
	app.Get("/f", func(c *fiber.Ctx) error {
		f, err := changeFilterFromQuery(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		}
		return c.JSON(f)
	})

	recipeID := "4f1c1a52-8a49-4e4b-9d7a-3c2a9b6b1e10"
	tests := []struct {
		name     string
		query    string
		status   int
		expected models.ChangeFilter
	}{
		{"defaults", "", fiber.StatusOK, models.ChangeFilter{Table: "comments", Event: "*"}},
		{"scoped", "?table=comments&event=INSERT&recipe_id=" + recipeID, fiber.StatusOK,
			models.ChangeFilter{Table: "comments", Event: "INSERT", RecipeID: recipeID}},
		{"unknown table", "?table=recipes", fiber.StatusBadRequest, models.ChangeFilter{}},
		{"unknown event", "?event=TRUNCATE", fiber.StatusBadRequest, models.ChangeFilter{}},
		{"bad recipe id", "?recipe_id=42", fiber.StatusBadRequest, models.ChangeFilter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/f"+tt.query, nil))
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status == fiber.StatusOK {
				assert.Equal(t, tt.expected, decode[models.ChangeFilter](t, resp))
			}
		})
	}
}
