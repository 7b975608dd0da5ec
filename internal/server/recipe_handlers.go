package server

import (
	"strconv"
	"strings"

	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/service"

	"github.com/gofiber/fiber/v2"
)

type recipeRequest struct {
	Title        *string `json:"title" form:"title"`
	Description  *string `json:"description" form:"description"`
	Ingredients  *string `json:"ingredients" form:"ingredients"`
	Instructions *string `json:"instructions" form:"instructions"`
	ImageURL     *string `json:"image_url" form:"image_url"`
	RemoveImage  bool    `json:"remove_image" form:"remove_image"`
}

// parseRecipeRequest reads a recipe body from JSON or a multipart form. Only
// submitted fields are set.
func parseRecipeRequest(c *fiber.Ctx) (*recipeRequest, *service.ImageUpload, error) {
	if !isMultipart(c) {
		var req recipeRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, nil, models.NewValidationError("Invalid request body")
		}
		return &req, nil, nil
	}

	req := &recipeRequest{
		Title:        formValue(c, "title"),
		Description:  formValue(c, "description"),
		Ingredients:  formValue(c, "ingredients"),
		Instructions: formValue(c, "instructions"),
		ImageURL:     formValue(c, "image_url"),
	}
	if v := formValue(c, "remove_image"); v != nil {
		req.RemoveImage, _ = strconv.ParseBool(*v)
	}
	image, err := formImage(c)
	if err != nil {
		return nil, nil, err
	}
	return req, image, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetRecipes handles GET /api/recipes
// @Summary List recipes
// @Description Public feed, newest first
// @Tags recipes
// @Produce json
// @Param limit query int false "Max rows (all when omitted)"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} models.Recipe
// @Router /recipes [get]
func (s *Server) GetRecipes(c *fiber.Ctx) error {
	page := parsePagination(c)
	recipes, err := s.recipeService.ListRecipes(c.UserContext(), service.ListRecipesInput{
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(recipes)
}

// GetMyRecipes handles GET /api/users/me/recipes
// @Summary List my recipes
// @Tags recipes
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Recipe
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me/recipes [get]
func (s *Server) GetMyRecipes(c *fiber.Ctx) error {
	page := parsePagination(c)
	recipes, err := s.recipeService.ListRecipes(c.UserContext(), service.ListRecipesInput{
		UserID: middleware.UserID(c),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(recipes)
}

// GetRecipe handles GET /api/recipes/:id
// @Summary Get a recipe
// @Description Recipe with the author's email
// @Tags recipes
// @Produce json
// @Param id path string true "Recipe ID"
// @Success 200 {object} models.RecipeWithAuthor
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id} [get]
func (s *Server) GetRecipe(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	recipe, err := s.recipeService.GetRecipe(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(recipe)
}

// CreateRecipe handles POST /api/recipes
// @Summary Create a recipe
// @Description JSON body, or a multipart form with an optional image file
// @Tags recipes
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,description=string,ingredients=string,instructions=string} true "Recipe"
// @Success 201 {object} models.Recipe
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /recipes [post]
func (s *Server) CreateRecipe(c *fiber.Ctx) error {
	req, image, err := parseRecipeRequest(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	recipe, err := s.recipeService.CreateRecipe(c.UserContext(), service.CreateRecipeInput{
		UserID:       middleware.UserID(c),
		Title:        deref(req.Title),
		Description:  req.Description,
		Ingredients:  deref(req.Ingredients),
		Instructions: deref(req.Instructions),
		Image:        image,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(recipe)
}

// UpdateRecipe handles PUT /api/recipes/:id
// @Summary Update a recipe
// @Description Partial update by the owner; an uploaded image replaces the stored one
// @Tags recipes
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipe ID"
// @Success 200 {object} models.Recipe
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id} [put]
func (s *Server) UpdateRecipe(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	req, image, err := parseRecipeRequest(c)
	if err != nil {
		return respondServiceError(c, err)
	}

	fields := models.RecipeUpdate{
		Title:        req.Title,
		Description:  req.Description,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
	}
	if req.ImageURL != nil && strings.TrimSpace(*req.ImageURL) != "" {
		fields.ImageURL = req.ImageURL
	}

	recipe, err := s.recipeService.UpdateRecipe(c.UserContext(), service.UpdateRecipeInput{
		UserID:      middleware.UserID(c),
		RecipeID:    id,
		Fields:      fields,
		Image:       image,
		RemoveImage: req.RemoveImage,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(recipe)
}

// DeleteRecipe handles DELETE /api/recipes/:id
// @Summary Delete a recipe
// @Description Deletes the recipe, its comments and its stored image
// @Tags recipes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Recipe ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id} [delete]
func (s *Server) DeleteRecipe(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.recipeService.DeleteRecipe(c.UserContext(), service.DeleteRecipeInput{
		UserID:   middleware.UserID(c),
		RecipeID: id,
	}); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Recipe deleted"})
}
