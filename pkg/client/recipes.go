package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"recipebox/internal/models"
)

const imageField = "image"

// Image is an upload attached to a recipe create or update.
type Image struct {
	Filename string
	Content  io.Reader
}

// NewRecipe is the input of CreateRecipe.
type NewRecipe struct {
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	Ingredients  string  `json:"ingredients"`
	Instructions string  `json:"instructions"`
	Image        *Image  `json:"-"`
}

// ListRecipes returns the public feed, newest first. A zero limit returns
// every recipe.
func (c *Client) ListRecipes(ctx context.Context, limit, offset int) ([]models.Recipe, error) {
	var out []models.Recipe
	err := c.send(ctx, request{method: http.MethodGet, path: "/recipes", query: pageQuery(limit, offset)}, &out)
	return out, err
}

// MyRecipes returns the signed-in user's recipes.
func (c *Client) MyRecipes(ctx context.Context, limit, offset int) ([]models.Recipe, error) {
	var out []models.Recipe
	err := c.send(ctx, request{method: http.MethodGet, path: "/users/me/recipes", query: pageQuery(limit, offset)}, &out)
	return out, err
}

// GetRecipe returns one recipe with its author's email.
func (c *Client) GetRecipe(ctx context.Context, id string) (*models.RecipeWithAuthor, error) {
	var out models.RecipeWithAuthor
	if err := c.doJSON(ctx, http.MethodGet, idPath("/recipes", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRecipe stores a recipe owned by the signed-in user. With an Image the
// request is sent as a multipart form.
func (c *Client) CreateRecipe(ctx context.Context, in NewRecipe) (*models.Recipe, error) {
	var out models.Recipe
	if in.Image == nil {
		if err := c.doJSON(ctx, http.MethodPost, "/recipes", in, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	fields := map[string]string{
		"title":        in.Title,
		"ingredients":  in.Ingredients,
		"instructions": in.Instructions,
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if err := c.sendMultipart(ctx, http.MethodPost, "/recipes", fields, in.Image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRecipe applies a partial update. Nil fields are left as they are.
func (c *Client) UpdateRecipe(ctx context.Context, id string, fields models.RecipeUpdate) (*models.Recipe, error) {
	var out models.Recipe
	if err := c.doJSON(ctx, http.MethodPut, idPath("/recipes", id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceRecipeImage uploads a new image; the previous stored image is removed
// by the server.
func (c *Client) ReplaceRecipeImage(ctx context.Context, id string, img Image) (*models.Recipe, error) {
	var out models.Recipe
	if err := c.sendMultipart(ctx, http.MethodPut, idPath("/recipes", id), nil, &img, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveRecipeImage clears the recipe's image.
func (c *Client) RemoveRecipeImage(ctx context.Context, id string) (*models.Recipe, error) {
	var out models.Recipe
	body := map[string]bool{"remove_image": true}
	if err := c.doJSON(ctx, http.MethodPut, idPath("/recipes", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRecipe removes a recipe together with its comments and image.
func (c *Client) DeleteRecipe(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/recipes", id), nil, nil)
}

func (c *Client) sendMultipart(ctx context.Context, method, path string, fields map[string]string, img *Image, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if img != nil {
		part, err := w.CreateFormFile(imageField, img.Filename)
		if err != nil {
			return fmt.Errorf("create image part: %w", err)
		}
		if _, err := io.Copy(part, img.Content); err != nil {
			return fmt.Errorf("copy image: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	return c.send(ctx, request{
		method:      method,
		path:        path,
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, out)
}
