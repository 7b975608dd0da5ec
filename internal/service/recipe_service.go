package service

import (
	"context"
	"strings"
	"time"

	"recipebox/internal/cache"
	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/observability"
	"recipebox/internal/repository"
	"recipebox/internal/storage"
	"recipebox/internal/validation"

	"github.com/redis/go-redis/v9"
)

// ImageStore stores recipe images and removes them by stored path.
type ImageStore interface {
	Upload(ctx context.Context, filename string, content []byte) (*storage.Object, error)
	Delete(ctx context.Context, path string) error
}

// ImageUpload is an uploaded file attached to a recipe write.
type ImageUpload struct {
	Filename string
	Content  []byte
}

type RecipeService struct {
	recipeRepo repository.RecipeRepository
	userRepo   repository.UserRepository
	images     ImageStore
	rdb        *redis.Client
	feed       ChangePublisher
}

type ListRecipesInput struct {
	UserID string
	Limit  int
	Offset int
}

type CreateRecipeInput struct {
	UserID       string
	Title        string
	Description  *string
	Ingredients  string
	Instructions string
	Image        *ImageUpload
}

type UpdateRecipeInput struct {
	UserID   string
	RecipeID string
	Fields   models.RecipeUpdate
	Image    *ImageUpload
	// RemoveImage clears the image and deletes the stored object.
	RemoveImage bool
}

type DeleteRecipeInput struct {
	UserID   string
	RecipeID string
}

// NewRecipeService wires the recipe rules. rdb may be nil (no cache) and feed
// may be nil (no change events).
func NewRecipeService(
	recipeRepo repository.RecipeRepository,
	userRepo repository.UserRepository,
	images ImageStore,
	rdb *redis.Client,
	feed ChangePublisher,
) *RecipeService {
	if feed == nil {
		feed = noopPublisher{}
	}
	return &RecipeService{
		recipeRepo: recipeRepo,
		userRepo:   userRepo,
		images:     images,
		rdb:        rdb,
		feed:       feed,
	}
}

// ListRecipes returns recipes newest first, optionally only those of one user.
func (s *RecipeService) ListRecipes(ctx context.Context, in ListRecipesInput) ([]models.Recipe, error) {
	recipes, err := s.recipeRepo.List(ctx, repository.RecipeFilter{
		UserID: in.UserID,
		Limit:  in.Limit,
		Offset: in.Offset,
	})
	if err != nil {
		return nil, translateError(err, "Recipe", "")
	}
	return recipes, nil
}

// GetRecipe reads the recipe, then its author's profile. A failing profile
// lookup falls back to UnknownAuthor; such results are not cached.
func (s *RecipeService) GetRecipe(ctx context.Context, id string) (result *models.RecipeWithAuthor, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecipeService", "GetRecipe")
	defer func() { observability.EndSpan(span, err) }()

	key := cache.RecipeKey(id)
	var cached models.RecipeWithAuthor
	if found, cacheErr := cache.GetJSON(ctx, s.rdb, key, &cached); cacheErr == nil && found {
		return &cached, nil
	}

	recipe, err := s.recipeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translateError(err, "Recipe", id)
	}

	result = &models.RecipeWithAuthor{Recipe: *recipe, AuthorEmail: models.UnknownAuthor}
	profile, profileErr := s.userRepo.GetProfile(ctx, recipe.UserID)
	if profileErr != nil {
		middleware.Logger.WarnContext(ctx, "author profile lookup failed",
			"recipe_id", id, "author_id", recipe.UserID, "error", profileErr)
		return result, nil
	}
	result.AuthorEmail = profile.Email

	if cacheErr := cache.SetJSON(ctx, s.rdb, key, result, cache.RecipeTTL); cacheErr != nil {
		observability.RedisErrorRate.WithLabelValues("set").Inc()
	}
	return result, nil
}

// CreateRecipe validates the fields, stores the optional image and inserts
// the recipe. The image is removed again when the insert fails.
func (s *RecipeService) CreateRecipe(ctx context.Context, in CreateRecipeInput) (recipe *models.Recipe, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecipeService", "CreateRecipe")
	defer func() { observability.EndSpan(span, err) }()

	if in.UserID == "" {
		return nil, models.NewUnauthorizedError("Sign in to create recipes")
	}

	recipe = &models.Recipe{UserID: in.UserID}
	if recipe.Title, err = requiredField("title", in.Title, validation.MaxTitleLength); err != nil {
		return nil, err
	}
	if recipe.Ingredients, err = requiredField("ingredients", in.Ingredients, validation.MaxRecipeTextLength); err != nil {
		return nil, err
	}
	if recipe.Instructions, err = requiredField("instructions", in.Instructions, validation.MaxRecipeTextLength); err != nil {
		return nil, err
	}
	if recipe.Description, err = optionalField("description", in.Description); err != nil {
		return nil, err
	}

	if in.Image != nil {
		obj, uploadErr := s.images.Upload(ctx, in.Image.Filename, in.Image.Content)
		if uploadErr != nil {
			return nil, uploadErr
		}
		recipe.ImageURL = &obj.URL
		recipe.ImagePath = &obj.Path
	}

	if err := s.recipeRepo.Create(ctx, recipe); err != nil {
		if recipe.ImagePath != nil {
			s.deleteImage(ctx, *recipe.ImagePath)
		}
		return nil, translateError(err, "User", in.UserID)
	}
	return recipe, nil
}

// UpdateRecipe applies a partial update on behalf of the owner. Replacing or
// removing the image deletes the previously stored object.
func (s *RecipeService) UpdateRecipe(ctx context.Context, in UpdateRecipeInput) (updated *models.Recipe, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecipeService", "UpdateRecipe")
	defer func() { observability.EndSpan(span, err) }()

	recipe, err := s.ownedRecipe(ctx, in.UserID, in.RecipeID, "update")
	if err != nil {
		return nil, err
	}

	fields, err := updateFields(in.Fields)
	if err != nil {
		return nil, err
	}

	var uploaded *storage.Object
	switch {
	case in.Image != nil:
		if uploaded, err = s.images.Upload(ctx, in.Image.Filename, in.Image.Content); err != nil {
			return nil, err
		}
		fields["image_url"] = uploaded.URL
		fields["image_path"] = uploaded.Path
	case in.RemoveImage:
		fields["image_url"] = nil
		fields["image_path"] = nil
	case in.Fields.ImageURL != nil:
		// An image given by URL is not ours to delete later.
		fields["image_path"] = nil
	}

	if len(fields) == 0 {
		return nil, models.NewValidationError("No fields to update")
	}
	fields["updated_at"] = time.Now()

	if err := s.recipeRepo.Update(ctx, recipe.ID, fields); err != nil {
		if uploaded != nil {
			s.deleteImage(ctx, uploaded.Path)
		}
		return nil, translateError(err, "Recipe", recipe.ID)
	}
	cache.Invalidate(ctx, s.rdb, cache.RecipeKey(recipe.ID))

	if _, touched := fields["image_url"]; touched {
		if old := storedImagePath(recipe); old != "" && (uploaded == nil || uploaded.Path != old) {
			s.deleteImage(ctx, old)
		}
	}

	updated, err = s.recipeRepo.GetByID(ctx, recipe.ID)
	if err != nil {
		return nil, translateError(err, "Recipe", recipe.ID)
	}
	return updated, nil
}

// DeleteRecipe removes the recipe and its comments in one transaction, emits
// a DELETE change event per removed comment and then deletes the stored image.
func (s *RecipeService) DeleteRecipe(ctx context.Context, in DeleteRecipeInput) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecipeService", "DeleteRecipe")
	defer func() { observability.EndSpan(span, err) }()

	recipe, err := s.ownedRecipe(ctx, in.UserID, in.RecipeID, "delete")
	if err != nil {
		return err
	}

	commentIDs, err := s.recipeRepo.Delete(ctx, recipe.ID)
	if err != nil {
		return translateError(err, "Recipe", recipe.ID)
	}
	cache.Invalidate(ctx, s.rdb, cache.RecipeKey(recipe.ID))

	now := time.Now().UTC()
	for _, id := range commentIDs {
		s.feed.Publish(ctx, models.ChangeEvent{
			Table:           models.TableComments,
			Type:            models.EventDelete,
			RecipeID:        recipe.ID,
			Old:             &models.RecordRef{ID: id},
			CommitTimestamp: now,
		})
	}

	if p := storedImagePath(recipe); p != "" {
		s.deleteImage(ctx, p)
	}
	return nil
}

func (s *RecipeService) ownedRecipe(ctx context.Context, userID, recipeID, action string) (*models.Recipe, error) {
	if userID == "" {
		return nil, models.NewUnauthorizedError("Sign in to " + action + " recipes")
	}
	recipe, err := s.recipeRepo.GetByID(ctx, recipeID)
	if err != nil {
		return nil, translateError(err, "Recipe", recipeID)
	}
	if recipe.UserID != userID {
		return nil, models.NewForbiddenError("You can only " + action + " your own recipes")
	}
	return recipe, nil
}

// deleteImage is best effort: the row change is already committed.
func (s *RecipeService) deleteImage(ctx context.Context, p string) {
	if s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, p); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to delete recipe image", "path", p, "error", err)
	}
}

// storedImagePath prefers the stored path. Rows written before paths were
// stored fall back to the URL, but only when it points into the image folder.
func storedImagePath(r *models.Recipe) string {
	if r.ImagePath != nil && *r.ImagePath != "" {
		return *r.ImagePath
	}
	if r.ImageURL == nil || *r.ImageURL == "" {
		return ""
	}
	p := storage.PathFromURL(*r.ImageURL)
	if !strings.HasPrefix(p, storage.ImageFolder+"/") {
		return ""
	}
	return p
}

func updateFields(u models.RecipeUpdate) (map[string]any, error) {
	fields := map[string]any{}
	if u.Title != nil {
		v, err := requiredField("title", *u.Title, validation.MaxTitleLength)
		if err != nil {
			return nil, err
		}
		fields["title"] = v
	}
	if u.Ingredients != nil {
		v, err := requiredField("ingredients", *u.Ingredients, validation.MaxRecipeTextLength)
		if err != nil {
			return nil, err
		}
		fields["ingredients"] = v
	}
	if u.Instructions != nil {
		v, err := requiredField("instructions", *u.Instructions, validation.MaxRecipeTextLength)
		if err != nil {
			return nil, err
		}
		fields["instructions"] = v
	}
	if u.Description != nil {
		v, err := optionalField("description", u.Description)
		if err != nil {
			return nil, err
		}
		if v != nil {
			fields["description"] = *v
		} else {
			fields["description"] = nil
		}
	}
	if u.ImageURL != nil {
		if url := strings.TrimSpace(*u.ImageURL); url != "" {
			fields["image_url"] = url
		} else {
			fields["image_url"] = nil
		}
	}
	return fields, nil
}

func requiredField(field, value string, max int) (string, error) {
	v, err := validation.RequiredText(field, value, max)
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return v, nil
}

func optionalField(field string, value *string) (*string, error) {
	v, err := validation.OptionalText(field, value, validation.MaxRecipeTextLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	return v, nil
}
