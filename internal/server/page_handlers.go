package server

import (
	"errors"
	"net/url"
	"time"

	"recipebox/internal/auth"
	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const pageLayout = "layouts/main"

// setupPageRoutes registers the server-rendered pages and their form posts.
func (s *Server) setupPageRoutes(app *fiber.App) {
	app.Get("/", middleware.AuthOptional, s.FeedPage)

	app.Get("/login", middleware.AuthOptional, s.LoginPage)
	app.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "page_login"), s.LoginForm)
	app.Get("/signup", middleware.AuthOptional, s.SignupPage)
	app.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "page_signup"), s.SignupForm)
	app.Post("/logout", middleware.AuthOptional, s.LogoutForm)
	app.Get("/forgot-password", middleware.AuthOptional, s.ForgotPasswordPage)
	app.Post("/forgot-password", middleware.RateLimit(s.redis, 3, 15*time.Minute, "page_recover"), s.ForgotPasswordForm)
	app.Get("/reset-password", middleware.AuthOptional, s.ResetPasswordPage)
	app.Post("/reset-password", s.ResetPasswordForm)

	app.Get("/dashboard", middleware.PageAuthRequired, s.DashboardPage)

	// /recipes/create before /recipes/:id.
	app.Get("/recipes/create", middleware.PageAuthRequired, s.CreateRecipePage)
	app.Post("/recipes/create", middleware.PageAuthRequired, s.CreateRecipeForm)
	app.Get("/recipes/:id", middleware.AuthOptional, s.RecipePage)
	app.Get("/recipes/:id/edit", middleware.PageAuthRequired, s.EditRecipePage)
	app.Post("/recipes/:id/edit", middleware.PageAuthRequired, s.EditRecipeForm)
	app.Post("/recipes/:id/delete", middleware.PageAuthRequired, s.DeleteRecipeForm)
	app.Post("/recipes/:id/comments", middleware.PageAuthRequired, s.AddCommentForm)
	app.Post("/comments/:commentId/delete", middleware.PageAuthRequired, s.DeleteCommentForm)
}

// pageData is the base of every template binding.
func pageData(c *fiber.Ctx, title string) fiber.Map {
	return fiber.Map{
		"Title":     title,
		"UserID":    middleware.UserID(c),
		"UserEmail": c.Locals("userEmail"),
		"Flash":     c.Query("flash"),
		"Error":     "",
		"Email":     "",
		"FullName":  "",
	}
}

func (s *Server) render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	return c.Status(status).Render(view, data, pageLayout)
}

// renderError shows the error page with the status the error maps to.
func (s *Server) renderError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	message := "Something went wrong"
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
		message = appErr.Message
	} else {
		middleware.Logger.ErrorContext(c.UserContext(), "page request failed", "path", c.Path(), "error", err)
	}
	data := pageData(c, "Error")
	data["Status"] = status
	data["Message"] = message
	return s.render(c, status, "error", data)
}

func (s *Server) setSessionCookie(c *fiber.Ctx, session *models.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// pageID validates a UUID route parameter and answers 404 for anything else.
func (s *Server) pageID(c *fiber.Ctx, param string) (string, error) {
	id := c.Params(param)
	if _, err := uuid.Parse(id); err != nil {
		_ = s.renderError(c, models.NewNotFoundError("Page", id))
		return "", errResponseWritten
	}
	return id, nil
}

// FeedPage lists every recipe, newest first.
func (s *Server) FeedPage(c *fiber.Ctx) error {
	recipes, err := s.recipeService.ListRecipes(c.UserContext(), service.ListRecipesInput{})
	if err != nil {
		return s.renderError(c, err)
	}
	data := pageData(c, "Recipes")
	data["Recipes"] = recipes
	return s.render(c, fiber.StatusOK, "feed", data)
}

// DashboardPage lists the signed-in user's recipes.
func (s *Server) DashboardPage(c *fiber.Ctx) error {
	recipes, err := s.recipeService.ListRecipes(c.UserContext(), service.ListRecipesInput{
		UserID: middleware.UserID(c),
	})
	if err != nil {
		return s.renderError(c, err)
	}
	data := pageData(c, "My recipes")
	data["Recipes"] = recipes
	return s.render(c, fiber.StatusOK, "dashboard", data)
}

// RecipePage shows a recipe with its live comment list.
func (s *Server) RecipePage(c *fiber.Ctx) error {
	id, err := s.pageID(c, "id")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	recipe, err := s.recipeService.GetRecipe(ctx, id)
	if err != nil {
		return s.renderError(c, err)
	}
	comments, err := s.commentService.ListComments(ctx, id)
	if err != nil {
		return s.renderError(c, err)
	}

	data := pageData(c, recipe.Title)
	data["Recipe"] = recipe
	data["Comments"] = comments
	data["IsOwner"] = recipe.UserID == middleware.UserID(c)
	return s.render(c, fiber.StatusOK, "recipe", data)
}

// CreateRecipePage shows an empty recipe form.
func (s *Server) CreateRecipePage(c *fiber.Ctx) error {
	data := pageData(c, "New recipe")
	data["Action"] = "/recipes/create"
	data["Recipe"] = models.Recipe{}
	return s.render(c, fiber.StatusOK, "recipe_form", data)
}

// CreateRecipeForm handles the multipart recipe form.
func (s *Server) CreateRecipeForm(c *fiber.Ctx) error {
	req, image, err := parseRecipeRequest(c)
	if err != nil {
		return s.renderError(c, err)
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
		if models.StatusFor(err) == fiber.StatusBadRequest {
			data := pageData(c, "New recipe")
			data["Action"] = "/recipes/create"
			data["Recipe"] = models.Recipe{
				Title:        deref(req.Title),
				Description:  req.Description,
				Ingredients:  deref(req.Ingredients),
				Instructions: deref(req.Instructions),
			}
			data["Error"] = errorMessage(err)
			return s.render(c, fiber.StatusBadRequest, "recipe_form", data)
		}
		return s.renderError(c, err)
	}
	return c.Redirect("/recipes/"+recipe.ID, fiber.StatusSeeOther)
}

// EditRecipePage shows the recipe form filled in, for the owner only.
func (s *Server) EditRecipePage(c *fiber.Ctx) error {
	id, err := s.pageID(c, "id")
	if err != nil {
		return nil
	}

	recipe, err := s.recipeService.GetRecipe(c.UserContext(), id)
	if err != nil {
		return s.renderError(c, err)
	}
	if recipe.UserID != middleware.UserID(c) {
		return s.renderError(c, models.NewForbiddenError("You can only edit your own recipes"))
	}

	data := pageData(c, "Edit "+recipe.Title)
	data["Action"] = "/recipes/" + recipe.ID + "/edit"
	data["Recipe"] = recipe.Recipe
	data["Editing"] = true
	return s.render(c, fiber.StatusOK, "recipe_form", data)
}

// EditRecipeForm applies the edit form.
func (s *Server) EditRecipeForm(c *fiber.Ctx) error {
	id, err := s.pageID(c, "id")
	if err != nil {
		return nil
	}

	req, image, err := parseRecipeRequest(c)
	if err != nil {
		return s.renderError(c, err)
	}

	_, err = s.recipeService.UpdateRecipe(c.UserContext(), service.UpdateRecipeInput{
		UserID:   middleware.UserID(c),
		RecipeID: id,
		Fields: models.RecipeUpdate{
			Title:        req.Title,
			Description:  req.Description,
			Ingredients:  req.Ingredients,
			Instructions: req.Instructions,
		},
		Image:       image,
		RemoveImage: req.RemoveImage,
	})
	if err != nil {
		return s.renderError(c, err)
	}
	return c.Redirect("/recipes/"+id, fiber.StatusSeeOther)
}

// DeleteRecipeForm deletes the recipe and returns to the dashboard.
func (s *Server) DeleteRecipeForm(c *fiber.Ctx) error {
	id, err := s.pageID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.recipeService.DeleteRecipe(c.UserContext(), service.DeleteRecipeInput{
		UserID:   middleware.UserID(c),
		RecipeID: id,
	}); err != nil {
		return s.renderError(c, err)
	}
	return c.Redirect("/dashboard?flash="+url.QueryEscape("Recipe deleted"), fiber.StatusSeeOther)
}

// AddCommentForm posts a comment without script support.
func (s *Server) AddCommentForm(c *fiber.Ctx) error {
	id, err := s.pageID(c, "id")
	if err != nil {
		return nil
	}

	if _, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:   middleware.UserID(c),
		RecipeID: id,
		Text:     c.FormValue("text"),
	}); err != nil {
		return s.renderError(c, err)
	}
	return c.Redirect("/recipes/"+id+"#comments", fiber.StatusSeeOther)
}

// DeleteCommentForm deletes one of the user's comments.
func (s *Server) DeleteCommentForm(c *fiber.Ctx) error {
	id, err := s.pageID(c, "commentId")
	if err != nil {
		return nil
	}

	deleted, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    middleware.UserID(c),
		CommentID: id,
	})
	if err != nil {
		return s.renderError(c, err)
	}
	return c.Redirect("/recipes/"+deleted.RecipeID+"#comments", fiber.StatusSeeOther)
}

// LoginPage shows the sign-in form.
func (s *Server) LoginPage(c *fiber.Ctx) error {
	data := pageData(c, "Sign in")
	data["Next"] = safeRedirect(c.Query("next"), "/")
	return s.render(c, fiber.StatusOK, "login", data)
}

// LoginForm signs in and sets the session cookie.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	next := safeRedirect(c.FormValue("next"), "/")
	email := c.FormValue("email")

	session, err := s.authService.SignIn(c.UserContext(), email, c.FormValue("password"))
	if err != nil {
		data := pageData(c, "Sign in")
		data["Next"] = next
		data["Email"] = email
		data["Error"] = errorMessage(err)
		return s.render(c, models.StatusFor(err), "login", data)
	}
	s.setSessionCookie(c, session)
	return c.Redirect(next, fiber.StatusSeeOther)
}

// SignupPage shows the registration form.
func (s *Server) SignupPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "signup", pageData(c, "Sign up"))
}

// SignupForm registers the account and signs it in.
func (s *Server) SignupForm(c *fiber.Ctx) error {
	email := c.FormValue("email")
	fullName := c.FormValue("full_name")

	session, err := s.authService.SignUp(c.UserContext(), service.SignUpInput{
		Email:    email,
		Password: c.FormValue("password"),
		FullName: fullName,
	})
	if err != nil {
		data := pageData(c, "Sign up")
		data["Email"] = email
		data["FullName"] = fullName
		data["Error"] = errorMessage(err)
		return s.render(c, models.StatusFor(err), "signup", data)
	}
	s.setSessionCookie(c, session)
	return c.Redirect("/dashboard", fiber.StatusSeeOther)
}

// LogoutForm revokes the token, if any, and clears the cookie.
func (s *Server) LogoutForm(c *fiber.Ctx) error {
	if claims := middleware.Claims(c); claims != nil {
		if err := s.authService.SignOut(c.UserContext(), claims); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "sign out failed", "error", err)
		}
	}
	s.clearSessionCookie(c)
	return c.Redirect("/", fiber.StatusSeeOther)
}

// ForgotPasswordPage shows the reset request form.
func (s *Server) ForgotPasswordPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "forgot_password", pageData(c, "Reset password"))
}

// ForgotPasswordForm always reports success for well-formed addresses.
func (s *Server) ForgotPasswordForm(c *fiber.Ctx) error {
	data := pageData(c, "Reset password")
	if err := s.authService.RequestPasswordReset(c.UserContext(), c.FormValue("email")); err != nil {
		if models.StatusFor(err) == fiber.StatusBadRequest {
			data["Error"] = errorMessage(err)
			return s.render(c, fiber.StatusBadRequest, "forgot_password", data)
		}
		middleware.Logger.ErrorContext(c.UserContext(), "password reset request failed", "error", err)
	}
	data["Sent"] = true
	return s.render(c, fiber.StatusAccepted, "forgot_password", data)
}

// ResetPasswordPage shows the new-password form for a reset link.
func (s *Server) ResetPasswordPage(c *fiber.Ctx) error {
	data := pageData(c, "Choose a new password")
	data["Token"] = c.Query("token")
	return s.render(c, fiber.StatusOK, "reset_password", data)
}

// ResetPasswordForm consumes the reset token.
func (s *Server) ResetPasswordForm(c *fiber.Ctx) error {
	token := c.FormValue("token")
	if err := s.authService.ResetPassword(c.UserContext(), token, c.FormValue("password")); err != nil {
		data := pageData(c, "Choose a new password")
		data["Token"] = token
		data["Error"] = errorMessage(err)
		return s.render(c, models.StatusFor(err), "reset_password", data)
	}
	return c.Redirect("/login?flash="+url.QueryEscape("Password updated, please sign in"), fiber.StatusSeeOther)
}

// errorMessage is the user-facing text of a service error.
func errorMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
		return appErr.Message
	}
	return "Something went wrong, please try again"
}
