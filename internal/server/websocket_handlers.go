package server

import (
	"context"

	"recipebox/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// RequireWebSocketUpgrade rejects plain HTTP requests to websocket routes and
// validates the change filter before the upgrade.
func (s *Server) RequireWebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("Websocket upgrade required"))
	}

	filter, err := changeFilterFromQuery(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	c.Locals("changeFilter", filter)
	return c.Next()
}

// changeFilterFromQuery reads table, event and recipe_id. Only the comments
// table is published; an empty recipe_id follows every recipe.
func changeFilterFromQuery(c *fiber.Ctx) (models.ChangeFilter, error) {
	filter := models.ChangeFilter{
		Table:    c.Query("table", models.TableComments),
		Event:    c.Query("event", models.EventAll),
		RecipeID: c.Query("recipe_id"),
	}
	if filter.Table != models.TableComments {
		return filter, models.NewValidationError("Unknown table " + filter.Table)
	}
	switch filter.Event {
	case models.EventAll, models.EventInsert, models.EventUpdate, models.EventDelete:
	default:
		return filter, models.NewValidationError("Unknown event " + filter.Event)
	}
	if filter.RecipeID != "" {
		if _, err := uuid.Parse(filter.RecipeID); err != nil {
			return filter, models.NewValidationError("Invalid recipe ID")
		}
	}
	return filter, nil
}

// ChangesWebSocketHandler streams change events matching the connection's
// filter. Anonymous viewers are allowed.
func (s *Server) ChangesWebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		filter, _ := conn.Locals("changeFilter").(models.ChangeFilter)
		userID, _ := conn.Locals("userID").(string)

		client, err := s.hub.Register(userID, filter, conn)
		if err != nil {
			s.hub.Logger().LogError(context.Background(), filter.RecipeID, err, "register")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		client.Serve(s.hub.Logger())
	})
}
