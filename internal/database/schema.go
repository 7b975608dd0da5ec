package database

import (
	"context"
	"fmt"

	"recipebox/internal/config"
	"recipebox/internal/middleware"
	"recipebox/internal/models"

	"gorm.io/gorm"
)

// commentsWithUsersView joins each comment with its author's email and
// optional full name. The SQL is valid on both PostgreSQL and SQLite.
const commentsWithUsersView = `CREATE VIEW comments_with_users AS
SELECT c.id, c.recipe_id, c.user_id, c.text, c.created_at,
       u.email AS user_email,
       p.full_name AS user_full_name
FROM comments c
JOIN users u ON u.id = c.user_id
LEFT JOIN profiles p ON p.id = c.user_id`

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.Profile{},
		&models.Recipe{},
		&models.Comment{},
	}
}

// AutoMigrate creates or updates the tables with GORM and recreates the
// comments_with_users view.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	// Table rewrites fail while a view depends on the table.
	if err := db.WithContext(ctx).Exec("DROP VIEW IF EXISTS comments_with_users").Error; err != nil {
		return fmt.Errorf("failed to drop comments_with_users: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return EnsureViews(ctx, db)
}

// EnsureViews (re)creates the read views.
func EnsureViews(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	if err := tx.Exec("DROP VIEW IF EXISTS comments_with_users").Error; err != nil {
		return fmt.Errorf("failed to drop comments_with_users: %w", err)
	}
	if err := tx.Exec(commentsWithUsersView).Error; err != nil {
		return fmt.Errorf("failed to create comments_with_users: %w", err)
	}
	return nil
}

// ApplySchema brings the schema up to date: versioned SQL migrations in
// production, AutoMigrate everywhere else.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if cfg.IsProduction() {
		return RunMigrations(ctx, db)
	}
	if err := AutoMigrate(ctx, db); err != nil {
		return err
	}
	middleware.Logger.Info("Database migration completed")
	return nil
}
