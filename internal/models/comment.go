package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is an immutable note left by a user on a recipe.
type Comment struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	RecipeID  string    `gorm:"type:varchar(36);not null;index" json:"recipe_id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Recipe    *Recipe   `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CommentWithUser is a row of the comments_with_users view.
type CommentWithUser struct {
	ID           string    `json:"id"`
	RecipeID     string    `json:"recipe_id"`
	UserID       string    `json:"user_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	UserEmail    string    `json:"user_email"`
	UserFullName *string   `json:"user_full_name"`
}

// TableName points reads at the denormalized view.
func (CommentWithUser) TableName() string {
	return "comments_with_users"
}

// AuthorName returns the full name when present, else the email.
func (c CommentWithUser) AuthorName() string {
	if c.UserFullName != nil && *c.UserFullName != "" {
		return *c.UserFullName
	}
	return c.UserEmail
}
