package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnknownAuthor is shown when a recipe's author profile cannot be read.
const UnknownAuthor = "Unknown Author"

// Recipe is a user-authored recipe. ImagePath is the stored object path of the
// image; ImageURL is its public address.
type Recipe struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Title        string    `gorm:"size:300;not null" json:"title"`
	Description  *string   `gorm:"type:text" json:"description"`
	Ingredients  string    `gorm:"type:text;not null" json:"ingredients"`
	Instructions string    `gorm:"type:text;not null" json:"instructions"`
	ImageURL     *string   `json:"image_url"`
	ImagePath    *string   `json:"image_path"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	User         *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (r *Recipe) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RecipeWithAuthor is a recipe plus the author's email from profiles.
type RecipeWithAuthor struct {
	Recipe
	AuthorEmail string `json:"author_email"`
}

// RecipeUpdate is a partial update; nil fields are left untouched. ImagePath is
// only ever set by the server after an upload.
type RecipeUpdate struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Ingredients  *string `json:"ingredients"`
	Instructions *string `json:"instructions"`
	ImageURL     *string `json:"image_url"`
	ImagePath    *string `json:"-"`
}

// IsEmpty reports whether the update changes nothing.
func (u RecipeUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Ingredients == nil &&
		u.Instructions == nil && u.ImageURL == nil && u.ImagePath == nil
}
