// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"recipebox/internal/middleware"
	"recipebox/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// DefaultPassword is the password of seeded users without one.
const DefaultPassword = "password123"

//go:embed fixtures/*.yml
var fixturesFS embed.FS

// Options configure random seeding.
type Options struct {
	Users             int
	RecipesPerUser    int
	CommentsPerRecipe int
	// MaxDays spreads created_at timestamps over the past N days.
	MaxDays int
}

// Fixture is a hand-written data set. Authors are referenced by email.
type Fixture struct {
	Users   []FixtureUser   `yaml:"users"`
	Recipes []FixtureRecipe `yaml:"recipes"`
}

type FixtureUser struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Password string `yaml:"password"`
}

type FixtureRecipe struct {
	Author       string           `yaml:"author"`
	Title        string           `yaml:"title"`
	Description  string           `yaml:"description"`
	Ingredients  string           `yaml:"ingredients"`
	Instructions string           `yaml:"instructions"`
	ImageURL     string           `yaml:"image_url"`
	Comments     []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author string `yaml:"author"`
	Text   string `yaml:"text"`
}

// Result counts what a seeding run created.
type Result struct {
	Users    int
	Recipes  int
	Comments int
}

func (r Result) String() string {
	return fmt.Sprintf("%d users, %d recipes, %d comments", r.Users, r.Recipes, r.Comments)
}

// ParseFixture decodes a YAML fixture and checks its references.
func ParseFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// LoadFixture reads a fixture by built-in name ("demo") or file path.
func LoadFixture(nameOrPath string) (*Fixture, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if strings.ContainsAny(nameOrPath, "/.") {
		f, err = os.Open(nameOrPath)
	} else {
		f, err = fixturesFS.Open("fixtures/" + nameOrPath + ".yml")
	}
	if err != nil {
		return nil, fmt.Errorf("open fixture %q: %w", nameOrPath, err)
	}
	defer func() { _ = f.Close() }()
	return ParseFixture(f)
}

func (fx *Fixture) validate() error {
	emails := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return fmt.Errorf("user %d: email is required", i)
		}
		if emails[email] {
			return fmt.Errorf("user %d: duplicate email %s", i, email)
		}
		emails[email] = true
	}
	for i, r := range fx.Recipes {
		if !emails[strings.ToLower(r.Author)] {
			return fmt.Errorf("recipe %d (%s): unknown author %q", i, r.Title, r.Author)
		}
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Ingredients) == "" || strings.TrimSpace(r.Instructions) == "" {
			return fmt.Errorf("recipe %d: title, ingredients and instructions are required", i)
		}
		for j, c := range r.Comments {
			if !emails[strings.ToLower(c.Author)] {
				return fmt.Errorf("recipe %d comment %d: unknown author %q", i, j, c.Author)
			}
			if strings.TrimSpace(c.Text) == "" {
				return fmt.Errorf("recipe %d comment %d: text is required", i, j)
			}
		}
	}
	return nil
}

// Seeder writes seed data through GORM.
type Seeder struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	now   func() time.Time
	// hashes caches bcrypt hashes per plain password.
	hashes map[string]string
}

// NewSeeder creates a seeder. A zero seed picks a random one.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{
		db:     db,
		faker:  gofakeit.New(seed),
		now:    time.Now,
		hashes: make(map[string]string),
	}
}

// ClearAll removes every comment, recipe, profile and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Comment{}, &models.Recipe{}, &models.Profile{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		middleware.Logger.InfoContext(ctx, "seed data cleared")
		return nil
	})
}

// ApplyFixture inserts the fixture in one transaction.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (Result, error) {
	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]string, len(fx.Users))
		for _, u := range fx.Users {
			user, err := s.createUser(tx, u.Email, u.FullName, u.Password)
			if err != nil {
				return err
			}
			ids[user.Email] = user.ID
			res.Users++
		}

		for i, r := range fx.Recipes {
			// Later entries are newer.
			created := s.now().Add(-time.Duration(len(fx.Recipes)-i) * time.Hour)
			recipe := &models.Recipe{
				UserID:       ids[strings.ToLower(r.Author)],
				Title:        strings.TrimSpace(r.Title),
				Description:  optional(r.Description),
				Ingredients:  strings.TrimSpace(r.Ingredients),
				Instructions: strings.TrimSpace(r.Instructions),
				ImageURL:     optional(r.ImageURL),
				CreatedAt:    created,
				UpdatedAt:    created,
			}
			if err := tx.Create(recipe).Error; err != nil {
				return fmt.Errorf("create recipe %q: %w", r.Title, err)
			}
			res.Recipes++

			for j, c := range r.Comments {
				comment := &models.Comment{
					RecipeID:  recipe.ID,
					UserID:    ids[strings.ToLower(c.Author)],
					Text:      strings.TrimSpace(c.Text),
					CreatedAt: created.Add(time.Duration(j+1) * time.Minute),
				}
				if err := tx.Create(comment).Error; err != nil {
					return fmt.Errorf("create comment on %q: %w", r.Title, err)
				}
				res.Comments++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	middleware.Logger.InfoContext(ctx, "fixture applied", "result", res.String())
	return res, nil
}

// SeedRandom creates users with fake recipes and a comment thread on each.
func (s *Seeder) SeedRandom(ctx context.Context, opts Options) (Result, error) {
	if opts.Users <= 0 {
		return Result{}, errors.New("at least one user is required")
	}
	maxDays := opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make([]*models.User, 0, opts.Users)
		for i := 0; i < opts.Users; i++ {
			email := fmt.Sprintf("%s.%d@example.com", strings.ToLower(s.faker.Username()), i)
			user, err := s.createUser(tx, email, s.faker.Name(), "")
			if err != nil {
				return err
			}
			users = append(users, user)
			res.Users++
		}

		for _, author := range users {
			for i := 0; i < opts.RecipesPerUser; i++ {
				recipe := s.fakeRecipe(author.ID, maxDays)
				if err := tx.Create(recipe).Error; err != nil {
					return fmt.Errorf("create recipe: %w", err)
				}
				res.Recipes++

				for j := 0; j < opts.CommentsPerRecipe; j++ {
					commenter := users[s.faker.Number(0, len(users)-1)]
					comment := &models.Comment{
						RecipeID:  recipe.ID,
						UserID:    commenter.ID,
						Text:      s.faker.Sentence(s.faker.Number(4, 14)),
						CreatedAt: recipe.CreatedAt.Add(time.Duration(j+1) * time.Duration(s.faker.Number(1, 180)) * time.Minute),
					}
					if err := tx.Create(comment).Error; err != nil {
						return fmt.Errorf("create comment: %w", err)
					}
					res.Comments++
				}
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	middleware.Logger.InfoContext(ctx, "random seed applied", "result", res.String())
	return res, nil
}

func (s *Seeder) fakeRecipe(userID string, maxDays int) *models.Recipe {
	dishes := []func() string{s.faker.Breakfast, s.faker.Lunch, s.faker.Dinner, s.faker.Dessert, s.faker.Snack}
	title := dishes[s.faker.Number(0, len(dishes)-1)]()

	ingredients := make([]string, s.faker.Number(3, 8))
	for i := range ingredients {
		item := s.faker.Vegetable()
		if s.faker.Bool() {
			item = s.faker.Fruit()
		}
		ingredients[i] = fmt.Sprintf("%d %s", s.faker.Number(1, 500), strings.ToLower(item))
	}

	steps := make([]string, s.faker.Number(2, 6))
	for i := range steps {
		steps[i] = fmt.Sprintf("%d. %s", i+1, s.faker.Sentence(s.faker.Number(6, 16)))
	}

	created := s.now().Add(-time.Duration(s.faker.Number(0, maxDays*24*60)) * time.Minute)
	recipe := &models.Recipe{
		UserID:       userID,
		Title:        title,
		Ingredients:  strings.Join(ingredients, "\n"),
		Instructions: strings.Join(steps, "\n"),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if s.faker.Bool() {
		recipe.Description = optional(s.faker.Sentence(s.faker.Number(5, 12)))
	}
	if s.faker.Number(0, 2) == 0 {
		recipe.ImageURL = optional(fmt.Sprintf("https://picsum.photos/seed/%s/800/600", s.faker.UUID()))
	}
	return recipe
}

func (s *Seeder) createUser(tx *gorm.DB, email, fullName, password string) (*models.User, error) {
	if password == "" {
		password = DefaultPassword
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	user := &models.User{Email: email, Password: hash}
	if err := tx.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}
	profile := &models.Profile{ID: user.ID, Email: email, FullName: optional(fullName)}
	if err := tx.Create(profile).Error; err != nil {
		return nil, fmt.Errorf("create profile %s: %w", email, err)
	}
	return user, nil
}

func (s *Seeder) hash(password string) (string, error) {
	if h, ok := s.hashes[password]; ok {
		return h, nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	s.hashes[password] = string(h)
	return string(h), nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
