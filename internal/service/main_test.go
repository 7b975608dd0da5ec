package service

import (
	"context"
	"sync"
	"testing"

	"recipebox/internal/models"
	"recipebox/internal/repository"
	"recipebox/internal/storage"
	"recipebox/internal/testutil"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"gorm.io/gorm"
)

// recordingPublisher collects published change events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []models.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChangeEvent(nil), p.events...)
}

type fixture struct {
	db       *gorm.DB
	rdb      *redis.Client
	store    *storage.Store
	pub      *recordingPublisher
	recipes  *RecipeService
	comments *CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	_, rdb := testutil.NewTestRedis(t)
	store := storage.New(afero.NewMemMapFs(), storage.Options{
		PublicBaseURL: "http://localhost:8080/storage",
		MaxUploadMB:   1,
	})
	pub := &recordingPublisher{}

	recipeRepo := repository.NewRecipeRepository(db)
	return &fixture{
		db:       db,
		rdb:      rdb,
		store:    store,
		pub:      pub,
		recipes:  NewRecipeService(recipeRepo, repository.NewUserRepository(db), store, rdb, pub),
		comments: NewCommentService(repository.NewCommentRepository(db), recipeRepo, pub),
	}
}
