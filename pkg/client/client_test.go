package client

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"recipebox/internal/commentsync"
	"recipebox/internal/config"
	"recipebox/internal/models"
	"recipebox/internal/server"
	"recipebox/internal/service"
	"recipebox/internal/session"
	"recipebox/internal/storage"
	"recipebox/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a full server on a loopback port backed by SQLite,
// miniredis and an in-memory image store.
func startServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	srv, base, _ := startServerWithRedis(t)
	return srv, base
}

func startServerWithRedis(t *testing.T) (*server.Server, string, *miniredis.Miniredis) {
	t.Helper()

	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)
	store := storage.New(afero.NewMemMapFs(), storage.Options{
		PublicBaseURL: "http://localhost:8080/storage",
		MaxUploadMB:   1,
	})
	cfg := &config.Config{
		JWTSecret:            "client-test-secret-with-enough-entropy-0123456789",
		Env:                  "test",
		AllowedOrigins:       "http://localhost:3000",
		PublicBaseURL:        "http://localhost:8080",
		ImageMaxUploadSizeMB: 1,
	}
	srv, err := server.NewServerWithDeps(cfg, db, rdb, store)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	return srv, base, mr
}

func newClient(t *testing.T, base string) *Client {
	t.Helper()
	c, err := New(base)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	c, err := New("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/recipes", c.endpoint("", "/recipes", nil))
	assert.Equal(t, "wss://localhost:8080/api/ws/changes?recipe_id=r1", c.endpoint("wss", "/ws/changes", map[string][]string{"recipe_id": {"r1"}}))
}

func TestAuthFlow_DrivesSession(t *testing.T) {
	ctx := context.Background()
	_, base := startServer(t)
	c := newClient(t, base)

	var events []session.Event
	unsubscribe := c.Session().Subscribe(func(ev session.Event, _ *models.Session) {
		events = append(events, ev)
	})
	defer unsubscribe()

	_, err := c.SignUp(ctx, "cook@example.com", "123", "")
	assert.True(t, IsCode(err, models.CodeValidation))
	assert.Nil(t, c.Session().Current())

	s, err := c.SignUp(ctx, "cook@example.com", "secret1", "Cook")
	require.NoError(t, err)
	assert.Equal(t, "cook@example.com", c.Session().User().Email)

	_, err = c.SignUp(ctx, "cook@example.com", "secret1", "")
	assert.True(t, IsCode(err, models.CodeConflict))

	require.NoError(t, c.UpdatePassword(ctx, "secret2"))
	require.NoError(t, c.SignOut(ctx))
	assert.Nil(t, c.Session().Current())
	require.NoError(t, c.SignOut(ctx), "signing out twice is a no-op")

	_, err = c.SignIn(ctx, "cook@example.com", "secret1")
	assert.True(t, IsCode(err, models.CodeUnauthorized))
	_, err = c.SignIn(ctx, "cook@example.com", "secret2")
	require.NoError(t, err)

	// The token from sign-up was revoked by SignOut.
	other := newClient(t, base)
	_, err = other.RestoreSession(ctx, s.AccessToken)
	assert.True(t, IsCode(err, models.CodeUnauthorized))
	restored, err := other.RestoreSession(ctx, c.Session().Current().AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, restored.User.ID)

	assert.Equal(t, []session.Event{
		session.SignedIn, session.UserUpdated, session.SignedOut, session.SignedIn,
	}, events)

	require.NoError(t, c.RequestPasswordReset(ctx, "nobody@example.com"))
	err = c.ResetPassword(ctx, "bogus", "secret3")
	assert.True(t, IsCode(err, models.CodeValidation))
}

func TestResetPassword_AnnouncesRecovery(t *testing.T) {
	ctx := context.Background()
	_, base, mr := startServerWithRedis(t)
	c := newClient(t, base)
	_, err := c.SignUp(ctx, "dana@example.com", "secret1", "")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(ctx))

	var events []session.Event
	unsubscribe := c.Session().Subscribe(func(ev session.Event, _ *models.Session) {
		events = append(events, ev)
	})
	defer unsubscribe()

	require.NoError(t, c.RequestPasswordReset(ctx, "dana@example.com"))
	prefix := service.ResetKey("")
	var token string
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, prefix) {
			token = strings.TrimPrefix(key, prefix)
		}
	}
	require.NotEmpty(t, token, "a reset token is stored")

	require.NoError(t, c.ResetPassword(ctx, token, "secret9"))
	assert.Equal(t, []session.Event{session.PasswordRecovery}, events)
	assert.Nil(t, c.Session().Current())

	_, err = c.SignIn(ctx, "dana@example.com", "secret9")
	require.NoError(t, err)
	err = c.ResetPassword(ctx, token, "secret10")
	assert.True(t, IsCode(err, models.CodeValidation), "reset tokens are single use")
}

func TestRecipes(t *testing.T) {
	ctx := context.Background()
	_, base := startServer(t)
	ada := newClient(t, base)
	bob := newClient(t, base)
	_, err := ada.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	_, err = bob.SignUp(ctx, "bob@example.com", "secret1", "")
	require.NoError(t, err)

	desc := "Crusty"
	bread, err := ada.CreateRecipe(ctx, NewRecipe{
		Title:        "Bread",
		Description:  &desc,
		Ingredients:  "flour",
		Instructions: "bake",
	})
	require.NoError(t, err)

	soup, err := ada.CreateRecipe(ctx, NewRecipe{
		Title:        "Soup",
		Ingredients:  "water",
		Instructions: "boil",
		Image:        &Image{Filename: "soup.png", Content: bytes.NewReader(testutil.PNGBytes(t, 8, 8))},
	})
	require.NoError(t, err)
	require.NotNil(t, soup.ImageURL)
	require.NotNil(t, soup.ImagePath)

	_, err = ada.CreateRecipe(ctx, NewRecipe{
		Title:        "Text",
		Ingredients:  "x",
		Instructions: "y",
		Image:        &Image{Filename: "notes.png", Content: strings.NewReader("plain text")},
	})
	assert.True(t, IsCode(err, models.CodeValidation))

	list, err := bob.ListRecipes(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, soup.ID, list[0].ID, "newest first")

	page, err := bob.ListRecipes(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, bread.ID, page[0].ID)

	mine, err := bob.MyRecipes(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, mine)

	got, err := bob.GetRecipe(ctx, bread.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.AuthorEmail)

	title := "Sourdough"
	_, err = bob.UpdateRecipe(ctx, bread.ID, models.RecipeUpdate{Title: &title})
	assert.True(t, IsCode(err, models.CodeForbidden))
	updated, err := ada.UpdateRecipe(ctx, bread.ID, models.RecipeUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Sourdough", updated.Title)

	replaced, err := ada.ReplaceRecipeImage(ctx, bread.ID, Image{Filename: "b.png", Content: bytes.NewReader(testutil.PNGBytes(t, 4, 4))})
	require.NoError(t, err)
	require.NotNil(t, replaced.ImagePath)

	cleared, err := ada.RemoveRecipeImage(ctx, bread.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.ImageURL)
	assert.Nil(t, cleared.ImagePath)

	require.NoError(t, ada.DeleteRecipe(ctx, soup.ID))
	_, err = bob.GetRecipe(ctx, soup.ID)
	assert.True(t, IsCode(err, models.CodeNotFound))
}

func TestCommentViewsOverTheWire(t *testing.T) {
	ctx := context.Background()
	srv, base := startServer(t)
	ada := newClient(t, base)
	bob := newClient(t, base)
	guest := newClient(t, base)
	_, err := ada.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	_, err = bob.SignUp(ctx, "bob@example.com", "secret1", "")
	require.NoError(t, err)

	recipe, err := ada.CreateRecipe(ctx, NewRecipe{Title: "Bread", Ingredients: "flour", Instructions: "bake"})
	require.NoError(t, err)
	_, err = bob.InsertComment(ctx, recipe.ID, "First!")
	require.NoError(t, err)

	open := func(c *Client) *commentsync.View {
		v := commentsync.New(recipe.ID, c, c.Session())
		require.NoError(t, v.Load(ctx))
		require.NoError(t, v.Start(ctx))
		t.Cleanup(func() { _ = v.Close() })
		return v
	}
	adaView := open(ada)
	guestView := open(guest)
	require.Len(t, adaView.Snapshot(), 1)
	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	c, err := adaView.Submit(ctx, "Thanks")
	require.NoError(t, err)
	assert.Equal(t, "Ada", c.AuthorName())

	require.Eventually(t, func() bool { return len(guestView.Snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	// Give the echo of ada's own insert time to arrive; it must not duplicate.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, adaView.Snapshot(), 2)

	_, err = guestView.Submit(ctx, "anonymous")
	assert.ErrorIs(t, err, commentsync.ErrNotSignedIn)

	err = bob.DeleteComment(ctx, c.ID)
	assert.True(t, IsCode(err, models.CodeForbidden))

	require.NoError(t, adaView.Delete(ctx, c.ID))
	require.Eventually(t, func() bool { return len(guestView.Snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "First!", guestView.Snapshot()[0].Text)
}

func TestSubscribe_BadFilter(t *testing.T) {
	_, base := startServer(t)
	c := newClient(t, base)

	_, err := c.Subscribe(context.Background(), models.ChangeFilter{Table: "recipes"})
	require.Error(t, err)
	assert.True(t, IsCode(err, models.CodeValidation))
}
