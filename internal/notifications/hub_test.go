package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"recipebox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func commentEvent(typ, recipeID, commentID string) models.ChangeEvent {
	ev := models.ChangeEvent{Table: models.TableComments, Type: typ, RecipeID: recipeID, CommitTimestamp: time.Now()}
	ref := &models.RecordRef{ID: commentID}
	if typ == models.EventDelete {
		ev.Old = ref
	} else {
		ev.New = ref
	}
	return ev
}

func TestHub_DispatchRespectsFilter(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	r1, err := hub.Register("u1", models.ChangeFilter{Table: models.TableComments, Event: models.EventAll, RecipeID: "r1"}, nil)
	require.NoError(t, err)
	r2, err := hub.Register("", models.ChangeFilter{Table: models.TableComments, Event: models.EventAll, RecipeID: "r2"}, nil)
	require.NoError(t, err)
	deletesOnly, err := hub.Register("", models.ChangeFilter{Table: models.TableComments, Event: models.EventDelete}, nil)
	require.NoError(t, err)

	hub.Dispatch(commentEvent(models.EventInsert, "r1", "c1"))

	require.Len(t, r1.Send, 1)
	assert.Empty(t, r2.Send)
	assert.Empty(t, deletesOnly.Send)

	var got models.ChangeEvent
	require.NoError(t, json.Unmarshal(<-r1.Send, &got))
	assert.Equal(t, "c1", got.RecordID())
	assert.Equal(t, models.EventInsert, got.Type)

	hub.Dispatch(commentEvent(models.EventDelete, "r2", "c9"))
	assert.Len(t, r2.Send, 1)
	assert.Len(t, deletesOnly.Send, 1)
	assert.Empty(t, r1.Send)
}

func TestHub_UnregisterClosesSendAndIsIdempotent(t *testing.T) {
	hub := NewHub()
	client, err := hub.Register("u1", models.ChangeFilter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.ClientCount())

	hub.UnregisterClient(client)
	hub.UnregisterClient(client)
	assert.Equal(t, 0, hub.ClientCount())

	_, ok := <-client.Send
	assert.False(t, ok)
}

func TestHub_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	client, err := hub.Register("u1", models.ChangeFilter{}, nil)
	require.NoError(t, err)

	for i := 0; i < sendBufferSize+10; i++ {
		hub.Dispatch(commentEvent(models.EventInsert, "r1", "c"))
	}
	assert.Len(t, client.Send, sendBufferSize)
}

func TestHub_Listener(t *testing.T) {
	hub := NewHub()
	l := hub.Listen(models.ChangeFilter{Table: models.TableComments, RecipeID: "r1"})

	hub.Dispatch(commentEvent(models.EventInsert, "r2", "c0"))
	hub.Dispatch(commentEvent(models.EventInsert, "r1", "c1"))

	select {
	case ev := <-l.Events():
		assert.Equal(t, "c1", ev.RecordID())
	case <-time.After(testEventuallyTimeout):
		t.Fatal("listener did not receive event")
	}

	assert.Equal(t, 1, hub.ListenerCount())
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Equal(t, 0, hub.ListenerCount())
	_, ok := <-l.Events()
	assert.False(t, ok)
}

func TestHub_ShutdownRejectsRegistrations(t *testing.T) {
	hub := NewHub()
	l := hub.Listen(models.ChangeFilter{})
	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, ok := <-l.Events()
	assert.False(t, ok)
	assert.NoError(t, l.Close())

	_, err := hub.Register("u1", models.ChangeFilter{}, nil)
	assert.ErrorIs(t, err, ErrHubClosed)

	late := hub.Listen(models.ChangeFilter{})
	_, ok = <-late.Events()
	assert.False(t, ok)
}
