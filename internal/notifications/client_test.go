package notifications

import (
	"context"
	"net"
	"testing"
	"time"

	"recipebox/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveHub exposes hub on a loopback websocket endpoint. Every client whose
// Serve call has returned is sent on the returned channel.
func serveHub(t *testing.T, hub *Hub) (string, <-chan *Client) {
	t.Helper()

	served := make(chan *Client, 4)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		client, err := hub.Register("", models.ChangeFilter{Table: models.TableComments, Event: models.EventAll}, conn)
		if err != nil {
			return
		}
		client.Serve(hub.Logger())
		served <- client
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/ws", served
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	var conn *gorilla.Conn
	require.Eventually(t, func() bool {
		c, _, err := gorilla.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, testPollInterval)
	return conn
}

func TestClient_ServeReturnsAfterWritePump(t *testing.T) {
	hub := NewHub()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	url, served := serveHub(t, hub)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, testEventuallyTimeout, testPollInterval)

	hub.Dispatch(commentEvent(models.EventInsert, "r1", "c1"))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.ChangeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "c1", ev.RecordID())

	require.NoError(t, conn.Close())

	select {
	case client := <-served:
		select {
		case <-client.Done():
		default:
			t.Fatal("Serve returned while the write pump was still running")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the peer disconnected")
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_ShutdownSendsGoingAway(t *testing.T) {
	hub := NewHub()
	url, served := serveHub(t, hub)

	conn := dial(t, url)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, testEventuallyTimeout, testPollInterval)

	require.NoError(t, hub.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseGoingAway), "got %v", err)

	select {
	case client := <-served:
		<-client.Done()
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
}
