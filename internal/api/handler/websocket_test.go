package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didmybit/didmybit_server/internal/pkg/pubsub"
	"github.com/didmybit/didmybit_server/internal/pkg/ws"
)

func setupWebSocketServer(t *testing.T, origins []string) (*httptest.Server, *ws.Hub, *WebSocketHandler) {
	t.Helper()

	hub := ws.NewHub(nil)
	handler := NewWebSocketHandler(hub, origins, nil)

	router := gin.New()
	router.GET("/comments/:postId/ws", handler.Handle)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, hub, handler
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestWebSocketHandler_ForwardToRoom(t *testing.T) {
	server, hub, handler := setupWebSocketServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/comments/p1/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.RoomSize("p1") == 1
	}, time.Second, 10*time.Millisecond)

	handler.Forward(&pubsub.CommentEvent{
		Type:      pubsub.EventReactionUpdated,
		PostID:    "p1",
		CommentID: "c1",
		Likes:     4,
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg struct {
		Type string              `json:"type"`
		Data pubsub.CommentEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, pubsub.EventReactionUpdated, msg.Type)
	assert.Equal(t, "c1", msg.Data.CommentID)
	assert.Equal(t, 4, msg.Data.Likes)
}

func TestWebSocketHandler_LeaveOnDisconnect(t *testing.T) {
	server, hub, _ := setupWebSocketServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/comments/p1/ws"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.RoomSize("p1") == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.ConnectionCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_InvalidPostID(t *testing.T) {
	server, _, _ := setupWebSocketServer(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/comments/bad.id/ws"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketHandler_OriginCheck(t *testing.T) {
	server, _, _ := setupWebSocketServer(t, []string{"https://didmybit.example"})

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/comments/p1/ws"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://didmybit.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/comments/p1/ws"), header)
	require.NoError(t, err)
	conn.Close()
}
