package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/didmybit/didmybit_server/internal/pkg/pubsub"
	"github.com/didmybit/didmybit_server/internal/pkg/response"
	"github.com/didmybit/didmybit_server/internal/pkg/ws"
	"github.com/didmybit/didmybit_server/internal/service"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler allowedOrigins 为空或含 "*" 时不校验 Origin
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Handle 订阅帖子的实时评论事件
// GET /api/v1/comments/:postId/ws
func (h *WebSocketHandler) Handle(c *gin.Context) {
	postID := c.Param("postId")
	if err := service.ValidatePostID(postID); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("post_id", postID), zap.Error(err))
		return
	}

	client := &ws.Client{
		PostID: postID,
		Conn:   conn,
	}

	h.hub.Join(client)

	// 保持连接，读取消息（主要用于检测断开）
	go func() {
		defer func() {
			h.hub.Leave(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Forward 把订阅到的评论事件推给对应帖子的观看者
func (h *WebSocketHandler) Forward(evt *pubsub.CommentEvent) {
	if err := h.hub.Broadcast(evt.PostID, &ws.Message{Type: evt.Type, Data: evt}); err != nil {
		h.logger.Warn("forward comment event failed",
			zap.String("post_id", evt.PostID),
			zap.Error(err),
		)
	}
}
