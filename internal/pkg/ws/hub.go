package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub 按帖子分组的 websocket 连接表
type Hub struct {
	// 每个帖子可以有多个观看者连接
	rooms  map[string]map[*Client]struct{}
	mu     sync.RWMutex
	logger *zap.Logger
}

type Client struct {
	PostID string
	Conn   *websocket.Conn
	mu     sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Join 将连接加入帖子房间
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[client.PostID] == nil {
		h.rooms[client.PostID] = make(map[*Client]struct{})
	}
	h.rooms[client.PostID][client] = struct{}{}

	h.logger.Debug("ws client joined",
		zap.String("post_id", client.PostID),
		zap.Int("room_conns", len(h.rooms[client.PostID])),
	)
}

// Leave 将连接移出房间，房间空了就删除
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.rooms[client.PostID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.rooms, client.PostID)
		}
	}
	h.logger.Debug("ws client left", zap.String("post_id", client.PostID))
}

// Broadcast 向帖子房间内所有连接发送消息
func (h *Hub) Broadcast(postID string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns, ok := h.rooms[postID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.Write(data); err != nil {
			h.logger.Warn("ws broadcast write failed",
				zap.String("post_id", postID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Write 串行写入一条文本消息
func (c *Client) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// RoomSize 获取帖子房间的连接数
func (h *Hub) RoomSize(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[postID])
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.rooms {
		total += len(conns)
	}
	return total
}
