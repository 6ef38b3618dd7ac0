package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelCommentEvents = "comment_events"
)

// 事件类型
const (
	EventCommentCreated  = "comment_created"
	EventReactionUpdated = "reaction_updated"
)

// CommentEvent 评论事件，推送给同一帖子下的在线客户端
type CommentEvent struct {
	Type      string      `json:"type"`
	PostID    string      `json:"postId"`
	CommentID string      `json:"commentId"`
	ParentID  *string     `json:"parentId,omitempty"`
	Comment   interface{} `json:"comment,omitempty"`
	Likes     int         `json:"likes"`
	Dislikes  int         `json:"dislikes"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish 发布评论事件
func (p *Publisher) Publish(ctx context.Context, evt *CommentEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal comment event: %w", err)
	}

	return p.client.Publish(ctx, ChannelCommentEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅评论事件，阻塞直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*CommentEvent)) error {
	sub := s.client.Subscribe(ctx, ChannelCommentEvents)
	defer sub.Close()

	// 等待订阅确认，避免之后发布的消息丢失
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", ChannelCommentEvents, err)
	}

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var evt CommentEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue // 忽略解析错误
			}

			handler(&evt)
		}
	}
}
