package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/didmybit/didmybit_server/internal/model"
)

var fixtureClock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TestComment 创建测试评论
func TestComment(t *testing.T, db *gorm.DB, postID, text string, opts ...func(*model.Comment)) *model.Comment {
	t.Helper()

	comment := NewComment(postID, text, opts...)
	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("Failed to create test comment: %v", err)
	}

	return comment
}

// TestReply 创建测试回复
func TestReply(t *testing.T, db *gorm.DB, parent *model.Comment, text string, opts ...func(*model.Comment)) *model.Comment {
	t.Helper()

	opts = append([]func(*model.Comment){WithParent(parent.ID)}, opts...)
	return TestComment(t, db, parent.PostID, text, opts...)
}

// NewComment 构造未落库的评论，创建时间按调用顺序递增
func NewComment(postID, text string, opts ...func(*model.Comment)) *model.Comment {
	fixtureClock = fixtureClock.Add(time.Second)

	comment := &model.Comment{
		ID:         uuid.Must(uuid.NewV7()).String(),
		PostID:     postID,
		Text:       text,
		Author:     fmt.Sprintf("author_%d", fixtureClock.Unix()%10000),
		LikedBy:    []string{},
		DislikedBy: []string{},
		CreatedAt:  fixtureClock,
		UpdatedAt:  fixtureClock,
	}

	for _, opt := range opts {
		opt(comment)
	}

	return comment
}

// WithAuthor 设置作者
func WithAuthor(author string) func(*model.Comment) {
	return func(c *model.Comment) {
		c.Author = author
	}
}

// WithParent 设置父评论
func WithParent(parentID string) func(*model.Comment) {
	return func(c *model.Comment) {
		c.ParentID = &parentID
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(at time.Time) func(*model.Comment) {
	return func(c *model.Comment) {
		c.CreatedAt = at
		c.UpdatedAt = at
	}
}

// WithVoters 设置点赞/点踩用户，计数与集合保持一致
func WithVoters(likedBy, dislikedBy []string) func(*model.Comment) {
	return func(c *model.Comment) {
		c.LikedBy = likedBy
		c.DislikedBy = dislikedBy
		c.Likes = len(likedBy)
		c.Dislikes = len(dislikedBy)
	}
}

// WithCounts 直接设置计数，用于构造不一致数据
func WithCounts(likes, dislikes int) func(*model.Comment) {
	return func(c *model.Comment) {
		c.Likes = likes
		c.Dislikes = dislikes
	}
}
