package repository

import (
	"context"
	"errors"

	"github.com/didmybit/didmybit_server/internal/model"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrVersionConflict = errors.New("comment was modified concurrently")
)

// CommentStore 评论持久化接口，gorm 与 mongo 各有一份实现
type CommentStore interface {
	// Create 插入新评论；回复与父评论的关系由 ParentID 表达，只有一次写入
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	// ListByPostID 帖子下全部评论，按创建时间正序
	ListByPostID(ctx context.Context, postID string) ([]*model.Comment, error)
	// SaveReactions 以 expectedVersion 做比较并交换，成功后 comment.Version 自增
	SaveReactions(ctx context.Context, comment *model.Comment, expectedVersion int64) error
	// ListAfter 按 ID 分批扫描，供对账任务使用
	ListAfter(ctx context.Context, afterID string, limit int) ([]*model.Comment, error)
	Ping(ctx context.Context) error
}

var (
	_ CommentStore = (*CommentRepository)(nil)
	_ CommentStore = (*MongoCommentRepository)(nil)
)
