package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/didmybit/didmybit_server/internal/model"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create 创建评论
func (r *CommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取评论
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("get comment %s: %w", id, err)
	}
	return &comment, nil
}

// ListByPostID 获取帖子下的全部评论
func (r *CommentRepository) ListByPostID(ctx context.Context, postID string) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments of post %s: %w", postID, err)
	}
	return comments, nil
}

// SaveReactions 带版本号的条件更新
func (r *CommentRepository) SaveReactions(ctx context.Context, comment *model.Comment, expectedVersion int64) error {
	updated := *comment
	updated.Replies = nil
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&updated).
		Where("version = ?", expectedVersion).
		Select("likes", "dislikes", "liked_by", "disliked_by", "version", "updated_at").
		Updates(&updated)
	if result.Error != nil {
		return fmt.Errorf("save reactions of %s: %w", comment.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", comment.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("save reactions of %s: %w", comment.ID, err)
		}
		if count == 0 {
			return ErrCommentNotFound
		}
		return ErrVersionConflict
	}

	comment.Version = updated.Version
	comment.UpdatedAt = updated.UpdatedAt
	return nil
}

// ListAfter 按 ID 升序分批获取
func (r *CommentRepository) ListAfter(ctx context.Context, afterID string, limit int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments after %q: %w", afterID, err)
	}
	return comments, nil
}

func (r *CommentRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
