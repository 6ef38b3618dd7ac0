package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/didmybit/didmybit_server/config"
	"github.com/didmybit/didmybit_server/internal/model"
	"github.com/didmybit/didmybit_server/internal/model/dto"
	"github.com/didmybit/didmybit_server/internal/pkg/pubsub"
	"github.com/didmybit/didmybit_server/internal/pkg/queue"
	"github.com/didmybit/didmybit_server/internal/pkg/reaction"
	"github.com/didmybit/didmybit_server/internal/pkg/thread"
	"github.com/didmybit/didmybit_server/internal/repository"
)

var (
	ErrInvalidPostID    = errors.New("invalid post id")
	ErrEmptyText        = errors.New("comment text is required")
	ErrTextTooLong      = errors.New("comment text is too long")
	ErrEmptyAuthor      = errors.New("author is required")
	ErrAuthorTooLong    = errors.New("author is too long")
	ErrParentNotFound   = errors.New("parent comment not found")
	ErrParentNotInPost  = errors.New("parent comment belongs to another post")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrInvalidAction    = errors.New("action must be like or dislike")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrVoterMismatch    = errors.New("username does not match the authenticated user")
	ErrReactionConflict = errors.New("comment is busy, please retry")
)

const (
	MaxAuthorLength = 50
	MaxPostIDLength = 128
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var postIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ThreadCache 评论树缓存，未启用 redis 时为 nil
type ThreadCache interface {
	Get(ctx context.Context, postID string) ([]*model.Comment, bool, error)
	Generation(ctx context.Context, postID string) (int64, error)
	Set(ctx context.Context, postID string, gen int64, roots []*model.Comment) (bool, error)
	Invalidate(ctx context.Context, postID string) error
}

// EventPublisher 评论事件发布，未启用 redis 时为 nil
type EventPublisher interface {
	Publish(ctx context.Context, evt *pubsub.CommentEvent) error
}

// RepairQueue 读路径发现计数不一致时投递，由对账任务修复
type RepairQueue interface {
	Push(ctx context.Context, msg *queue.RepairMessage) error
}

type CommentService struct {
	store   repository.CommentStore
	cache   ThreadCache
	events  EventPublisher
	repairs RepairQueue
	cfg     config.CommentConfig
	logger  *zap.Logger
}

func NewCommentService(
	store repository.CommentStore,
	cache ThreadCache,
	events EventPublisher,
	cfg config.CommentConfig,
	logger *zap.Logger,
) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		store:  store,
		cache:  cache,
		events: events,
		cfg:    cfg.WithDefaults(),
		logger: logger,
	}
}

// WithRepairQueue 开启读路径的不一致上报
func (s *CommentService) WithRepairQueue(repairs RepairQueue) *CommentService {
	s.repairs = repairs
	return s
}

// ValidatePostID 校验帖子标识
func ValidatePostID(postID string) error {
	if postID == "" || len(postID) > MaxPostIDLength || !postIDPattern.MatchString(postID) {
		return ErrInvalidPostID
	}
	return nil
}

// GetThread 获取帖子的评论树；page 为 0 时返回完整树，否则对一级评论分页。
// viewer 非空时填充 hasLiked/hasDisliked。
func (s *CommentService) GetThread(ctx context.Context, postID, viewer string, page, pageSize int) ([]*dto.CommentItem, int64, error) {
	if err := ValidatePostID(postID); err != nil {
		return nil, 0, err
	}

	roots, err := s.loadThread(ctx, postID)
	if err != nil {
		return nil, 0, err
	}

	total := int64(len(roots))

	if page > 0 {
		if pageSize < 1 {
			pageSize = DefaultPageSize
		}
		if pageSize > MaxPageSize {
			pageSize = MaxPageSize
		}
		// 先比较页数再相乘，超大页码不会溢出
		pages := (len(roots) + pageSize - 1) / pageSize
		if page > pages {
			roots = roots[:0]
		} else {
			start := (page - 1) * pageSize
			end := start + pageSize
			if end > len(roots) {
				end = len(roots)
			}
			roots = roots[start:end]
		}
	}

	items := make([]*dto.CommentItem, len(roots))
	for i, c := range roots {
		items[i] = buildCommentItem(c, viewer)
	}

	return items, total, nil
}

// loadThread 先查缓存，未命中则查库组装并回填
func (s *CommentService) loadThread(ctx context.Context, postID string) ([]*model.Comment, error) {
	var gen int64
	cacheable := false
	if s.cache != nil {
		roots, ok, err := s.cache.Get(ctx, postID)
		if err != nil {
			s.logger.Warn("thread cache read failed", zap.String("post_id", postID), zap.Error(err))
		} else if ok {
			return roots, nil
		}

		// 代数要在读库之前取
		if gen, err = s.cache.Generation(ctx, postID); err != nil {
			s.logger.Warn("thread cache generation failed", zap.String("post_id", postID), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	comments, err := s.store.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", postID, err)
	}

	s.reportDrift(ctx, comments)

	roots := thread.Assemble(comments, s.cfg.MaxDepth)
	if omitted := len(comments) - thread.Count(roots); omitted > 0 {
		s.logger.Info("comments omitted from thread",
			zap.String("post_id", postID),
			zap.Int("omitted", omitted),
			zap.Int("max_depth", s.cfg.MaxDepth),
		)
	}

	if cacheable {
		stored, err := s.cache.Set(ctx, postID, gen, roots)
		if err != nil {
			s.logger.Warn("thread cache write failed", zap.String("post_id", postID), zap.Error(err))
		} else if !stored {
			s.logger.Debug("thread changed while loading, skip cache fill", zap.String("post_id", postID))
		}
	}

	return roots, nil
}

// Create 发表评论或回复；username 为已认证用户名，非空时覆盖请求中的 author
func (s *CommentService) Create(ctx context.Context, postID, username string, req *dto.CreateCommentRequest) (*dto.CommentItem, error) {
	if err := ValidatePostID(postID); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxLength {
		return nil, ErrTextTooLong
	}

	author := strings.TrimSpace(username)
	if author == "" {
		author = strings.TrimSpace(req.Author)
	}
	if author == "" {
		return nil, ErrEmptyAuthor
	}
	if utf8.RuneCountInString(author) > MaxAuthorLength {
		return nil, ErrAuthorTooLong
	}

	var parentID *string
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		id := strings.TrimSpace(*req.ParentID)

		parent, err := s.store.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrCommentNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}

		// 父评论必须属于同一帖子
		if parent.PostID != postID {
			return nil, ErrParentNotInPost
		}
		parentID = &parent.ID
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate comment id: %w", err)
	}

	now := time.Now().UTC()
	comment := &model.Comment{
		ID:         id.String(),
		PostID:     postID,
		ParentID:   parentID,
		Text:       text,
		Author:     author,
		LikedBy:    []string{},
		DislikedBy: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Create(ctx, comment); err != nil {
		return nil, err
	}

	item := buildCommentItem(comment, "")

	s.invalidate(ctx, postID)
	s.publish(ctx, &pubsub.CommentEvent{
		Type:      pubsub.EventCommentCreated,
		PostID:    postID,
		CommentID: comment.ID,
		ParentID:  comment.ParentID,
		Comment:   item,
	})

	return item, nil
}

// React 对评论点赞或点踩，版本冲突时重读重试
func (s *CommentService) React(ctx context.Context, postID, voter string, req *dto.ReactionRequest) (*dto.ReactionResult, error) {
	if err := ValidatePostID(postID); err != nil {
		return nil, err
	}

	voter = strings.TrimSpace(voter)
	if voter == "" {
		return nil, ErrUnauthenticated
	}
	if claimed := strings.TrimSpace(req.Username); claimed != "" && claimed != voter {
		return nil, ErrVoterMismatch
	}

	action, err := reaction.ParseAction(req.Action)
	if err != nil {
		return nil, ErrInvalidAction
	}

	for attempt := 1; attempt <= s.cfg.ReactionRetries; attempt++ {
		comment, err := s.store.GetByID(ctx, req.CommentID)
		if err != nil {
			if errors.Is(err, repository.ErrCommentNotFound) {
				return nil, ErrCommentNotFound
			}
			return nil, err
		}
		if comment.PostID != postID {
			return nil, ErrCommentNotFound
		}

		// 在一致的状态上切换，写回时顺带修正历史数据
		state, drifted := reaction.Normalize(comment.ReactionState())
		if drifted {
			s.logger.Info("normalizing drifted reaction state", zap.String("comment_id", comment.ID))
		}

		result, err := reaction.Apply(state, action, voter)
		if err != nil {
			return nil, err
		}

		expected := comment.Version
		comment.SetReactionState(result.State)

		err = s.store.SaveReactions(ctx, comment, expected)
		switch {
		case err == nil:
			s.invalidate(ctx, postID)
			s.publish(ctx, &pubsub.CommentEvent{
				Type:      pubsub.EventReactionUpdated,
				PostID:    postID,
				CommentID: comment.ID,
				ParentID:  comment.ParentID,
				Likes:     comment.Likes,
				Dislikes:  comment.Dislikes,
			})

			return &dto.ReactionResult{
				Likes:       comment.Likes,
				Dislikes:    comment.Dislikes,
				HasLiked:    result.HasLiked,
				HasDisliked: result.HasDisliked,
			}, nil
		case errors.Is(err, repository.ErrVersionConflict):
			s.logger.Debug("reaction version conflict",
				zap.String("comment_id", comment.ID),
				zap.Int("attempt", attempt),
			)
			continue
		case errors.Is(err, repository.ErrCommentNotFound):
			return nil, ErrCommentNotFound
		default:
			return nil, err
		}
	}

	s.logger.Warn("reaction retries exhausted",
		zap.String("comment_id", req.CommentID),
		zap.Int("retries", s.cfg.ReactionRetries),
	)
	return nil, ErrReactionConflict
}

// Ping 检查存储连通性
func (s *CommentService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *CommentService) invalidate(ctx context.Context, postID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, postID); err != nil {
		s.logger.Warn("thread cache invalidate failed", zap.String("post_id", postID), zap.Error(err))
	}
}

func (s *CommentService) publish(ctx context.Context, evt *pubsub.CommentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish comment event failed",
			zap.String("type", evt.Type),
			zap.String("comment_id", evt.CommentID),
			zap.Error(err),
		)
	}
}

// reportDrift 把计数与集合不一致的评论投递到修复队列
func (s *CommentService) reportDrift(ctx context.Context, comments []*model.Comment) {
	if s.repairs == nil {
		return
	}
	for _, c := range comments {
		if _, drifted := reaction.Normalize(c.ReactionState()); !drifted {
			continue
		}
		err := s.repairs.Push(ctx, &queue.RepairMessage{
			CommentID: c.ID,
			PostID:    c.PostID,
			Reason:    "reaction counts drifted",
		})
		if err != nil {
			s.logger.Warn("enqueue repair failed", zap.String("comment_id", c.ID), zap.Error(err))
		}
	}
}

func buildCommentItem(c *model.Comment, viewer string) *dto.CommentItem {
	item := &dto.CommentItem{
		ID:        c.ID,
		PostID:    c.PostID,
		ParentID:  c.ParentID,
		Text:      c.Text,
		Author:    c.Author,
		Likes:     c.Likes,
		Dislikes:  c.Dislikes,
		Replies:   make([]*dto.CommentItem, 0, len(c.Replies)),
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}

	if viewer != "" {
		item.HasLiked = reaction.Contains(c.LikedBy, viewer)
		item.HasDisliked = reaction.Contains(c.DislikedBy, viewer)
	}

	for _, r := range c.Replies {
		item.Replies = append(item.Replies, buildCommentItem(r, viewer))
	}

	return item
}
