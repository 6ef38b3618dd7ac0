package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/didmybit/didmybit_server/internal/api/middleware"
	"github.com/didmybit/didmybit_server/internal/model/dto"
	"github.com/didmybit/didmybit_server/internal/pkg/response"
	"github.com/didmybit/didmybit_server/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
	logger         *zap.Logger
}

func NewCommentHandler(commentService *service.CommentService, logger *zap.Logger) *CommentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentHandler{
		commentService: commentService,
		logger:         logger,
	}
}

// List 获取帖子评论树
// GET /api/v1/comments/:postId
func (h *CommentHandler) List(c *gin.Context) {
	postID := c.Param("postId")

	var query dto.ListCommentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ParamError(c, "invalid pagination parameters")
		return
	}

	viewer, _ := middleware.GetUsername(c)

	items, total, err := h.commentService.GetThread(c.Request.Context(), postID, viewer, query.Page, query.PageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := gin.H{
		"comments": items,
		"total":    total,
	}
	if query.Page > 0 {
		data["page"] = query.Page
	}
	response.Success(c, data)
}

// Create 发表评论或回复
// POST /api/v1/comments/:postId
func (h *CommentHandler) Create(c *gin.Context) {
	postID := c.Param("postId")

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "text is required")
		return
	}

	username, _ := middleware.GetUsername(c)

	comment, err := h.commentService.Create(c.Request.Context(), postID, username, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Created(c, gin.H{"comment": comment})
}

// React 点赞/点踩
// POST /api/v1/comments/:postId/like
func (h *CommentHandler) React(c *gin.Context) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.ReactionRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ParamError(c, "commentId and action are required")
		return
	}

	result, err := h.commentService.React(c.Request.Context(), c.Param("postId"), username, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"likes":       result.Likes,
		"dislikes":    result.Dislikes,
		"hasLiked":    result.HasLiked,
		"hasDisliked": result.HasDisliked,
	})
}

// writeError 业务错误映射为 HTTP 状态，其余记日志后返回 500
func (h *CommentHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPostID),
		errors.Is(err, service.ErrEmptyText),
		errors.Is(err, service.ErrTextTooLong),
		errors.Is(err, service.ErrEmptyAuthor),
		errors.Is(err, service.ErrAuthorTooLong),
		errors.Is(err, service.ErrParentNotInPost),
		errors.Is(err, service.ErrInvalidAction):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		response.AuthError(c, err.Error())
	case errors.Is(err, service.ErrVoterMismatch):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrParentNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrReactionConflict):
		response.ConflictError(c, err.Error())
	default:
		h.logger.Error("comment request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}
