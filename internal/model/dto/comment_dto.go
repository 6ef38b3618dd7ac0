package dto

// CreateCommentRequest 创建评论请求
type CreateCommentRequest struct {
	Text     string  `json:"text" binding:"required"`
	Author   string  `json:"author"`
	ParentID *string `json:"parentId,omitempty"`
}

// ReactionRequest 点赞/点踩请求
type ReactionRequest struct {
	CommentID string `json:"commentId" binding:"required"`
	Action    string `json:"action" binding:"required"`
	// 兼容旧客户端，若填写必须与 token 中的用户名一致
	Username string `json:"username"`
}

// ListCommentsQuery 评论列表分页参数，page 为 0 表示不分页
type ListCommentsQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1"`
}

// CommentItem 评论项
type CommentItem struct {
	ID          string         `json:"id"`
	PostID      string         `json:"postId"`
	ParentID    *string        `json:"parentId"`
	Text        string         `json:"text"`
	Author      string         `json:"author"`
	Likes       int            `json:"likes"`
	Dislikes    int            `json:"dislikes"`
	HasLiked    bool           `json:"hasLiked"`
	HasDisliked bool           `json:"hasDisliked"`
	Replies     []*CommentItem `json:"replies"`
	CreatedAt   string         `json:"createdAt"`
}

// ReactionResult 点赞结果
type ReactionResult struct {
	Likes       int  `json:"likes"`
	Dislikes    int  `json:"dislikes"`
	HasLiked    bool `json:"hasLiked"`
	HasDisliked bool `json:"hasDisliked"`
}
