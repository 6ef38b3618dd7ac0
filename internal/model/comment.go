package model

import (
	"time"

	"github.com/didmybit/didmybit_server/internal/pkg/reaction"
)

// Comment 评论，同时作为 gorm 行和 mongo 文档
type Comment struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	PostID     string    `gorm:"size:128;not null;index:idx_post_parent,priority:1" json:"postId" bson:"postId"`
	ParentID   *string   `gorm:"size:36;index:idx_post_parent,priority:2" json:"parentId" bson:"parentId"`
	Text       string    `gorm:"type:text;not null" json:"text" bson:"text"`
	Author     string    `gorm:"size:50;not null" json:"author" bson:"author"`
	Likes      int       `gorm:"not null;default:0" json:"likes" bson:"likes"`
	Dislikes   int       `gorm:"not null;default:0" json:"dislikes" bson:"dislikes"`
	LikedBy    []string  `gorm:"type:text;serializer:json" json:"likedBy" bson:"likedBy"`
	DislikedBy []string  `gorm:"type:text;serializer:json" json:"dislikedBy" bson:"dislikedBy"`
	Version    int64     `gorm:"not null;default:0" json:"version" bson:"version"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`

	// 组装评论树时填充，不落库
	Replies []*Comment `gorm:"-" json:"replies,omitempty" bson:"-"`
}

func (Comment) TableName() string {
	return "comments"
}

// IsRoot 是否为一级评论
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

// ReactionState 取出点赞状态
func (c *Comment) ReactionState() reaction.State {
	return reaction.State{
		Likes:      c.Likes,
		Dislikes:   c.Dislikes,
		LikedBy:    c.LikedBy,
		DislikedBy: c.DislikedBy,
	}
}

// SetReactionState 写回点赞状态
func (c *Comment) SetReactionState(s reaction.State) {
	c.Likes = s.Likes
	c.Dislikes = s.Dislikes
	c.LikedBy = s.LikedBy
	c.DislikedBy = s.DislikedBy
}
