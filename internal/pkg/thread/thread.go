// Package thread turns the flat comment list of a post into a reply tree.
package thread

import (
	"sort"

	"github.com/didmybit/didmybit_server/internal/model"
)

// DefaultMaxDepth 未指定深度时的上限
const DefaultMaxDepth = 32

// Assemble 将同一帖子下的扁平评论组装成树。
//
// 返回的一级评论按创建时间倒序，回复按创建时间正序。
// 父评论不存在的回复及其子树会被丢弃；超过 maxDepth 的回复不再展开。
// 入参不会被修改，返回的是浅拷贝。
func Assemble(comments []*model.Comment, maxDepth int) []*model.Comment {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	ordered := make([]*model.Comment, 0, len(comments))
	seen := make(map[string]struct{}, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		cp := *c
		cp.Replies = nil
		ordered = append(ordered, &cp)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return olderFirst(ordered[i], ordered[j])
	})

	var roots []*model.Comment
	children := make(map[string][]*model.Comment)
	for _, c := range ordered {
		if c.IsRoot() {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}

	placed := make(map[string]struct{}, len(ordered))
	var attach func(c *model.Comment, depth int)
	attach = func(c *model.Comment, depth int) {
		placed[c.ID] = struct{}{}
		if depth >= maxDepth {
			return
		}
		for _, child := range children[c.ID] {
			if _, ok := placed[child.ID]; ok {
				continue
			}
			c.Replies = append(c.Replies, child)
			attach(child, depth+1)
		}
	}

	for _, r := range roots {
		attach(r, 1)
	}

	// 最新的一级评论在前
	for i, j := 0, len(roots)-1; i < j; i, j = i+1, j-1 {
		roots[i], roots[j] = roots[j], roots[i]
	}
	if roots == nil {
		roots = []*model.Comment{}
	}
	return roots
}

// Count 统计树中的评论总数
func Count(roots []*model.Comment) int {
	n := 0
	for _, c := range roots {
		n += 1 + Count(c.Replies)
	}
	return n
}

func olderFirst(a, b *model.Comment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
