// Package reaction implements like/dislike toggling for a single comment.
//
// A voter is in at most one of the two sets. Repeating an action removes
// the vote, switching actions moves the voter between sets.
package reaction

import (
	"errors"
	"strings"
)

type Action string

const (
	Like    Action = "like"
	Dislike Action = "dislike"
)

var (
	ErrInvalidAction = errors.New("action must be like or dislike")
	ErrEmptyVoter    = errors.New("voter is required")
)

// ParseAction 解析前端传入的动作
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	default:
		return "", ErrInvalidAction
	}
}

// State 一条评论的点赞状态
type State struct {
	Likes      int
	Dislikes   int
	LikedBy    []string
	DislikedBy []string
}

// Result 切换后的状态以及调用者自身的投票情况
type Result struct {
	State       State
	HasLiked    bool
	HasDisliked bool
}

// Apply 对 voter 执行 action，返回新状态，不修改入参
func Apply(s State, action Action, voter string) (Result, error) {
	if action != Like && action != Dislike {
		return Result{}, ErrInvalidAction
	}
	if strings.TrimSpace(voter) == "" {
		return Result{}, ErrEmptyVoter
	}

	next := State{
		Likes:      s.Likes,
		Dislikes:   s.Dislikes,
		LikedBy:    clone(s.LikedBy),
		DislikedBy: clone(s.DislikedBy),
	}

	same, sameCount := &next.LikedBy, &next.Likes
	opposite, oppositeCount := &next.DislikedBy, &next.Dislikes
	if action == Dislike {
		same, sameCount, opposite, oppositeCount = opposite, oppositeCount, same, sameCount
	}

	if Contains(*same, voter) {
		// 重复操作即取消
		*same = remove(*same, voter)
		*sameCount = decrement(*sameCount)
	} else {
		if Contains(*opposite, voter) {
			*opposite = remove(*opposite, voter)
			*oppositeCount = decrement(*oppositeCount)
		}
		*same = append(*same, voter)
		*sameCount = max(*sameCount, 0) + 1
	}

	return Result{
		State:       next,
		HasLiked:    Contains(next.LikedBy, voter),
		HasDisliked: Contains(next.DislikedBy, voter),
	}, nil
}

// Normalize 修复计数与集合不一致、集合重复或交叉的情况。
// 同时出现在两个集合中的投票者保留点赞。返回是否有改动。
func Normalize(s State) (State, bool) {
	liked := dedupe(s.LikedBy)
	seen := make(map[string]struct{}, len(liked))
	for _, v := range liked {
		seen[v] = struct{}{}
	}

	disliked := make([]string, 0, len(s.DislikedBy))
	for _, v := range dedupe(s.DislikedBy) {
		if _, ok := seen[v]; ok {
			continue
		}
		disliked = append(disliked, v)
	}

	next := State{
		Likes:      len(liked),
		Dislikes:   len(disliked),
		LikedBy:    liked,
		DislikedBy: disliked,
	}
	changed := next.Likes != s.Likes ||
		next.Dislikes != s.Dislikes ||
		len(liked) != len(s.LikedBy) ||
		len(disliked) != len(s.DislikedBy)
	return next, changed
}

// Contains 判断投票者是否在集合中
func Contains(set []string, voter string) bool {
	for _, v := range set {
		if v == voter {
			return true
		}
	}
	return false
}

func remove(set []string, voter string) []string {
	out := set[:0]
	for _, v := range set {
		if v != voter {
			out = append(out, v)
		}
	}
	return out
}

func decrement(n int) int {
	if n <= 1 {
		return 0
	}
	return n - 1
}

func clone(set []string) []string {
	out := make([]string, len(set), len(set)+1)
	copy(out, set)
	return out
}

func dedupe(set []string) []string {
	out := make([]string, 0, len(set))
	seen := make(map[string]struct{}, len(set))
	for _, v := range set {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
