package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/didmybit/didmybit_server/internal/model"
)

const (
	threadKeyPrefix = "comments:thread:"
	genKeySuffix    = ":gen"
)

// setIfCurrent 只有代数未变时才回填，避免覆盖并发写入后的失效
var setIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// ThreadCache 缓存组装好的评论树（不含任何按访问者计算的字段）
type ThreadCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewThreadCache(client *redis.Client, ttl time.Duration) *ThreadCache {
	return &ThreadCache{client: client, ttl: ttl}
}

func threadKey(postID string) string {
	return threadKeyPrefix + postID
}

func genKey(postID string) string {
	return threadKeyPrefix + postID + genKeySuffix
}

// Get 未命中时返回 ok=false 且 err 为空
func (c *ThreadCache) Get(ctx context.Context, postID string) ([]*model.Comment, bool, error) {
	data, err := c.client.Get(ctx, threadKey(postID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get thread cache: %w", err)
	}

	var roots []*model.Comment
	if err := json.Unmarshal(data, &roots); err != nil {
		// 格式损坏当作未命中，顺手删掉
		_ = c.client.Del(ctx, threadKey(postID)).Err()
		return nil, false, nil
	}
	if roots == nil {
		roots = []*model.Comment{}
	}
	return roots, true, nil
}

// Generation 返回帖子评论树的当前代数，每次失效加一；读库前取一次，回填时带上
func (c *ThreadCache) Generation(ctx context.Context, postID string) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(postID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get thread generation: %w", err)
	}
	return gen, nil
}

// Set 写入评论树；期间发生过失效则放弃写入，返回 stored=false
func (c *ThreadCache) Set(ctx context.Context, postID string, gen int64, roots []*model.Comment) (bool, error) {
	data, err := json.Marshal(roots)
	if err != nil {
		return false, fmt.Errorf("marshal thread: %w", err)
	}

	stored, err := setIfCurrent.Run(ctx, c.client,
		[]string{genKey(postID), threadKey(postID)},
		strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("set thread cache: %w", err)
	}
	return stored == 1, nil
}

// Invalidate 评论或点赞变化后删除缓存并推进代数
func (c *ThreadCache) Invalidate(ctx context.Context, postID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(postID))
		pipe.Del(ctx, threadKey(postID))
		return nil
	})
	return err
}
