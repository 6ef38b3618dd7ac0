package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/didmybit/didmybit_server/internal/model"
	"github.com/didmybit/didmybit_server/internal/pkg/queue"
	"github.com/didmybit/didmybit_server/internal/pkg/reaction"
	"github.com/didmybit/didmybit_server/internal/repository"
)

// Stats 一次对账的统计
type Stats struct {
	Scanned   int `json:"scanned"`
	Repaired  int `json:"repaired"`
	Conflicts int `json:"conflicts"`
}

// RepairSource 待修复评论的来源，由读路径发现不一致时写入
type RepairSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.RepairMessage, error)
}

// ThreadInvalidator 修复后让帖子的评论树缓存失效
type ThreadInvalidator interface {
	Invalidate(ctx context.Context, postID string) error
}

// Service 定期校正点赞计数与投票集合
type Service struct {
	store     repository.CommentStore
	repairs   RepairSource
	threads   ThreadInvalidator
	batchSize int
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewService(
	store repository.CommentStore,
	batchSize int,
	interval time.Duration,
	logger *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// WithRepairQueue 额外消费修复队列中的单条评论
func (s *Service) WithRepairQueue(repairs RepairSource) *Service {
	s.repairs = repairs
	return s
}

// WithThreadCache 修复写回后删除对应帖子的缓存
func (s *Service) WithThreadCache(threads ThreadInvalidator) *Service {
	s.threads = threads
	return s
}

// Start 启动定时任务，interval 不大于 0 时不做全量扫描
func (s *Service) Start() {
	if s.interval > 0 {
		s.wg.Add(1)
		go s.runReconcile()
		s.logger.Info("reconcile cron started", zap.Duration("interval", s.interval))
	} else {
		s.logger.Info("periodic reconcile disabled")
	}

	if s.repairs != nil {
		s.wg.Add(1)
		go s.runRepairs()
		s.logger.Info("repair queue consumer started")
	}
}

// Stop 停止定时任务
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.logger.Info("reconcile cron stopped")
}

func (s *Service) runReconcile() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := s.stopContext()
			if _, err := s.RunNow(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("reconcile failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// runRepairs 持续消费修复队列
func (s *Service) runRepairs() {
	defer s.wg.Done()

	ctx, cancel := s.stopContext()
	defer cancel()

	for {
		msg, err := s.repairs.Pop(ctx, time.Second)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("pop repair queue failed", zap.Error(err))
			select {
			case <-s.stopChan:
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}

		if _, err := s.RepairOne(ctx, msg.CommentID); err != nil && !errors.Is(err, repository.ErrCommentNotFound) {
			s.logger.Warn("repair comment failed",
				zap.String("comment_id", msg.CommentID),
				zap.String("reason", msg.Reason),
				zap.Error(err),
			)
		}
	}
}

// stopContext 返回在 Stop 时取消的 context
func (s *Service) stopContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RepairOne 校正单条评论，返回是否写回
func (s *Service) RepairOne(ctx context.Context, commentID string) (bool, error) {
	c, err := s.store.GetByID(ctx, commentID)
	if err != nil {
		return false, err
	}

	repaired, err := s.repair(ctx, c, false)
	if errors.Is(err, repository.ErrVersionConflict) {
		// 已被并发修改，交给下一轮全量扫描
		return false, nil
	}
	return repaired, err
}

// repair 校正计数与集合，一致时不写
func (s *Service) repair(ctx context.Context, c *model.Comment, dryRun bool) (bool, error) {
	fixed, changed := reaction.Normalize(c.ReactionState())
	if !changed {
		return false, nil
	}

	s.logger.Warn("reaction state inconsistent",
		zap.String("comment_id", c.ID),
		zap.String("post_id", c.PostID),
		zap.Int("likes", c.Likes),
		zap.Int("likes_fixed", fixed.Likes),
		zap.Int("dislikes", c.Dislikes),
		zap.Int("dislikes_fixed", fixed.Dislikes),
		zap.Bool("dry_run", dryRun),
	)

	if dryRun {
		return true, nil
	}

	c.SetReactionState(fixed)
	if err := s.store.SaveReactions(ctx, c, c.Version); err != nil {
		return false, err
	}

	if s.threads != nil {
		if err := s.threads.Invalidate(ctx, c.PostID); err != nil {
			s.logger.Warn("thread cache invalidate failed", zap.String("post_id", c.PostID), zap.Error(err))
		}
	}
	return true, nil
}

// RunNow 立即执行一次全量对账；dryRun 时只统计不写回
func (s *Service) RunNow(ctx context.Context, dryRun bool) (Stats, error) {
	var stats Stats
	afterID := ""

	for {
		batch, err := s.store.ListAfter(ctx, afterID, s.batchSize)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}

		for _, c := range batch {
			stats.Scanned++

			repaired, err := s.repair(ctx, c, dryRun)
			switch {
			case err == nil:
				if repaired {
					stats.Repaired++
				}
			case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, repository.ErrCommentNotFound):
				// 并发修改过的评论留到下一轮
				stats.Conflicts++
			default:
				return stats, err
			}
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < s.batchSize {
			break
		}
	}

	s.logger.Info("reconcile completed",
		zap.Int("scanned", stats.Scanned),
		zap.Int("repaired", stats.Repaired),
		zap.Int("conflicts", stats.Conflicts),
		zap.Bool("dry_run", dryRun),
	)
	return stats, nil
}
