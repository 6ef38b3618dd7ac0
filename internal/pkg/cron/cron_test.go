package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/didmybit/didmybit_server/internal/model"
	"github.com/didmybit/didmybit_server/internal/pkg/cache"
	"github.com/didmybit/didmybit_server/internal/pkg/queue"
	"github.com/didmybit/didmybit_server/internal/repository"
	"github.com/didmybit/didmybit_server/internal/testutil"
)

func setupCronService(t *testing.T, batchSize int) (*Service, *gorm.DB, *repository.CommentRepository) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	repo := repository.NewCommentRepository(db)
	return NewService(repo, batchSize, 0, nil), db, repo
}

func TestNewService(t *testing.T) {
	svc := NewService(nil, 0, time.Minute, nil)

	assert.NotNil(t, svc)
	assert.Equal(t, 200, svc.batchSize)
	assert.NotNil(t, svc.logger)
	assert.NotNil(t, svc.stopChan)
}

func TestService_StartAndStop(t *testing.T) {
	svc, _, _ := setupCronService(t, 10)
	svc.interval = 5 * time.Millisecond

	svc.Start()
	time.Sleep(20 * time.Millisecond)

	assert.NotPanics(t, svc.Stop)
}

func TestService_StopBeforeStart(t *testing.T) {
	svc, _, _ := setupCronService(t, 10)

	assert.NotPanics(t, svc.Stop)
	assert.NotPanics(t, svc.Stop)
}

func TestService_RunNow_NoComments(t *testing.T) {
	svc, _, _ := setupCronService(t, 10)

	stats, err := svc.RunNow(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestService_RunNow_RepairsCounts(t *testing.T) {
	svc, db, repo := setupCronService(t, 10)
	ctx := context.Background()

	healthy := testutil.TestComment(t, db, "p1", "fine",
		testutil.WithVoters([]string{"alice"}, []string{"bob"}))
	drifted := testutil.TestComment(t, db, "p1", "drifted",
		testutil.WithVoters([]string{"alice", "carol"}, nil),
		testutil.WithCounts(7, -1))

	stats, err := svc.RunNow(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.Repaired)
	assert.Equal(t, 0, stats.Conflicts)

	got, err := repo.GetByID(ctx, drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Likes)
	assert.Equal(t, 0, got.Dislikes)
	assert.Equal(t, drifted.Version+1, got.Version)

	untouched, err := repo.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, healthy.Version, untouched.Version)
}

func TestService_RunNow_OverlapKeepsLike(t *testing.T) {
	svc, db, repo := setupCronService(t, 10)
	ctx := context.Background()

	c := testutil.TestComment(t, db, "p1", "overlap",
		testutil.WithVoters([]string{"alice", "alice"}, []string{"alice", "bob"}))

	_, err := svc.RunNow(ctx, false)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, got.LikedBy)
	assert.Equal(t, []string{"bob"}, got.DislikedBy)
	assert.Equal(t, 1, got.Likes)
	assert.Equal(t, 1, got.Dislikes)
}

func TestService_RunNow_DryRun(t *testing.T) {
	svc, db, repo := setupCronService(t, 10)
	ctx := context.Background()

	c := testutil.TestComment(t, db, "p1", "drifted",
		testutil.WithVoters([]string{"alice"}, nil),
		testutil.WithCounts(5, 0))

	stats, err := svc.RunNow(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repaired)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Likes, "dry run must not write")
}

func TestService_RunNow_Batches(t *testing.T) {
	svc, db, repo := setupCronService(t, 2)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		c := testutil.TestComment(t, db, "p1", "drifted",
			testutil.WithVoters([]string{"alice"}, nil),
			testutil.WithCounts(0, 3))
		ids = append(ids, c.ID)
	}

	stats, err := svc.RunNow(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Scanned)
	assert.Equal(t, 5, stats.Repaired)

	for _, id := range ids {
		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Likes)
		assert.Equal(t, 0, got.Dislikes)
	}
}

// conflictStore 每次写回都返回版本冲突
type conflictStore struct {
	repository.CommentStore
}

func (conflictStore) SaveReactions(ctx context.Context, c *model.Comment, v int64) error {
	return repository.ErrVersionConflict
}

func TestService_RunNow_SkipsConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	testutil.TestComment(t, db, "p1", "drifted", testutil.WithCounts(4, 4))

	svc := NewService(conflictStore{repository.NewCommentRepository(db)}, 10, 0, nil)

	stats, err := svc.RunNow(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 0, stats.Repaired)
	assert.Equal(t, 1, stats.Conflicts)
}

func TestService_RunNow_Canceled(t *testing.T) {
	svc, db, _ := setupCronService(t, 10)
	testutil.TestComment(t, db, "p1", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunNow(ctx, false)
	assert.Error(t, err)
}

func TestService_RepairOne(t *testing.T) {
	svc, db, repo := setupCronService(t, 10)
	ctx := context.Background()

	drifted := testutil.TestComment(t, db, "p1", "drifted",
		testutil.WithVoters([]string{"alice"}, []string{"alice"}))
	healthy := testutil.TestComment(t, db, "p1", "healthy")

	repaired, err := svc.RepairOne(ctx, drifted.ID)
	require.NoError(t, err)
	assert.True(t, repaired)

	got, err := repo.GetByID(ctx, drifted.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, got.LikedBy)
	assert.Empty(t, got.DislikedBy)
	assert.Equal(t, 1, got.Likes)
	assert.Equal(t, 0, got.Dislikes)

	repaired, err = svc.RepairOne(ctx, healthy.ID)
	require.NoError(t, err)
	assert.False(t, repaired)

	_, err = svc.RepairOne(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrCommentNotFound)
}

func TestService_RepairQueueConsumer(t *testing.T) {
	svc, db, repo := setupCronService(t, 10)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repairs := queue.NewQueue(client, "")
	svc.WithRepairQueue(repairs)

	drifted := testutil.TestComment(t, db, "p1", "drifted",
		testutil.WithVoters([]string{"alice", "bob"}, nil),
		testutil.WithCounts(9, 9))
	require.NoError(t, repairs.Push(ctx, &queue.RepairMessage{CommentID: drifted.ID, PostID: "p1", Reason: "test"}))

	svc.Start()
	defer svc.Stop()

	require.Eventually(t, func() bool {
		got, err := repo.GetByID(ctx, drifted.ID)
		return err == nil && got.Likes == 2 && got.Dislikes == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestService_RepairInvalidatesThreadCache(t *testing.T) {
	svc, db, _ := setupCronService(t, 10)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	threads := cache.NewThreadCache(client, time.Minute)
	svc.WithThreadCache(threads)

	drifted := testutil.TestComment(t, db, "p1", "drifted",
		testutil.WithVoters([]string{"alice"}, nil),
		testutil.WithCounts(7, 0))
	testutil.TestComment(t, db, "p2", "healthy")

	for _, postID := range []string{"p1", "p2"} {
		stored, err := threads.Set(ctx, postID, 0, []*model.Comment{})
		require.NoError(t, err)
		require.True(t, stored)
	}

	// dry run 不写库也不动缓存
	_, err := svc.RunNow(ctx, true)
	require.NoError(t, err)
	assert.True(t, mr.Exists("comments:thread:p1"))

	repaired, err := svc.RepairOne(ctx, drifted.ID)
	require.NoError(t, err)
	assert.True(t, repaired)

	assert.False(t, mr.Exists("comments:thread:p1"))
	assert.True(t, mr.Exists("comments:thread:p2"), "untouched posts keep their cache")
}
