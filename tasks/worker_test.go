package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/models"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerator) GenerateReply(_ context.Context, postContent, commentContent string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func seedThread(t *testing.T, db *gorm.DB) (models.User, models.Post, models.Comment) {
	t.Helper()

	author := models.User{Username: "author", Email: "author@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&author).Error)
	commenter := models.User{Username: "commenter", Email: "commenter@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&commenter).Error)

	post := models.Post{UserID: author.ID, Title: "A post", Content: "post body", AutoReplyEnabled: true, ReplyDelay: 1}
	require.NoError(t, db.Create(&post).Error)
	comment := models.Comment{PostID: post.ID, UserID: commenter.ID, Content: "what a post"}
	require.NoError(t, db.Create(&comment).Error)

	return author, post, comment
}

func TestProcessCreatesReply(t *testing.T) {
	db := newWorkerTestDB(t)
	author, post, comment := seedThread(t, db)

	gen := &stubGenerator{reply: "glad you liked it"}
	worker := NewWorker(db, nil, gen, 0, zap.NewNop().Sugar())

	worker.Process(context.Background(), AutoReplyJob{ID: "job-1", PostID: post.ID, CommentID: comment.ID})

	var replies []models.Comment
	require.NoError(t, db.Where("parent_id = ?", comment.ID).Find(&replies).Error)
	require.Len(t, replies, 1)

	// the reply belongs to the post's author, not the commenter
	require.Equal(t, author.ID, replies[0].UserID)
	require.Equal(t, post.ID, replies[0].PostID)
	require.Equal(t, "glad you liked it", replies[0].Content)
	require.False(t, replies[0].IsBlocked)
}

func TestProcessMissingPostIsTerminal(t *testing.T) {
	db := newWorkerTestDB(t)
	_, _, comment := seedThread(t, db)

	gen := &stubGenerator{reply: "never used"}
	worker := NewWorker(db, nil, gen, 0, zap.NewNop().Sugar())

	worker.Process(context.Background(), AutoReplyJob{ID: "job-2", PostID: 9999, CommentID: comment.ID})

	require.Zero(t, gen.calls)
	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProcessMissingCommentIsTerminal(t *testing.T) {
	db := newWorkerTestDB(t)
	_, post, _ := seedThread(t, db)

	gen := &stubGenerator{reply: "never used"}
	worker := NewWorker(db, nil, gen, 0, zap.NewNop().Sugar())

	worker.Process(context.Background(), AutoReplyJob{ID: "job-3", PostID: post.ID, CommentID: 9999})

	require.Zero(t, gen.calls)
}

// pollOnceSource serves its jobs and error on the first poll, nothing after.
type pollOnceSource struct {
	mu      sync.Mutex
	jobs    []AutoReplyJob
	err     error
	polls   int
	onFirst func()
}

func (s *pollOnceSource) Due(_ context.Context, _ time.Time, _ int64) ([]AutoReplyJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.polls > 1 {
		return nil, nil
	}
	if s.onFirst != nil {
		s.onFirst()
	}
	return s.jobs, s.err
}

func TestRunDispatchesJobsFromFailedPoll(t *testing.T) {
	db := newWorkerTestDB(t)
	_, post, comment := seedThread(t, db)

	// a claimed job arriving alongside a poll error is gone from Redis
	// already, so it must still be executed
	source := &pollOnceSource{
		jobs: []AutoReplyJob{{ID: "job-5", PostID: post.ID, CommentID: comment.ID}},
		err:  errors.New("zrem: connection reset"),
	}
	gen := &stubGenerator{reply: "still delivered"}
	worker := NewWorker(db, source, gen, time.Millisecond, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&models.Comment{}).Where("parent_id = ?", comment.ID).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// contextProbeGenerator reports the liveness of the context each job runs on.
type contextProbeGenerator struct {
	errs chan error
}

func (g *contextProbeGenerator) GenerateReply(ctx context.Context, _, _ string) (string, error) {
	g.errs <- ctx.Err()
	return "finished after shutdown", nil
}

func TestRunJobsSurviveShutdown(t *testing.T) {
	db := newWorkerTestDB(t)
	_, post, comment := seedThread(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the worker context is cancelled while the poll is still in flight;
	// the job dispatched from that poll must keep a live context
	source := &pollOnceSource{
		jobs:    []AutoReplyJob{{ID: "job-6", PostID: post.ID, CommentID: comment.ID}},
		onFirst: cancel,
	}
	gen := &contextProbeGenerator{errs: make(chan error, 1)}
	worker := NewWorker(db, source, gen, time.Millisecond, zap.NewNop().Sugar())

	go worker.Run(ctx)

	select {
	case err := <-gen.errs:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never dispatched")
	}

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&models.Comment{}).Where("parent_id = ?", comment.ID).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcessGenerationFailureIsTerminal(t *testing.T) {
	db := newWorkerTestDB(t)
	_, post, comment := seedThread(t, db)

	gen := &stubGenerator{err: errors.New("model unavailable")}
	worker := NewWorker(db, nil, gen, 0, zap.NewNop().Sugar())

	worker.Process(context.Background(), AutoReplyJob{ID: "job-4", PostID: post.ID, CommentID: comment.ID})

	require.Equal(t, 1, gen.calls)
	var replies []models.Comment
	require.NoError(t, db.Where("parent_id = ?", comment.ID).Find(&replies).Error)
	require.Empty(t, replies)
}
