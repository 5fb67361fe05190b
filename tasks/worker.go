package tasks

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aiblog/aiblog/ai"
	"github.com/aiblog/aiblog/models"
)

// JobSource yields auto-reply jobs whose ready time has passed. Satisfied
// by *Broker.
type JobSource interface {
	Due(ctx context.Context, now time.Time, limit int64) ([]AutoReplyJob, error)
}

// Worker drains due auto-reply jobs and writes the generated replies. Each
// claimed job runs in its own goroutine over the shared connection pool.
type Worker struct {
	db       *gorm.DB
	source   JobSource
	gen      ai.ReplyGenerator
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewWorker creates a Worker polling the job source at the given interval.
func NewWorker(db *gorm.DB, source JobSource, gen ai.ReplyGenerator, interval time.Duration, log *zap.SugaredLogger) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{db: db, source: source, gen: gen, interval: interval, log: log}
}

// Run polls until ctx is cancelled. A poll error never discards claimed
// jobs: whatever Due returned is dispatched before the failure is logged,
// since a claimed job no longer exists in Redis and would otherwise be lost.
// Dispatched jobs run on a detached context so jobs in flight when the
// context ends are allowed to finish; unclaimed jobs stay in Redis for the
// next run.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobs, err := w.source.Due(ctx, time.Now(), 10)
			if err != nil {
				w.log.Warnf("auto-reply poll failed: %v", err)
			}
			for _, job := range jobs {
				go w.Process(context.WithoutCancel(ctx), job)
			}
		}
	}
}

// Process executes one auto-reply job. Every failure here is terminal: a
// missing post or comment and a generation error are logged and the job is
// dropped, never rescheduled.
func (w *Worker) Process(ctx context.Context, job AutoReplyJob) {
	var post models.Post
	if err := w.db.First(&post, job.PostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			w.log.Warnf("auto-reply %s dropped: post %d not found", job.ID, job.PostID)
		} else {
			w.log.Errorf("auto-reply %s failed loading post %d: %v", job.ID, job.PostID, err)
		}
		return
	}

	var comment models.Comment
	if err := w.db.First(&comment, job.CommentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			w.log.Warnf("auto-reply %s dropped: comment %d not found", job.ID, job.CommentID)
		} else {
			w.log.Errorf("auto-reply %s failed loading comment %d: %v", job.ID, job.CommentID, err)
		}
		return
	}

	replyContent, err := w.gen.GenerateReply(ctx, post.Content, comment.Content)
	if err != nil {
		w.log.Errorf("auto-reply %s generation failed: %v", job.ID, err)
		return
	}

	// The generated reply is authored by the post's author and is not run
	// back through the moderation gate.
	reply := models.Comment{
		PostID:   post.ID,
		ParentID: &comment.ID,
		UserID:   post.UserID,
		Content:  replyContent,
	}
	if err := w.db.Create(&reply).Error; err != nil {
		w.log.Errorf("auto-reply %s failed to persist: %v", job.ID, err)
		return
	}

	w.log.Infof("auto-reply %s created comment %d on post %d", job.ID, reply.ID, post.ID)
}
