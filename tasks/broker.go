package tasks

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// scheduledSetKey is the sorted set holding pending auto-reply jobs,
// scored by the unix time at which they become due.
const scheduledSetKey = "autoreply:scheduled"

// AutoReplyJob carries everything the worker needs to produce one reply.
type AutoReplyJob struct {
	ID        string `json:"id"`
	PostID    uint   `json:"post_id"`
	CommentID uint   `json:"comment_id"`
}

// ReplyScheduler enqueues a deferred auto-reply. Satisfied by *Broker and
// stubbed in handler tests.
type ReplyScheduler interface {
	Schedule(ctx context.Context, postID, commentID uint, delay time.Duration) error
}

// Broker is a Redis-backed delayed task queue for auto-reply jobs.
type Broker struct {
	rdb *redis.Client
}

// NewBroker creates a Broker on the given Redis client.
func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

// Schedule stores a job that becomes due after delay. The enqueuing request
// does not wait for or observe the job's outcome.
func (b *Broker) Schedule(ctx context.Context, postID, commentID uint, delay time.Duration) error {
	job := AutoReplyJob{
		ID:        uuid.NewString(),
		PostID:    postID,
		CommentID: commentID,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return b.rdb.ZAdd(ctx, scheduledSetKey, redis.Z{
		Score:  float64(time.Now().Add(delay).Unix()),
		Member: payload,
	}).Err()
}

// Due claims up to limit jobs whose ready time has passed. A job is owned by
// whichever poller removes its member first, so concurrent workers never run
// the same job twice.
func (b *Broker) Due(ctx context.Context, now time.Time, limit int64) ([]AutoReplyJob, error) {
	members, err := b.rdb.ZRangeByScore(ctx, scheduledSetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatScore(now),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]AutoReplyJob, 0, len(members))
	for _, member := range members {
		removed, err := b.rdb.ZRem(ctx, scheduledSetKey, member).Result()
		if err != nil {
			return jobs, err
		}
		if removed == 0 {
			continue // claimed by another worker
		}
		var job AutoReplyJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			continue // malformed member is dropped, not retried
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func formatScore(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
