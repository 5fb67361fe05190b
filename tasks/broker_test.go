package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		client.Close()
	})
	return NewBroker(client)
}

func TestScheduleAndDue(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Schedule(ctx, 7, 42, 30*time.Second))

	// not ready before the delay has passed
	jobs, err := broker.Due(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Empty(t, jobs)

	// everything the handler stored comes back out
	jobs, err = broker.Due(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, uint(7), jobs[0].PostID)
	require.Equal(t, uint(42), jobs[0].CommentID)
	require.NotEmpty(t, jobs[0].ID)
}

func TestDueClaimsJobsOnce(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Schedule(ctx, 1, 2, 0))
	require.NoError(t, broker.Schedule(ctx, 1, 3, 0))

	deadline := time.Now().Add(time.Second)
	jobs, err := broker.Due(ctx, deadline, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	// claimed jobs are gone from the set and never redelivered
	jobs, err = broker.Due(ctx, deadline, 10)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestDueDropsMalformedMembers(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.rdb.ZAdd(ctx, scheduledSetKey, redis.Z{
		Score:  1,
		Member: "not a job",
	}).Err())
	require.NoError(t, broker.Schedule(ctx, 5, 6, 0))

	jobs, err := broker.Due(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, uint(5), jobs[0].PostID)

	// the malformed member was removed, not retried
	count, err := broker.rdb.ZCard(ctx, scheduledSetKey).Result()
	require.NoError(t, err)
	require.Zero(t, count)
}
