package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *JobQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewJobQueue(NewRedisQueue(client))
}

func TestJobQueueDispatchAndReserve(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Dispatch(ctx, 42); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	id, err := q.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if id != 42 {
		t.Fatalf("got id %d, want 42", id)
	}
}

func TestJobQueueReserveEmptyReturnsNil(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Reserve(context.Background())
	if err != redis.Nil {
		t.Fatalf("got err %v, want redis.Nil", err)
	}
}

func TestJobQueueAckRemovesFromProcessing(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Dispatch(ctx, 7); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := q.Reserve(ctx); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := q.Ack(ctx, 7); err != nil {
		t.Fatalf("ack: %v", err)
	}

	requeued, err := q.RequeueExpired(ctx)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(requeued) != 0 {
		t.Fatalf("acked job should not be requeued, got %v", requeued)
	}
}

func TestJobQueueRequeueExpiredRecoversUnacked(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Dispatch(ctx, 99); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	raw, err := q.redis.Reserve(ctx, PendingQueueKey, ProcessingQueueKey, -1*time.Second)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if raw != "99" {
		t.Fatalf("got %q, want 99", raw)
	}

	requeued, err := q.RequeueExpired(ctx)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(requeued) != 1 || requeued[0] != 99 {
		t.Fatalf("got %v, want [99]", requeued)
	}

	id, err := q.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve after requeue: %v", err)
	}
	if id != 99 {
		t.Fatalf("got %d, want 99", id)
	}
}

func TestJobQueueExtendKeepsReservedJobFromExpiring(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Dispatch(ctx, 5); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := q.redis.Reserve(ctx, PendingQueueKey, ProcessingQueueKey, -1*time.Second); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	held, err := q.Extend(ctx, 5)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !held {
		t.Fatalf("expected job 5 still held after extend")
	}

	requeued, err := q.RequeueExpired(ctx)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(requeued) != 0 {
		t.Fatalf("extended job should not be requeued, got %v", requeued)
	}
}

func TestJobQueueExtendOnUnknownJobReturnsFalse(t *testing.T) {
	q := newTestQueue(t)
	held, err := q.Extend(context.Background(), 404)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if held {
		t.Fatalf("expected false for a job that was never reserved")
	}
}
