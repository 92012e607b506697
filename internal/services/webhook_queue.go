package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ticket-portal/internal/status"

	"github.com/redis/go-redis/v9"
)

const WebhookQueueKey = "webhook:dispatch"

// WebhookQueue hands a sale to the background delivery workers.
type WebhookQueue interface {
	Enqueue(ctx context.Context, saleID string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, saleID string) (*DeliveryOutcome, error)
}

func deliver(ctx context.Context, d Dispatcher, saleID string) {
	outcome, err := d.Dispatch(ctx, saleID)
	if err != nil {
		if IsDeliveryError(err) {
			slog.Warn("webhook not delivered", "sale_id", saleID, "error", err)
		} else {
			slog.Error("d.Dispatch()", "sale_id", saleID, "error", err)
		}
		return
	}
	slog.Info("webhook dispatched",
		"sale_id", saleID,
		"status", outcome.Status,
		"attempts", outcome.Attempts,
		"status_code", outcome.ResponseStatus,
	)
}

// ChannelQueue runs deliveries on in-process goroutines. Jobs still buffered
// when the process exits are lost; the webhook log shows which sales never
// got an entry.
type ChannelQueue struct {
	dispatcher Dispatcher
	jobs       chan string
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewChannelQueue(dispatcher Dispatcher, workers, buffer int) *ChannelQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < workers {
		buffer = workers
	}

	q := &ChannelQueue{
		dispatcher: dispatcher,
		jobs:       make(chan string, buffer),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

func (q *ChannelQueue) work() {
	defer q.wg.Done()
	for saleID := range q.jobs {
		deliver(context.Background(), q.dispatcher, saleID)
	}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, saleID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return status.ErrQueueClosed
	}

	select {
	case q.jobs <- saleID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return status.ErrQueueFull
	}
}

// Close stops accepting jobs and waits for the workers to drain the buffer.
func (q *ChannelQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

// RedisQueue keeps pending deliveries in a redis list so they survive a
// restart. Producers LPUSH, workers BRPOP.
type RedisQueue struct {
	redis       *redis.Client
	dispatcher  Dispatcher
	key         string
	pollTimeout time.Duration
}

func NewRedisQueue(redisClient *redis.Client, dispatcher Dispatcher) *RedisQueue {
	return &RedisQueue{
		redis:       redisClient,
		dispatcher:  dispatcher,
		key:         WebhookQueueKey,
		pollTimeout: 5 * time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, saleID string) error {
	return q.redis.LPush(ctx, q.key, saleID).Err()
}

// Run starts workers that consume the list until ctx is cancelled.
func (q *RedisQueue) Run(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go q.consume(ctx)
	}
}

func (q *RedisQueue) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		saleID, err := q.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("q.next()", "key", q.key, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if saleID == "" {
			continue
		}

		deliver(context.WithoutCancel(ctx), q.dispatcher, saleID)
	}
}

// next blocks up to pollTimeout for a job. An empty id means the poll timed
// out.
func (q *RedisQueue) next(ctx context.Context) (string, error) {
	res, err := q.redis.BRPop(ctx, q.pollTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.key).Result()
}
