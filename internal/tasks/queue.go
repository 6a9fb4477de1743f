package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pkruczek/spizarka-backend/pkg/logger"
	"github.com/pkruczek/spizarka-backend/pkg/redis"
)

// queueName scopes the receipt queue keys within the redis namespace.
const queueName = "receipts"

// Task is the queue payload: which receipt to process and which attempt
// this is.
type Task struct {
	ReceiptID uuid.UUID `json:"receipt_id"`
	Attempt   int       `json:"attempt"`
}

// store is the redis surface the queue needs.
type store interface {
	LPush(ctx context.Context, key string, values ...any) error
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error)
	ZAdd(ctx context.Context, key string, score float64, member any) error
	ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error)
	ZRem(ctx context.Context, key string, members ...any) error
}

// Queue is a redis-backed work queue with delayed delivery. Immediate work
// sits in a list; delayed retries sit in a sorted set scored by their due
// time and get promoted onto the list when due.
type Queue struct {
	store      store
	queueKey   string
	delayedKey string
	logg       *logger.Logger
	now        func() time.Time
}

// NewQueue builds the receipt processing queue on top of the redis client.
func NewQueue(s store, logg *logger.Logger) (*Queue, error) {
	if s == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &Queue{
		store:      s,
		queueKey:   redis.QueueKey(queueName),
		delayedKey: redis.DelayedKey(queueName),
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Enqueue pushes a task for immediate processing.
func (q *Queue) Enqueue(ctx context.Context, receiptID uuid.UUID, attempt int) error {
	payload, err := encodeTask(Task{ReceiptID: receiptID, Attempt: attempt})
	if err != nil {
		return err
	}
	if err := q.store.LPush(ctx, q.queueKey, payload); err != nil {
		return fmt.Errorf("pushing task: %w", err)
	}
	return nil
}

// EnqueueDelayed schedules a task to become available after the delay.
func (q *Queue) EnqueueDelayed(ctx context.Context, receiptID uuid.UUID, attempt int, delay time.Duration) error {
	payload, err := encodeTask(Task{ReceiptID: receiptID, Attempt: attempt})
	if err != nil {
		return err
	}
	due := q.now().Add(delay)
	if err := q.store.ZAdd(ctx, q.delayedKey, float64(due.Unix()), payload); err != nil {
		return fmt.Errorf("scheduling delayed task: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next task. A nil task with nil error
// means the timeout elapsed with nothing to do.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	values, err := q.store.BRPop(ctx, timeout, q.queueKey)
	if redis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("popping task: %w", err)
	}
	// BRPop returns [key, value].
	if len(values) < 2 {
		return nil, fmt.Errorf("unexpected brpop reply of length %d", len(values))
	}

	task, err := decodeTask(values[1])
	if err != nil {
		// A corrupt payload is dropped rather than poisoning the queue.
		if q.logg != nil {
			q.logg.Warn(ctx, fmt.Sprintf("dropping malformed task payload: %v", err))
		}
		return nil, nil
	}
	return task, nil
}

// PromoteDue moves tasks whose due time has passed from the delayed set onto
// the queue. Returns how many tasks were promoted.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	max := strconv.FormatInt(q.now().Unix(), 10)
	members, err := q.store.ZRangeByScore(ctx, q.delayedKey, "-inf", max)
	if err != nil {
		return 0, fmt.Errorf("listing due tasks: %w", err)
	}

	promoted := 0
	for _, member := range members {
		if err := q.store.ZRem(ctx, q.delayedKey, member); err != nil {
			return promoted, fmt.Errorf("removing due task: %w", err)
		}
		if err := q.store.LPush(ctx, q.queueKey, member); err != nil {
			return promoted, fmt.Errorf("promoting due task: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

func encodeTask(task Task) (string, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("encoding task: %w", err)
	}
	return string(data), nil
}

func decodeTask(payload string) (*Task, error) {
	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return nil, fmt.Errorf("decoding task: %w", err)
	}
	if task.ReceiptID == uuid.Nil {
		return nil, fmt.Errorf("task missing receipt id")
	}
	return &task, nil
}
