package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTimeout = errors.New("queue timeout")

// Job é uma tentativa de recuperação vencida, enfileirada pelo scheduler e
// consumida pelos workers.
type Job struct {
	ID            string    `json:"id"`
	AttemptID     string    `json:"attempt_id"`
	CartID        string    `json:"cart_id"`
	TenantID      string    `json:"tenant_id"`
	AttemptNumber int       `json:"attempt_number"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	CreatedAt     time.Time `json:"created_at"`
}

type RedisQueue struct {
	client    *redis.Client
	queueName string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueName: "recovery_attempts",
	}
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	// Ordena pelo horário agendado, os mais atrasados saem primeiro
	score := float64(job.ScheduledFor.Unix())
	if score == 0 {
		score = float64(time.Now().Unix())
	}

	err = q.client.ZAdd(ctx, q.queueName, redis.Z{
		Score:  score,
		Member: data,
	}).Err()

	if err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}

	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BZPopMin(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}

	member, ok := result.Member.(string)
	if !ok {
		return nil, errors.New("invalid result from queue")
	}

	var job Job
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueName).Result()
}
