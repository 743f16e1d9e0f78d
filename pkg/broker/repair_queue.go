package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepairJob asks the worker to re-run an enrollment operation until both sides agree.
type RepairJob struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	CourseID    string    `json:"courseId"`
	StudentID   string    `json:"studentId,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewRepairJob stamps a job with an ID and the current time.
func NewRepairJob(operation, courseID, studentID string) RepairJob {
	return RepairJob{
		ID:          uuid.NewString(),
		Operation:   operation,
		CourseID:    courseID,
		StudentID:   studentID,
		RequestedAt: time.Now().UTC(),
	}
}

// EncodeRepairJob serialises a job for the list.
func EncodeRepairJob(job RepairJob) (string, error) {
	if job.Operation == "" || job.CourseID == "" {
		return "", fmt.Errorf("repair job requires operation and course id")
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeRepairJob parses a list entry.
func DecodeRepairJob(raw string) (RepairJob, error) {
	var job RepairJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return RepairJob{}, fmt.Errorf("decode repair job: %w", err)
	}
	if job.Operation == "" || job.CourseID == "" {
		return RepairJob{}, fmt.Errorf("repair job %q is incomplete", job.ID)
	}
	return job, nil
}

// RepairQueue is a Redis list used with LPUSH/BRPOP semantics.
type RepairQueue struct {
	client  *redis.Client
	key     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRepairQueue builds a queue on key.
func NewRepairQueue(client *redis.Client, key string, logger *zap.Logger) *RepairQueue {
	if key == "" {
		key = "attendance:enrollment-repair"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairQueue{client: client, key: key, timeout: 5 * time.Second, logger: logger}
}

// Publish enqueues a job.
func (q *RepairQueue) Publish(ctx context.Context, job RepairJob) error {
	payload, err := EncodeRepairJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("publish repair job: %w", err)
	}
	return nil
}

// Consume streams jobs until ctx is cancelled. Malformed entries are logged and dropped.
func (q *RepairQueue) Consume(ctx context.Context) <-chan RepairJob {
	out := make(chan RepairJob)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, q.timeout, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					q.logger.Warn("repair queue pop failed", zap.Error(err))
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			job, err := DecodeRepairJob(res[1])
			if err != nil {
				q.logger.Warn("dropping malformed repair job", zap.Error(err))
				continue
			}
			select {
			case out <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
