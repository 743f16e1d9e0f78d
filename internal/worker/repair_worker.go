// Package worker drains enrollment repair jobs published by the API.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/broker"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/jobs"
	"github.com/noah-isme/campus-attendance-api/pkg/middleware/requestid"
)

type enrollmentRepairer interface {
	Repair(ctx context.Context, courseID string, studentIDs ...string) (*models.EnrollmentDrift, error)
}

type repairRecorder interface {
	ObserveRepairJob(result string)
}

type jobSink interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// RepairWorker reconciles enrollment edges left out of step by a failed request.
// Jobs never replay the original enroll or unenroll: the course roster at the
// time the job runs decides which way the user side is corrected.
type RepairWorker struct {
	enrollment enrollmentRepairer
	recorder   repairRecorder
	logger     *zap.Logger
}

// NewRepairWorker constructs RepairWorker. recorder may be nil.
func NewRepairWorker(enrollment enrollmentRepairer, recorder repairRecorder, logger *zap.Logger) *RepairWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairWorker{enrollment: enrollment, recorder: recorder, logger: logger}
}

// ToJob converts a broker job into a pool job.
func ToJob(job broker.RepairJob) (jobs.Job, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return jobs.Job{}, err
	}
	return jobs.Job{ID: job.ID, Type: job.Operation, Payload: payload, Enqueued: job.RequestedAt}, nil
}

// Handle runs one job. It satisfies jobs.Handler; a returned error triggers the pool's retry.
func (w *RepairWorker) Handle(ctx context.Context, job jobs.Job) error {
	ctx = requestid.WithValue(ctx, job.ID)

	var repair broker.RepairJob
	if err := json.Unmarshal(job.Payload, &repair); err != nil {
		// Malformed payloads are not retried.
		w.logger.Error("dropping malformed repair job", zap.String("job_id", job.ID), zap.Error(err))
		w.record("failed")
		return nil
	}

	switch repair.Operation {
	case service.EnrollmentOpEnroll, service.EnrollmentOpUnenroll, service.EnrollmentOpRepair:
	default:
		w.logger.Error("unknown repair operation", zap.String("job_id", job.ID), zap.String("operation", repair.Operation))
		w.record("failed")
		return nil
	}

	var students []string
	if repair.StudentID != "" {
		students = append(students, repair.StudentID)
	}
	drift, err := w.enrollment.Repair(ctx, repair.CourseID, students...)
	if err != nil {
		if !appErrors.HasCode(err, appErrors.ErrPersistence) {
			w.logger.Warn("dropping repair job",
				zap.String("job_id", job.ID),
				zap.String("course_id", repair.CourseID),
				zap.Error(err),
			)
			w.record("failed")
			return nil
		}
		w.record("retried")
		return fmt.Errorf("repair course %s student %s: %w", repair.CourseID, repair.StudentID, err)
	}

	w.logger.Info("enrollment reconciled",
		zap.String("job_id", job.ID),
		zap.String("operation", repair.Operation),
		zap.String("course_id", repair.CourseID),
		zap.String("student_id", repair.StudentID),
		zap.Bool("drifted", !drift.Consistent()),
		zap.Int("attempt", job.Attempt),
	)
	w.record("succeeded")
	return nil
}

// DeadLetter records a job that exhausted its retries. It satisfies jobs.DeadLetterFunc.
func (w *RepairWorker) DeadLetter(job jobs.Job, err error) {
	w.logger.Error("enrollment repair abandoned", zap.String("job_id", job.ID), zap.String("operation", job.Type), zap.Error(err))
	w.record("failed")
}

// Pump forwards consumed broker jobs into the pool until the source closes or ctx ends.
func (w *RepairWorker) Pump(ctx context.Context, source <-chan broker.RepairJob, sink jobSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case repair, ok := <-source:
			if !ok {
				return nil
			}
			job, err := ToJob(repair)
			if err != nil {
				w.logger.Error("failed to encode repair job", zap.String("job_id", repair.ID), zap.Error(err))
				continue
			}
			if err := sink.Enqueue(ctx, job); err != nil {
				return err
			}
		}
	}
}

func (w *RepairWorker) record(result string) {
	if w.recorder != nil {
		w.recorder.ObserveRepairJob(result)
	}
}
