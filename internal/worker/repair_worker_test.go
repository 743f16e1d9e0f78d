package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/broker"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/jobs"
)

type enrollmentMock struct {
	mu        sync.Mutex
	calls     []string
	failUntil int
	err       error
}

func (m *enrollmentMock) Repair(_ context.Context, courseID string, studentIDs ...string) (*models.EnrollmentDrift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, courseID+":"+strings.Join(studentIDs, ","))
	if len(m.calls) <= m.failUntil {
		return nil, m.err
	}
	return &models.EnrollmentDrift{CourseID: courseID}, nil
}

func (m *enrollmentMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type recorderMock struct {
	mu      sync.Mutex
	results []string
}

func (r *recorderMock) ObserveRepairJob(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recorderMock) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.results...)
}

type sliceSink struct {
	jobs []jobs.Job
}

func (s *sliceSink) Enqueue(_ context.Context, job jobs.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func mustJob(t *testing.T, op, courseID, studentID string) jobs.Job {
	t.Helper()
	job, err := ToJob(broker.NewRepairJob(op, courseID, studentID))
	require.NoError(t, err)
	return job
}

func TestHandleReconcilesInsteadOfReplaying(t *testing.T) {
	enrollment := &enrollmentMock{}
	recorder := &recorderMock{}
	w := NewRepairWorker(enrollment, recorder, nil)

	require.NoError(t, w.Handle(context.Background(), mustJob(t, service.EnrollmentOpEnroll, "c1", "s1")))
	require.NoError(t, w.Handle(context.Background(), mustJob(t, service.EnrollmentOpUnenroll, "c1", "s2")))
	require.NoError(t, w.Handle(context.Background(), mustJob(t, service.EnrollmentOpRepair, "c2", "")))

	assert.Equal(t, []string{"c1:s1", "c1:s2", "c2:"}, enrollment.calls)
	assert.Equal(t, []string{"succeeded", "succeeded", "succeeded"}, recorder.snapshot())
}

func TestHandleReturnsPersistenceErrorForRetry(t *testing.T) {
	enrollment := &enrollmentMock{failUntil: 1, err: appErrors.Persistence(errors.New("store unavailable"), "failed to load course")}
	recorder := &recorderMock{}
	w := NewRepairWorker(enrollment, recorder, nil)

	err := w.Handle(context.Background(), mustJob(t, service.EnrollmentOpRepair, "c1", "s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Equal(t, []string{"retried"}, recorder.snapshot())
}

func TestHandleDropsPermanentErrors(t *testing.T) {
	cases := []error{
		appErrors.Clone(appErrors.ErrNotFound, "course not found"),
		appErrors.Clone(appErrors.ErrValidation, "course id is required"),
		errors.New("unexpected"),
	}
	for _, cause := range cases {
		enrollment := &enrollmentMock{failUntil: 1, err: cause}
		recorder := &recorderMock{}
		w := NewRepairWorker(enrollment, recorder, nil)

		assert.NoError(t, w.Handle(context.Background(), mustJob(t, service.EnrollmentOpRepair, "c1", "s1")), cause.Error())
		assert.Equal(t, 1, enrollment.callCount())
		assert.Equal(t, []string{"failed"}, recorder.snapshot())
	}
}

func TestStaleEnrollJobDoesNotUndoLaterUnenroll(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	courses := repository.NewCourseRepository(store)
	users := repository.NewUserRepository(store)
	require.NoError(t, courses.Create(ctx, &models.Course{ID: "c1", Name: "Databases", Code: "CS301", InstructorID: "i1"}))
	require.NoError(t, users.Create(ctx, &models.User{ID: "s1", Email: "s1@campus.test", Role: models.RoleStudent, Courses: []string{}}))
	enrollment := service.NewEnrollmentService(courses, users, service.NewMetricsService(), nil)

	// A repair job queued by an earlier enroll is still pending when the student leaves.
	job := mustJob(t, service.EnrollmentOpEnroll, "c1", "s1")
	require.NoError(t, enrollment.Enroll(ctx, "c1", "s1"))
	require.NoError(t, enrollment.Unenroll(ctx, "c1", "s1"))

	recorder := &recorderMock{}
	w := NewRepairWorker(enrollment, recorder, nil)
	require.NoError(t, w.Handle(ctx, job))

	course, err := courses.FindByID(ctx, "c1")
	require.NoError(t, err)
	user, err := users.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, course.HasStudent("s1"))
	assert.False(t, user.HasCourse("c1"))
	assert.Equal(t, []string{"succeeded"}, recorder.snapshot())
}

func TestRepairJobClearsHalfAppliedUnenroll(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	courses := repository.NewCourseRepository(store)
	users := repository.NewUserRepository(store)
	require.NoError(t, courses.Create(ctx, &models.Course{ID: "c1", Name: "Databases", Code: "CS301", InstructorID: "i1"}))
	// The roster no longer lists s1 but the user side still does.
	require.NoError(t, users.Create(ctx, &models.User{ID: "s1", Email: "s1@campus.test", Role: models.RoleStudent, Courses: []string{"c1"}}))
	enrollment := service.NewEnrollmentService(courses, users, service.NewMetricsService(), nil)

	w := NewRepairWorker(enrollment, nil, nil)
	require.NoError(t, w.Handle(ctx, mustJob(t, service.EnrollmentOpRepair, "c1", "s1")))

	user, err := users.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, user.HasCourse("c1"))
}

func TestHandleDropsUnusableJobs(t *testing.T) {
	enrollment := &enrollmentMock{}
	recorder := &recorderMock{}
	w := NewRepairWorker(enrollment, recorder, nil)

	assert.NoError(t, w.Handle(context.Background(), jobs.Job{ID: "bad", Payload: []byte("{")}))
	assert.NoError(t, w.Handle(context.Background(), mustJob(t, "transfer", "c1", "s1")))

	assert.Empty(t, enrollment.calls)
	assert.Equal(t, []string{"failed", "failed"}, recorder.snapshot())
}

func TestPumpForwardsUntilSourceCloses(t *testing.T) {
	w := NewRepairWorker(&enrollmentMock{}, nil, nil)
	source := make(chan broker.RepairJob, 2)
	first := broker.NewRepairJob(service.EnrollmentOpEnroll, "c1", "s1")
	source <- first
	source <- broker.NewRepairJob(service.EnrollmentOpRepair, "c1", "")
	close(source)

	sink := &sliceSink{}
	require.NoError(t, w.Pump(context.Background(), source, sink))
	require.Len(t, sink.jobs, 2)
	assert.Equal(t, first.ID, sink.jobs[0].ID)
	assert.Equal(t, service.EnrollmentOpEnroll, sink.jobs[0].Type)
}

func TestQueueConvergesAfterTransientFailure(t *testing.T) {
	enrollment := &enrollmentMock{failUntil: 1, err: appErrors.Persistence(errors.New("deadline exceeded"), "failed to load course")}
	recorder := &recorderMock{}
	w := NewRepairWorker(enrollment, recorder, nil)

	queue := jobs.NewQueue("enrollment-repair", w.Handle, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		OnDead:     w.DeadLetter,
	})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(context.Background(), mustJob(t, service.EnrollmentOpRepair, "c1", "s1")))

	require.Eventually(t, func() bool { return enrollment.callCount() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		results := recorder.snapshot()
		return len(results) == 2 && results[1] == "succeeded"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "retried", recorder.snapshot()[0])
}

func TestQueueDeadLettersExhaustedJobs(t *testing.T) {
	enrollment := &enrollmentMock{failUntil: 100, err: appErrors.Persistence(errors.New("connection refused"), "failed to load course")}
	recorder := &recorderMock{}
	w := NewRepairWorker(enrollment, recorder, nil)

	queue := jobs.NewQueue("enrollment-repair", w.Handle, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
		OnDead:     w.DeadLetter,
	})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(context.Background(), mustJob(t, service.EnrollmentOpRepair, "c1", "s1")))

	require.Eventually(t, func() bool {
		results := recorder.snapshot()
		return len(results) == 3 && results[2] == "failed"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, enrollment.callCount())
}
