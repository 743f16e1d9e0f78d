package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type enrollmentFixture struct {
	store   *faultyStore
	courses *repository.CourseRepository
	users   *repository.UserRepository
	svc     *EnrollmentService
	metrics *MetricsService
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()
	store := newFaultyStore()
	f := &enrollmentFixture{
		store:   store,
		courses: repository.NewCourseRepository(store),
		users:   repository.NewUserRepository(store),
		metrics: NewMetricsService(),
	}
	f.svc = NewEnrollmentService(f.courses, f.users, f.metrics, nil)

	ctx := context.Background()
	require.NoError(t, f.courses.Create(ctx, &models.Course{ID: "c1", Name: "Databases", Code: "CS301", InstructorID: "i1"}))
	require.NoError(t, f.users.Create(ctx, &models.User{ID: "s1", Email: "s1@campus.test", Role: models.RoleStudent}))
	store.writes = 0
	return f
}

func (f *enrollmentFixture) sides(t *testing.T, courseID, studentID string) (bool, bool) {
	t.Helper()
	course, err := f.courses.FindByID(context.Background(), courseID)
	require.NoError(t, err)
	user, err := f.users.FindByID(context.Background(), studentID)
	require.NoError(t, err)
	return course.HasStudent(studentID), user.HasCourse(courseID)
}

func TestEnrollUnenrollRoundTrip(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Enroll(ctx, "c1", "s1"))
	onCourse, onUser := f.sides(t, "c1", "s1")
	assert.True(t, onCourse)
	assert.True(t, onUser)

	require.NoError(t, f.svc.Unenroll(ctx, "c1", "s1"))
	onCourse, onUser = f.sides(t, "c1", "s1")
	assert.False(t, onCourse)
	assert.False(t, onUser)

	course, err := f.courses.FindByID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, course.EnrolledStudents)
}

func TestEnrollTwiceKeepsSetsUnique(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Enroll(ctx, "c1", "s1"))
	require.NoError(t, f.svc.Enroll(ctx, "c1", "s1"))

	course, err := f.courses.FindByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, course.EnrolledStudents)
	user, err := f.users.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, user.Courses)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.enrollmentOps.WithLabelValues(EnrollmentOpEnroll, "ok")))
}

func TestEnrollMissingCourseWritesNothing(t *testing.T) {
	f := newEnrollmentFixture(t)

	err := f.svc.Enroll(context.Background(), "ghost", "s1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Zero(t, f.store.fieldWrites)
	assert.Zero(t, f.store.writes)

	err = f.svc.Unenroll(context.Background(), "ghost", "s1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Zero(t, f.store.fieldWrites)
}

func TestEnrollPartialFailureConvergesOnRetry(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	cause := errors.New("deadline exceeded")
	f.store.failUpdates(repository.CollectionUsers, cause)

	err := f.svc.Enroll(ctx, "c1", "s1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPersistence))
	assert.True(t, IsHalfApplied(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.enrollmentOps.WithLabelValues(EnrollmentOpEnroll, "error")))

	onCourse, onUser := f.sides(t, "c1", "s1")
	assert.True(t, onCourse, "course side is not rolled back")
	assert.False(t, onUser)

	f.store.failUpdates(repository.CollectionUsers, nil)
	require.NoError(t, f.svc.Enroll(ctx, "c1", "s1"))
	onCourse, onUser = f.sides(t, "c1", "s1")
	assert.True(t, onCourse)
	assert.True(t, onUser)
}

func TestEnrollCourseSideFailureStopsBeforeUser(t *testing.T) {
	f := newEnrollmentFixture(t)
	cause := errors.New("unavailable")
	f.store.failUpdates(repository.CollectionCourses, cause)

	err := f.svc.Enroll(context.Background(), "c1", "s1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPersistence))
	assert.False(t, IsHalfApplied(err), "nothing was written")
	assert.ErrorIs(t, err, cause)
	_, onUser := f.sides(t, "c1", "s1")
	assert.False(t, onUser)
}

func TestEnrollWithoutProfileIsPersistenceFailure(t *testing.T) {
	f := newEnrollmentFixture(t)

	err := f.svc.Enroll(context.Background(), "c1", "nobody")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPersistence))
}

func TestAuditAndRepair(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	require.NoError(t, f.courses.AddStudent(ctx, "c1", "s1"))
	require.NoError(t, f.courses.AddStudent(ctx, "c1", "ghost"))

	drift, err := f.svc.Audit(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, drift.MissingOnUser)
	assert.Equal(t, []string{"ghost"}, drift.UnknownUsers)
	assert.False(t, drift.Consistent())

	repaired, err := f.svc.Repair(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, repaired.MissingOnUser)

	drift, err = f.svc.Audit(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, drift.MissingOnUser)
	assert.Equal(t, []string{"ghost"}, drift.UnknownUsers)

	_, err = f.svc.Audit(ctx, "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestUnenrollPartialFailureIsAuditedAndRepaired(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Enroll(ctx, "c1", "s1"))

	cause := errors.New("deadline exceeded")
	f.store.failUpdates(repository.CollectionUsers, cause)
	err := f.svc.Unenroll(ctx, "c1", "s1")
	require.Error(t, err)
	assert.True(t, IsHalfApplied(err))
	assert.ErrorIs(t, err, cause)
	f.store.failUpdates(repository.CollectionUsers, nil)

	onCourse, onUser := f.sides(t, "c1", "s1")
	assert.False(t, onCourse)
	assert.True(t, onUser)

	drift, err := f.svc.Audit(ctx, "c1", "s1")
	require.NoError(t, err)
	assert.Empty(t, drift.MissingOnUser)
	assert.Equal(t, []string{"s1"}, drift.StaleOnUser)
	assert.False(t, drift.Consistent())

	repaired, err := f.svc.Repair(ctx, "c1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, repaired.StaleOnUser)

	onCourse, onUser = f.sides(t, "c1", "s1")
	assert.False(t, onCourse)
	assert.False(t, onUser)

	drift, err = f.svc.Audit(ctx, "c1", "s1")
	require.NoError(t, err)
	assert.True(t, drift.Consistent())
}

func TestAuditSkipsInstructorAndUnknownStudents(t *testing.T) {
	f := newEnrollmentFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Create(ctx, &models.User{ID: "i1", Email: "i1@campus.test", Role: models.RoleInstructor, Courses: []string{"c1"}}))

	drift, err := f.svc.Audit(ctx, "c1", "i1", "ghost", "s1", "s1", "")
	require.NoError(t, err)
	assert.Empty(t, drift.StaleOnUser)
	assert.Empty(t, drift.UnknownUsers)
	assert.True(t, drift.Consistent())
}
