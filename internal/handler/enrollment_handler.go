package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/pkg/broker"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, courseID, studentID string) error
	Unenroll(ctx context.Context, courseID, studentID string) error
	Audit(ctx context.Context, courseID string, studentIDs ...string) (*models.EnrollmentDrift, error)
	Repair(ctx context.Context, courseID string, studentIDs ...string) (*models.EnrollmentDrift, error)
}

type identityAccessor interface {
	Require(ctx context.Context) (string, error)
}

type repairPublisher interface {
	Publish(ctx context.Context, job broker.RepairJob) error
}

type repairRecorder interface {
	ObserveRepairJob(result string)
}

// RepairJobHeader carries the ID of a repair job scheduled after a half-applied change.
const RepairJobHeader = "X-Repair-Job-ID"

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollment enrollmentService
	identity   identityAccessor
	repairs    repairPublisher
	recorder   repairRecorder
	logger     *zap.Logger
}

// NewEnrollmentHandler constructs EnrollmentHandler. repairs and recorder may be nil.
func NewEnrollmentHandler(enrollment enrollmentService, identity identityAccessor, repairs repairPublisher, recorder repairRecorder, logger *zap.Logger) *EnrollmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentHandler{enrollment: enrollment, identity: identity, repairs: repairs, recorder: recorder, logger: logger}
}

// EnrollSelf godoc
// @Summary Enroll the caller in a course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id}/enrollment [post]
func (h *EnrollmentHandler) EnrollSelf(c *gin.Context) {
	studentID, err := h.identity.Require(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.apply(c, service.EnrollmentOpEnroll, c.Param("id"), studentID)
}

// UnenrollSelf godoc
// @Summary Remove the caller from a course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id}/enrollment [delete]
func (h *EnrollmentHandler) UnenrollSelf(c *gin.Context) {
	studentID, err := h.identity.Require(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.apply(c, service.EnrollmentOpUnenroll, c.Param("id"), studentID)
}

// EnrollStudent godoc
// @Summary Enroll a student in a course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /courses/{id}/students/{studentId} [post]
func (h *EnrollmentHandler) EnrollStudent(c *gin.Context) {
	h.apply(c, service.EnrollmentOpEnroll, c.Param("id"), c.Param("studentId"))
}

// UnenrollStudent godoc
// @Summary Remove a student from a course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /courses/{id}/students/{studentId} [delete]
func (h *EnrollmentHandler) UnenrollStudent(c *gin.Context) {
	h.apply(c, service.EnrollmentOpUnenroll, c.Param("id"), c.Param("studentId"))
}

// Audit godoc
// @Summary Report enrollment drift for a course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId query []string false "Students to check for a stale course reference"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollment/audit [get]
func (h *EnrollmentHandler) Audit(c *gin.Context) {
	drift, err := h.enrollment.Audit(c.Request.Context(), c.Param("id"), c.QueryArray("studentId")...)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, drift)
}

// Repair godoc
// @Summary Repair enrollment drift for a course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId query []string false "Students to check for a stale course reference"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollment/repair [post]
func (h *EnrollmentHandler) Repair(c *gin.Context) {
	drift, err := h.enrollment.Repair(c.Request.Context(), c.Param("id"), c.QueryArray("studentId")...)
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, drift)
}

func (h *EnrollmentHandler) apply(c *gin.Context, op, courseID, studentID string) {
	ctx := c.Request.Context()
	var err error
	if op == service.EnrollmentOpEnroll {
		err = h.enrollment.Enroll(ctx, courseID, studentID)
	} else {
		err = h.enrollment.Unenroll(ctx, courseID, studentID)
	}
	if err != nil {
		// Only a change that reached the roster needs reconciling.
		if service.IsHalfApplied(err) {
			h.scheduleRepair(c, courseID, studentID)
		}
		respondError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *EnrollmentHandler) scheduleRepair(c *gin.Context, courseID, studentID string) {
	if h.repairs == nil {
		return
	}
	job := broker.NewRepairJob(service.EnrollmentOpRepair, courseID, studentID)
	if err := h.repairs.Publish(c.Request.Context(), job); err != nil {
		h.logger.Error("failed to schedule enrollment repair", zap.String("course_id", courseID), zap.String("student_id", studentID), zap.Error(err))
		return
	}
	if h.recorder != nil {
		h.recorder.ObserveRepairJob("published")
	}
	c.Header(RepairJobHeader, job.ID)
}
