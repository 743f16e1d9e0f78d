package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/response"
)

type attendanceLedger interface {
	MarkAttendance(ctx context.Context, req service.MarkAttendanceRequest) (*models.AttendanceRecord, error)
	GetAttendanceForCourse(ctx context.Context, courseID string) ([]models.AttendanceRecord, error)
	GetStudentAttendance(ctx context.Context, studentID, courseID string) ([]models.AttendanceRecord, error)
}

type attendanceStatistics interface {
	StudentSummary(ctx context.Context, studentID, courseID string) (*models.AttendanceSummary, error)
	CourseSummary(ctx context.Context, courseID string) (*models.CourseAttendanceSummary, error)
}

type attendanceExporter interface {
	ExportCourse(ctx context.Context, courseID string, format service.ExportFormat) (*service.ExportFile, error)
}

type markAttendancePayload struct {
	StudentID string                  `json:"studentId" binding:"required"`
	Status    models.AttendanceStatus `json:"status" binding:"required"`
	Date      *time.Time              `json:"date"`
}

// AttendanceHandler exposes the attendance ledger and its statistics.
type AttendanceHandler struct {
	ledger   attendanceLedger
	stats    attendanceStatistics
	exporter attendanceExporter
	identity identityAccessor
}

// NewAttendanceHandler constructs AttendanceHandler. exporter may be nil when exports are disabled.
func NewAttendanceHandler(ledger attendanceLedger, stats attendanceStatistics, exporter attendanceExporter, identity identityAccessor) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, stats: stats, exporter: exporter, identity: identity}
}

// Mark godoc
// @Summary Mark attendance for a student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body markAttendancePayload true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var payload markAttendancePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badPayload(c, err)
		return
	}
	record, err := h.ledger.MarkAttendance(c.Request.Context(), service.MarkAttendanceRequest{
		CourseID:  c.Param("id"),
		StudentID: payload.StudentID,
		Status:    payload.Status,
		Date:      payload.Date,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, record)
}

// ListCourse godoc
// @Summary List a course's attendance, newest first
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance [get]
func (h *AttendanceHandler) ListCourse(c *gin.Context) {
	records, err := h.ledger.GetAttendanceForCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.List(c, records, len(records))
}

// Mine godoc
// @Summary List the caller's attendance in a course
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance/me [get]
func (h *AttendanceHandler) Mine(c *gin.Context) {
	studentID, err := h.identity.Require(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.ledger.GetStudentAttendance(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.List(c, records, len(records))
}

// MySummary godoc
// @Summary Summarise the caller's attendance in a course
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance/me/summary [get]
func (h *AttendanceHandler) MySummary(c *gin.Context) {
	studentID, err := h.identity.Require(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.stats.StudentSummary(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, summary)
}

// CourseSummary godoc
// @Summary Summarise attendance for a course
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance/summary [get]
func (h *AttendanceHandler) CourseSummary(c *gin.Context) {
	summary, err := h.stats.CourseSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.OK(c, summary)
}

// Export godoc
// @Summary Download a course attendance sheet
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /courses/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ExportCourse(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
