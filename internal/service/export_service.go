package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/export"
)

// ExportFormat selects the rendered sheet type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type courseRosterReader interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListEnrolledStudents(ctx context.Context, courseID string) ([]models.User, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered attendance sheet.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a course ledger as a downloadable sheet.
type ExportService struct {
	ledger   attendanceReader
	courses  courseRosterReader
	csv      csvRenderer
	pdf      pdfRenderer
	location *time.Location
	logger   *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(ledger attendanceReader, courses courseRosterReader, loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{ledger: ledger, courses: courses, csv: csv, pdf: pdf, location: loc, logger: logger}
}

// ParseExportFormat accepts csv or pdf, case-insensitively. Empty means csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// ExportCourse renders the course ledger, newest first, with a summary footer.
func (s *ExportService) ExportCourse(ctx context.Context, courseID string, format ExportFormat) (*ExportFile, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	records, err := s.ledger.GetAttendanceForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	students, err := s.courses.ListEnrolledStudents(ctx, courseID)
	if err != nil {
		return nil, err
	}

	dataset := s.buildDataset(course, records, students)
	file := &ExportFile{Filename: fmt.Sprintf("attendance-%s.%s", sanitizeFilename(course.Code), format)}
	switch format {
	case ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(dataset)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance sheet")
	}

	s.logger.Info("attendance sheet exported",
		zap.String("course_id", courseID),
		zap.String("format", string(format)),
		zap.Int("rows", len(records)),
	)
	return file, nil
}

func (s *ExportService) buildDataset(course *models.Course, records []models.AttendanceRecord, students []models.User) export.Dataset {
	names := make(map[string]string, len(students))
	for _, student := range students {
		names[student.ID] = student.Name
	}

	dataset := export.Dataset{
		Title:   strings.TrimSpace(fmt.Sprintf("%s %s", course.Code, course.Name)),
		Headers: []string{"Date", "Student ID", "Student", "Status"},
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, record := range records {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":       record.Date.In(s.location).Format("2006-01-02"),
			"Student ID": record.StudentID,
			"Student":    names[record.StudentID],
			"Status":     string(record.Status),
		})
	}

	summary := Summarize(records)
	dataset.Footer = []string{
		fmt.Sprintf("Present: %d  Late: %d  Absent: %d  Total: %d", summary.Present, summary.Late, summary.Absent, summary.Total),
		fmt.Sprintf("Present percentage: %.2f%%", summary.PresentPercentage),
	}
	return dataset
}

func sanitizeFilename(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "course"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, value)
}
