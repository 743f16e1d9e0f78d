package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	"github.com/noah-isme/campus-attendance-api/internal/models"
)

// CollectionAttendance holds one document per attendance record.
const CollectionAttendance = "attendance"

// AttendanceRepository persists ledger entries in the document store.
type AttendanceRepository struct {
	store docstore.Store
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(store docstore.Store) *AttendanceRepository {
	return &AttendanceRepository{store: store}
}

// ListByCourse returns every record of the course in store order.
func (r *AttendanceRepository) ListByCourse(ctx context.Context, courseID string) ([]models.AttendanceRecord, error) {
	return r.query(ctx, docstore.Eq("courseId", courseID))
}

// ListByCourseAndStudent returns every record of one student in one course.
func (r *AttendanceRepository) ListByCourseAndStudent(ctx context.Context, courseID, studentID string) ([]models.AttendanceRecord, error) {
	return r.query(ctx, docstore.Eq("courseId", courseID), docstore.Eq("studentId", studentID))
}

// Save overwrites the record keyed by its ID.
func (r *AttendanceRepository) Save(ctx context.Context, record *models.AttendanceRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("attendance record requires an id")
	}
	return r.store.Write(ctx, CollectionAttendance, record.ID, record)
}

func (r *AttendanceRepository) query(ctx context.Context, filters ...docstore.Filter) ([]models.AttendanceRecord, error) {
	docs, err := r.store.Query(ctx, CollectionAttendance, filters...)
	if err != nil {
		return nil, err
	}
	records := make([]models.AttendanceRecord, 0, len(docs))
	for _, doc := range docs {
		var record models.AttendanceRecord
		if err := doc.Decode(&record); err != nil {
			return nil, err
		}
		if record.ID == "" {
			record.ID = doc.ID
		}
		records = append(records, record)
	}
	return records, nil
}
