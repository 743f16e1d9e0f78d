package models

// Course is a catalogue entry. EnrolledStudents is semantically a set of user IDs.
type Course struct {
	ID               string   `json:"id" bson:"_id"`
	Name             string   `json:"name" bson:"name"`
	Code             string   `json:"code" bson:"code"`
	InstructorID     string   `json:"instructorId" bson:"instructorId"`
	Schedule         string   `json:"schedule" bson:"schedule"`
	EnrolledStudents []string `json:"enrolledStudents" bson:"enrolledStudents"`
}

// HasStudent reports whether the student is listed on the course side of the edge.
func (c *Course) HasStudent(studentID string) bool {
	for _, id := range c.EnrolledStudents {
		if id == studentID {
			return true
		}
	}
	return false
}

// EnrollmentDrift lists enrollment edges whose two sides disagree for one course.
// The course roster is authoritative.
//
// MissingOnUser holds rostered students whose course list lacks the course.
// StaleOnUser holds audited students who still list the course but are not on
// the roster. UnknownUsers holds rostered IDs with no user document.
type EnrollmentDrift struct {
	CourseID      string   `json:"courseId"`
	MissingOnUser []string `json:"missingOnUser"`
	StaleOnUser   []string `json:"staleOnUser"`
	UnknownUsers  []string `json:"unknownUsers"`
}

// Consistent is true when no drift was found.
func (d *EnrollmentDrift) Consistent() bool {
	return len(d.MissingOnUser) == 0 && len(d.StaleOnUser) == 0 && len(d.UnknownUsers) == 0
}
