package models

// UserRole distinguishes students from instructors.
type UserRole string

const (
	RoleStudent    UserRole = "STUDENT"
	RoleInstructor UserRole = "INSTRUCTOR"
)

// Valid returns true when the role is supported.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleInstructor
}

// User is a profile document. Courses holds course IDs the user teaches or attends.
type User struct {
	ID      string   `json:"id" bson:"_id"`
	Email   string   `json:"email" bson:"email"`
	Name    string   `json:"name" bson:"name"`
	Role    UserRole `json:"role" bson:"role"`
	Courses []string `json:"courses" bson:"courses"`
}

// HasCourse reports whether the course is listed on the user side of the edge.
func (u *User) HasCourse(courseID string) bool {
	for _, id := range u.Courses {
		if id == courseID {
			return true
		}
	}
	return false
}
