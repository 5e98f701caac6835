package learning

// UserPersonalData carries the PII subset of a user.
type UserPersonalData struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// UserData identifies the user a filter is acting on.
type UserData struct {
	ID       int              `json:"id"`
	IsActive bool             `json:"is_active"`
	PII      UserPersonalData `json:"pii"`
}

// CourseEnrollmentData describes an existing enrollment.
type CourseEnrollmentData struct {
	User      UserData `json:"user"`
	CourseKey string   `json:"course_key"`
	Mode      string   `json:"mode"`
	IsActive  bool     `json:"is_active"`
}
