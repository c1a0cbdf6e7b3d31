package ccx

// ActiveCohortKey is the session key holding the id of the cohort a learner is
// currently viewing.
const ActiveCohortKey = "ccx_id"

// Cohort is a custom course (CCX): a group of learners sharing one set of
// field overrides on top of a base course. Membership and activation are
// owned by the membership store.
type Cohort struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// IsZero reports whether c carries no identity.
func (c Cohort) IsZero() bool {
	return c.ID == ""
}
