package certificate

import (
	"sort"
	"time"
)

// Certificate is the permanent record of a learner having completed every course of a category.
// There is at most one per (UserID, Category).
type Certificate struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Category           string     `json:"category"`
	IssuedAt           time.Time  `json:"issued_at"`  // UTC, immutable
	UpdatedAt          *time.Time `json:"updated_at"` // UTC, set by refreshes
	IsOutdated         bool       `json:"is_outdated"`
	CompletedCourseIDs []string   `json:"completed_course_ids"` // sorted, unique
}

// QueryFilter applies AND operation on its set fields.
type QueryFilter struct {
	UserID   string
	Category string
}

// MissingCourseIDs returns the ids of current that the certificate was not issued against.
func (c *Certificate) MissingCourseIDs(current []string) []string {
	completed := make(map[string]struct{}, len(c.CompletedCourseIDs))
	for _, id := range c.CompletedCourseIDs {
		completed[id] = struct{}{}
	}
	var missing []string
	for _, id := range current {
		if _, ok := completed[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// NormalizeCourseIDs sorts ids and drops duplicates.
func NormalizeCourseIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
