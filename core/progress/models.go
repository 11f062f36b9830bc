package progress

import "encoding/json"

type (
	// CourseCompletionFact is owned by the learning-progress collaborator and never mutated here.
	CourseCompletionFact struct {
		UserID    string
		CourseID  string
		Completed bool
	}

	WritingCompletionFact struct {
		UserID    string
		CourseID  string
		Submitted bool
	}

	// CategorySnapshot is derived on demand and never persisted.
	CategorySnapshot struct {
		Category          string `json:"category"`
		TotalCourses      int    `json:"total_courses"`
		CompletedCourses  int    `json:"completed_courses"`
		CompletedWritings int    `json:"completed_writings"`
	}

	// Progress is a snapshot along with the course ids it was computed against.
	Progress struct {
		Snapshot  CategorySnapshot
		CourseIDs []string // sorted, unique
	}
)

func (s CategorySnapshot) IsAllCompleted() bool {
	return s.TotalCourses > 0 &&
		s.CompletedCourses == s.TotalCourses &&
		s.CompletedWritings == s.TotalCourses
}

func (s CategorySnapshot) MarshalJSON() ([]byte, error) {
	type snapshot CategorySnapshot
	return json.Marshal(struct {
		snapshot
		IsAllCompleted bool `json:"is_all_completed"`
	}{
		snapshot:       snapshot(s),
		IsAllCompleted: s.IsAllCompleted(),
	})
}
