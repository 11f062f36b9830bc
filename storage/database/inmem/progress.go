package inmemdb

import (
	"context"

	"github.com/trezcool/academia/core/progress"
)

// ProgressSource is the in-memory learning-progress store.
// The seeding methods stand in for the course and progress collaborators.
type ProgressSource struct {
	db *DB
}

var _ progress.Source = (*ProgressSource)(nil) // interface compliance check

func NewProgressSource(db *DB) *ProgressSource {
	checkDB(db)
	return &ProgressSource{db: db}
}

// AddCategory registers an empty category; it is a no-op when the category exists.
func (src *ProgressSource) AddCategory(category string) {
	src.db.Lock()
	defer src.db.Unlock()
	if _, ok := src.db.progress.categories[category]; !ok {
		src.db.progress.categories[category] = []string{}
	}
}

// AddCourse adds courseID to category, creating the category when needed.
func (src *ProgressSource) AddCourse(category, courseID string) {
	src.db.Lock()
	defer src.db.Unlock()
	for _, id := range src.db.progress.categories[category] {
		if id == courseID {
			return
		}
	}
	src.db.progress.categories[category] = append(src.db.progress.categories[category], courseID)
}

func (src *ProgressSource) SetCourseCompleted(userID, courseID string, completed bool) {
	src.db.Lock()
	defer src.db.Unlock()
	setFact(src.db.progress.completed, userID, courseID, completed)
}

func (src *ProgressSource) SetWritingSubmitted(userID, courseID string, submitted bool) {
	src.db.Lock()
	defer src.db.Unlock()
	setFact(src.db.progress.submitted, userID, courseID, submitted)
}

func setFact(facts map[string]map[string]bool, userID, courseID string, val bool) {
	byCourse, ok := facts[userID]
	if !ok {
		byCourse = make(map[string]bool)
		facts[userID] = byCourse
	}
	byCourse[courseID] = val
}

func (src *ProgressSource) ListCoursesInCategory(ctx context.Context, category string) ([]string, error) {
	defer src.db.read(ctx)()

	ids, ok := src.db.progress.categories[category]
	if !ok {
		return nil, progress.ErrUnknownCategory
	}
	return copyStrings(ids), nil
}

func (src *ProgressSource) CourseCompletionFacts(ctx context.Context, userID, category string) ([]progress.CourseCompletionFact, error) {
	defer src.db.read(ctx)()

	ids, ok := src.db.progress.categories[category]
	if !ok {
		return nil, progress.ErrUnknownCategory
	}
	facts := make([]progress.CourseCompletionFact, 0, len(ids))
	for _, id := range ids {
		if completed, ok := src.db.progress.completed[userID][id]; ok {
			facts = append(facts, progress.CourseCompletionFact{UserID: userID, CourseID: id, Completed: completed})
		}
	}
	return facts, nil
}

func (src *ProgressSource) WritingCompletionFacts(ctx context.Context, userID, category string) ([]progress.WritingCompletionFact, error) {
	defer src.db.read(ctx)()

	ids, ok := src.db.progress.categories[category]
	if !ok {
		return nil, progress.ErrUnknownCategory
	}
	facts := make([]progress.WritingCompletionFact, 0, len(ids))
	for _, id := range ids {
		if submitted, ok := src.db.progress.submitted[userID][id]; ok {
			facts = append(facts, progress.WritingCompletionFact{UserID: userID, CourseID: id, Submitted: submitted})
		}
	}
	return facts, nil
}
