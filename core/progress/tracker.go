package progress

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrUnknownCategory = errors.New("category not found")
)

type (
	// Source reads completion facts from the learning-progress store.
	// ListCoursesInCategory returns ErrUnknownCategory when the category does not exist.
	Source interface {
		ListCoursesInCategory(ctx context.Context, category string) ([]string, error)
		CourseCompletionFacts(ctx context.Context, userID, category string) ([]CourseCompletionFact, error)
		WritingCompletionFacts(ctx context.Context, userID, category string) ([]WritingCompletionFact, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Tracker struct {
		src   Source
		users UserFinder
	}
)

func NewTracker(src Source, users UserFinder) *Tracker {
	return &Tracker{src: src, users: users}
}

// Snapshot computes the CategorySnapshot of userID in category.
func (t *Tracker) Snapshot(ctx context.Context, userID, category string) (CategorySnapshot, error) {
	p, err := t.Progress(ctx, userID, category)
	if err != nil {
		return CategorySnapshot{}, err
	}
	return p.Snapshot, nil
}

// CourseIDs returns the current course ids of category, sorted.
func (t *Tracker) CourseIDs(ctx context.Context, category string) ([]string, error) {
	ids, err := t.src.ListCoursesInCategory(ctx, category)
	if err != nil {
		return nil, sourceError(err, "listing courses in category")
	}
	return uniqueSorted(ids), nil
}

// Progress computes the snapshot and returns it along with the course ids it counted.
// Only facts of userID about courses currently in category are counted, each course once.
func (t *Tracker) Progress(ctx context.Context, userID, category string) (Progress, error) {
	if _, err := t.users.GetByID(ctx, userID); err != nil {
		return Progress{}, sourceError(err, "finding user")
	}

	courseIDs, err := t.CourseIDs(ctx, category)
	if err != nil {
		return Progress{}, err
	}
	snap := CategorySnapshot{Category: category, TotalCourses: len(courseIDs)}
	if snap.TotalCourses == 0 {
		return Progress{Snapshot: snap, CourseIDs: courseIDs}, nil
	}

	inCategory := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		inCategory[id] = struct{}{}
	}

	courseFacts, err := t.src.CourseCompletionFacts(ctx, userID, category)
	if err != nil {
		return Progress{}, sourceError(err, "reading course completion facts")
	}
	completed := make(map[string]struct{}, len(courseFacts))
	for _, f := range courseFacts {
		if _, ok := inCategory[f.CourseID]; ok && f.Completed && f.UserID == userID {
			completed[f.CourseID] = struct{}{}
		}
	}

	writingFacts, err := t.src.WritingCompletionFacts(ctx, userID, category)
	if err != nil {
		return Progress{}, sourceError(err, "reading writing completion facts")
	}
	submitted := make(map[string]struct{}, len(writingFacts))
	for _, f := range writingFacts {
		if _, ok := inCategory[f.CourseID]; ok && f.Submitted && f.UserID == userID {
			submitted[f.CourseID] = struct{}{}
		}
	}

	snap.CompletedCourses = len(completed)
	snap.CompletedWritings = len(submitted)
	return Progress{Snapshot: snap, CourseIDs: courseIDs}, nil
}

// sourceError keeps domain errors as they are and reports anything else as unavailable data.
func sourceError(err error, msg string) error {
	switch errors.Cause(err) {
	case ErrUnknownCategory, user.ErrNotFound:
		return err
	}
	if core.IsDataUnavailable(err) {
		return errors.Wrap(err, msg)
	}
	return core.NewDataUnavailableError(errors.Wrap(err, msg))
}

func uniqueSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
