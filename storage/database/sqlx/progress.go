package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/storage/database"
)

// progressSource reads the tables of the learning-progress collaborator.
type progressSource struct {
	db *sqlx.DB
}

var _ progress.Source = (*progressSource)(nil) // interface compliance check

func NewProgressSource(db *sqlx.DB) progress.Source {
	return &progressSource{db: db}
}

func (src *progressSource) ListCoursesInCategory(ctx context.Context, category string) ([]string, error) {
	exec := database.Executor(ctx, src.db)

	var known bool
	if err := sqlx.GetContext(ctx, exec, &known, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, category); err != nil {
		return nil, database.TranslateError(err, "checking category")
	}
	if !known {
		return nil, progress.ErrUnknownCategory
	}

	ids := make([]string, 0)
	if err := sqlx.SelectContext(ctx, exec, &ids, `SELECT id FROM courses WHERE category_id = $1 ORDER BY id`, category); err != nil {
		return nil, database.TranslateError(err, "listing courses")
	}
	return ids, nil
}

func (src *progressSource) CourseCompletionFacts(ctx context.Context, userID, category string) ([]progress.CourseCompletionFact, error) {
	var rows []struct {
		UserID    string `db:"user_id"`
		CourseID  string `db:"course_id"`
		Completed bool   `db:"completed"`
	}
	q := `SELECT cp.user_id, cp.course_id, cp.completed
	FROM course_progress cp
	JOIN courses c ON c.id = cp.course_id
	WHERE cp.user_id = $1 AND c.category_id = $2`
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, src.db), &rows, q, userID, category); err != nil {
		return nil, database.TranslateError(err, "reading course progress")
	}

	facts := make([]progress.CourseCompletionFact, 0, len(rows))
	for _, r := range rows {
		facts = append(facts, progress.CourseCompletionFact{UserID: r.UserID, CourseID: r.CourseID, Completed: r.Completed})
	}
	return facts, nil
}

func (src *progressSource) WritingCompletionFacts(ctx context.Context, userID, category string) ([]progress.WritingCompletionFact, error) {
	var rows []struct {
		UserID    string `db:"user_id"`
		CourseID  string `db:"course_id"`
		Submitted bool   `db:"submitted"`
	}
	q := `SELECT ws.user_id, ws.course_id, ws.submitted
	FROM writing_submissions ws
	JOIN courses c ON c.id = ws.course_id
	WHERE ws.user_id = $1 AND c.category_id = $2`
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, src.db), &rows, q, userID, category); err != nil {
		return nil, database.TranslateError(err, "reading writing submissions")
	}

	facts := make([]progress.WritingCompletionFact, 0, len(rows))
	for _, r := range rows {
		facts = append(facts, progress.WritingCompletionFact{UserID: r.UserID, CourseID: r.CourseID, Submitted: r.Submitted})
	}
	return facts, nil
}
