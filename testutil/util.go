package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// NewConfig returns the TEST configuration.
func NewConfig() *core.Config {
	if os.Getenv("ENV") == "" {
		_ = os.Setenv("ENV", "TEST")
	}
	conf := core.NewConfig()
	conf.TestMode = true
	return conf
}

// PrepareDB opens the TEST database, migrates it and empties it.
// Tests are skipped when no database is reachable.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := NewConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Skipf("no test database: %v", err)
	}

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	q := `TRUNCATE notifications, certificates, writing_submissions, course_progress, courses, categories, users CASCADE`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

// AddCourse seeds a course (and its category) the way the course collaborator would.
func AddCourse(t *testing.T, db *sqlx.DB, category, courseID string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO categories (id) VALUES ($1) ON CONFLICT DO NOTHING`, category); err != nil {
		t.Fatalf("AddCourse() failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO courses (id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, courseID, category); err != nil {
		t.Fatalf("AddCourse() failed: %v", err)
	}
}

// CompleteCourse records the course as completed and its writing as submitted by userID.
func CompleteCourse(t *testing.T, db *sqlx.DB, userID, courseID string) {
	t.Helper()
	q := `INSERT INTO course_progress (user_id, course_id, completed) VALUES ($1, $2, TRUE)
	ON CONFLICT (user_id, course_id) DO UPDATE SET completed = TRUE`
	if _, err := db.Exec(q, userID, courseID); err != nil {
		t.Fatalf("CompleteCourse() failed: %v", err)
	}
	q = `INSERT INTO writing_submissions (user_id, course_id, submitted) VALUES ($1, $2, TRUE)
	ON CONFLICT (user_id, course_id) DO UPDATE SET submitted = TRUE`
	if _, err := db.Exec(q, userID, courseID); err != nil {
		t.Fatalf("CompleteCourse() failed: %v", err)
	}
}
