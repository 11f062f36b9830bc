package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/storage/database"
)

type certificateRow struct {
	ID                 string         `db:"id"`
	UserID             string         `db:"user_id"`
	Category           string         `db:"category"`
	IssuedAt           time.Time      `db:"issued_at"`
	UpdatedAt          null.Time      `db:"updated_at"`
	IsOutdated         bool           `db:"is_outdated"`
	CompletedCourseIDs pq.StringArray `db:"completed_course_ids"`
}

func (r certificateRow) toCertificate() certificate.Certificate {
	cert := certificate.Certificate{
		ID:                 r.ID,
		UserID:             r.UserID,
		Category:           r.Category,
		IssuedAt:           r.IssuedAt.UTC(),
		IsOutdated:         r.IsOutdated,
		CompletedCourseIDs: certificate.NormalizeCourseIDs(r.CompletedCourseIDs),
	}
	if r.UpdatedAt.Valid {
		at := r.UpdatedAt.Time.UTC()
		cert.UpdatedAt = &at
	}
	return cert
}

const certificateColumns = "id, user_id, category, issued_at, updated_at, is_outdated, completed_course_ids"

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) GetCertificate(ctx context.Context, userID, category string, forUpdate bool) (certificate.Certificate, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	q := `SELECT ` + certificateColumns + ` FROM certificates WHERE user_id = $1 AND category = $2`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	var row certificateRow
	if err := sqlx.GetContext(ctx, database.Executor(ctx, repo.db), &row, q, userID, category); err != nil {
		if err == sql.ErrNoRows {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, database.TranslateError(err, "getting certificate")
	}
	return row.toCertificate(), nil
}

func (repo *certificateRepository) QueryCertificates(ctx context.Context, filter certificate.QueryFilter) ([]certificate.Certificate, error) {
	q := `SELECT ` + certificateColumns + ` FROM certificates
	WHERE ($1 = '' OR user_id::text = $1) AND ($2 = '' OR category = $2)
	ORDER BY issued_at DESC, id`

	var rows []certificateRow
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, repo.db), &rows, q, filter.UserID, filter.Category); err != nil {
		return nil, database.TranslateError(err, "querying certificates")
	}

	certs := make([]certificate.Certificate, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.toCertificate())
	}
	return certs, nil
}

// UpsertCertificate relies on the (user_id, category) unique constraint:
// concurrent first issuances end up with one row and only one of them reports created.
func (repo *certificateRepository) UpsertCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, bool, error) {
	q := `INSERT INTO certificates (id, user_id, category, issued_at, updated_at, is_outdated, completed_course_ids)
	VALUES ($1, $2, $3, $4, NULL, FALSE, $5)
	ON CONFLICT (user_id, category) DO UPDATE SET
		completed_course_ids = EXCLUDED.completed_course_ids,
		is_outdated = FALSE,
		updated_at = EXCLUDED.issued_at
	RETURNING ` + certificateColumns + `, (xmax = 0) AS inserted`

	var row struct {
		certificateRow
		Inserted bool `db:"inserted"`
	}
	ids := pq.StringArray(certificate.NormalizeCourseIDs(cert.CompletedCourseIDs))
	err := sqlx.GetContext(
		ctx, database.Executor(ctx, repo.db), &row, q,
		cert.ID, cert.UserID, cert.Category, cert.IssuedAt.UTC(), ids,
	)
	if err != nil {
		return certificate.Certificate{}, false, database.TranslateError(err, "upserting certificate")
	}
	return row.toCertificate(), row.Inserted, nil
}

func (repo *certificateRepository) MarkCertificateOutdated(ctx context.Context, id string) (bool, error) {
	exec := database.Executor(ctx, repo.db)
	res, err := exec.ExecContext(ctx, `UPDATE certificates SET is_outdated = TRUE WHERE id = $1 AND NOT is_outdated`, id)
	if err != nil {
		return false, database.TranslateError(err, "marking certificate outdated")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, database.TranslateError(err, "marking certificate outdated")
	}
	if n > 0 {
		return true, nil
	}

	var found bool
	if err = sqlx.GetContext(ctx, exec, &found, `SELECT EXISTS (SELECT 1 FROM certificates WHERE id = $1)`, id); err != nil {
		return false, database.TranslateError(err, "checking certificate")
	}
	if !found {
		return false, certificate.ErrNotFound
	}
	return false, nil
}
