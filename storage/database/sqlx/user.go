package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

type userRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Username  null.String    `db:"username"`
	Email     null.String    `db:"email"`
	IsActive  bool           `db:"is_active"`
	Roles     pq.StringArray `db:"roles"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:        r.ID,
		Name:      r.Name,
		Username:  r.Username.String,
		Email:     r.Email.String,
		IsActive:  r.IsActive,
		Roles:     []string(r.Roles),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const userColumns = "id, name, username, email, is_active, roles, created_at, updated_at"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string) error {
	var taken struct {
		Username bool `db:"username"`
		Email    bool `db:"email"`
	}
	q := `SELECT
		COALESCE(bool_or(username = $1), FALSE) AS username,
		COALESCE(bool_or(email = $2), FALSE) AS email
	FROM users WHERE username = $1 OR email = $2`
	if err := sqlx.GetContext(ctx, database.Executor(ctx, repo.db), &taken, q, nullString(username), nullString(email)); err != nil {
		return database.TranslateError(err, "checking username uniqueness")
	}
	switch {
	case taken.Username:
		return user.ErrUsernameExists
	case taken.Email:
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	roles := pq.StringArray(usr.Roles)
	if roles == nil {
		roles = pq.StringArray{}
	}
	var row userRow
	q := `INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + userColumns
	err := sqlx.GetContext(
		ctx, database.Executor(ctx, repo.db), &row, q,
		usr.ID, usr.Name, nullString(usr.Username), nullString(usr.Email), usr.IsActive, roles,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			switch pqErr.Constraint {
			case "users_username_key":
				return user.User{}, user.ErrUsernameExists
			case "users_email_key":
				return user.User{}, user.ErrEmailExists
			}
		}
		return user.User{}, database.TranslateError(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow
	var err error
	exec := database.Executor(ctx, repo.db)

	switch {
	case filter.ID != "":
		if _, pErr := uuid.Parse(filter.ID); pErr != nil {
			return user.User{}, user.ErrNotFound
		}
		err = sqlx.GetContext(ctx, exec, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, filter.ID)
	case filter.UsernameOrEmail != "":
		err = sqlx.GetContext(
			ctx, exec, &row,
			`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1 LIMIT 1`, filter.UsernameOrEmail,
		)
	default:
		return user.User{}, user.ErrNotFound
	}

	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, database.TranslateError(err, "getting user")
	}
	return row.toUser(), nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
