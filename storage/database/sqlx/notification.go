package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/storage/database"
)

type notificationRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	Title         string         `db:"title"`
	Message       string         `db:"message"`
	Type          string         `db:"type"`
	RelatedData   types.JSONText `db:"related_data"`
	Read          bool           `db:"read"`
	CreatedAt     time.Time      `db:"created_at"`
	PendingDelete bool           `db:"pending_delete"`
	DeleteAt      null.Time      `db:"delete_at"`
}

func (r notificationRow) toNotification() (notification.Notification, error) {
	n := notification.Notification{
		ID:            r.ID,
		UserID:        r.UserID,
		Title:         r.Title,
		Message:       r.Message,
		Type:          notification.Type(r.Type),
		Read:          r.Read,
		CreatedAt:     r.CreatedAt.UTC(),
		PendingDelete: r.PendingDelete,
	}
	if len(r.RelatedData) > 0 {
		if err := r.RelatedData.Unmarshal(&n.RelatedData); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding related_data")
		}
	}
	if r.DeleteAt.Valid {
		at := r.DeleteAt.Time.UTC()
		n.DeleteAt = &at
	}
	return n, nil
}

const notificationColumns = "id, user_id, title, message, type, related_data, read, created_at, pending_delete, delete_at"

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) getRow(ctx context.Context, q string, args ...interface{}) (notification.Notification, error) {
	var row notificationRow
	if err := sqlx.GetContext(ctx, database.Executor(ctx, repo.db), &row, q, args...); err != nil {
		return notification.Notification{}, err
	}
	return row.toNotification()
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	data, err := json.Marshal(n.RelatedData)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "encoding related_data")
	}
	q := `INSERT INTO notifications (id, user_id, title, message, type, related_data, read, created_at, pending_delete, delete_at)
	VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, FALSE, NULL)
	RETURNING ` + notificationColumns
	created, err := repo.getRow(ctx, q, n.ID, n.UserID, n.Title, n.Message, string(n.Type), types.JSONText(data), n.CreatedAt.UTC())
	if err != nil {
		return notification.Notification{}, database.TranslateError(err, "inserting notification")
	}
	return created, nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}
	n, err := repo.getRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, database.TranslateError(err, "getting notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications
	WHERE ($1 = '' OR user_id::text = $1) AND (NOT $2 OR NOT read)
	ORDER BY created_at DESC, id DESC`

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, repo.db), &rows, q, filter.UserID, filter.UnreadOnly); err != nil {
		return nil, database.TranslateError(err, "querying notifications")
	}

	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toNotification()
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}
	n, err := repo.getRow(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 RETURNING `+notificationColumns, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, database.TranslateError(err, "marking notification read")
	}
	return n, nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}
	res, err := database.Executor(ctx, repo.db).ExecContext(
		ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID,
	)
	if err != nil {
		return 0, database.TranslateError(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, database.TranslateError(err, "marking notifications read")
	}
	return int(n), nil
}

// transition applies a conditional update. When no row matched, it tells a missing record
// (ErrNotFound) from one in the wrong state (ErrInvalidState).
func (repo *notificationRepository) transition(ctx context.Context, msg, q string, args ...interface{}) (notification.Notification, error) {
	id, _ := args[0].(string)
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}

	n, err := repo.getRow(ctx, q, args...)
	if err == nil {
		return n, nil
	}
	if err != sql.ErrNoRows {
		return notification.Notification{}, database.TranslateError(err, msg)
	}

	var found bool
	if err = sqlx.GetContext(
		ctx, database.Executor(ctx, repo.db), &found, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, id,
	); err != nil {
		return notification.Notification{}, database.TranslateError(err, msg)
	}
	if !found {
		return notification.Notification{}, notification.ErrNotFound
	}
	return notification.Notification{}, notification.ErrInvalidState
}

func (repo *notificationRepository) ScheduleNotificationDeletion(ctx context.Context, id string, deleteAt time.Time) (notification.Notification, error) {
	q := `UPDATE notifications SET pending_delete = TRUE, delete_at = $2
	WHERE id = $1 AND NOT pending_delete
	RETURNING ` + notificationColumns
	return repo.transition(ctx, "scheduling notification deletion", q, id, deleteAt.UTC())
}

func (repo *notificationRepository) CancelNotificationDeletion(ctx context.Context, id string) (notification.Notification, error) {
	q := `UPDATE notifications SET pending_delete = FALSE, delete_at = NULL
	WHERE id = $1 AND pending_delete
	RETURNING ` + notificationColumns
	return repo.transition(ctx, "cancelling notification deletion", q, id)
}

func (repo *notificationRepository) DeleteExpiredNotifications(ctx context.Context, now time.Time) (int, error) {
	res, err := database.Executor(ctx, repo.db).ExecContext(
		ctx, `DELETE FROM notifications WHERE pending_delete AND delete_at <= $1`, now.UTC(),
	)
	if err != nil {
		return 0, database.TranslateError(err, "deleting expired notifications")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, database.TranslateError(err, "deleting expired notifications")
	}
	return int(n), nil
}
