package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	checkDB(db)
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	n.Read = false
	n.PendingDelete = false
	n.DeleteAt = nil
	stored := copyNotification(n)
	repo.db.notification.table[n.ID] = &stored
	onUndo(func() { delete(repo.db.notification.table, n.ID) })
	return copyNotification(stored), nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	defer repo.db.read(ctx)()

	if n, ok := repo.db.notification.table[id]; ok {
		return copyNotification(*n), nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	defer repo.db.read(ctx)()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.notification.table {
		if filter.UserID != "" && n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		notifs = append(notifs, copyNotification(*n))
	}
	sort.Slice(notifs, func(i, j int) bool {
		if notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].ID > notifs[j].ID
		}
		return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
	})
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id string) (notification.Notification, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	n, ok := repo.db.notification.table[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	if !n.Read {
		n.Read = true
		onUndo(func() { n.Read = false })
	}
	return copyNotification(*n), nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	var count int
	for _, n := range repo.db.notification.table {
		if n.UserID == userID && !n.Read {
			n := n
			n.Read = true
			onUndo(func() { n.Read = false })
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) ScheduleNotificationDeletion(ctx context.Context, id string, deleteAt time.Time) (notification.Notification, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	n, ok := repo.db.notification.table[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	if n.PendingDelete {
		return notification.Notification{}, notification.ErrInvalidState
	}
	deleteAt = deleteAt.UTC()
	n.PendingDelete = true
	n.DeleteAt = &deleteAt
	onUndo(func() {
		n.PendingDelete = false
		n.DeleteAt = nil
	})
	return copyNotification(*n), nil
}

func (repo *notificationRepository) CancelNotificationDeletion(ctx context.Context, id string) (notification.Notification, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	n, ok := repo.db.notification.table[id]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	if !n.PendingDelete {
		return notification.Notification{}, notification.ErrInvalidState
	}
	prev := n.DeleteAt
	n.PendingDelete = false
	n.DeleteAt = nil
	onUndo(func() {
		n.PendingDelete = true
		n.DeleteAt = prev
	})
	return copyNotification(*n), nil
}

func (repo *notificationRepository) DeleteExpiredNotifications(ctx context.Context, now time.Time) (int, error) {
	unlock, onUndo := repo.db.write(ctx)
	defer unlock()

	var count int
	for id, n := range repo.db.notification.table {
		if n.PendingDelete && n.DeleteAt != nil && !n.DeleteAt.After(now) {
			id, n := id, n
			delete(repo.db.notification.table, id)
			onUndo(func() { repo.db.notification.table[id] = n })
			count++
		}
	}
	return count, nil
}

func copyNotification(n notification.Notification) notification.Notification {
	n.RelatedData.CourseIDs = copyStrings(n.RelatedData.CourseIDs)
	if n.DeleteAt != nil {
		at := *n.DeleteAt
		n.DeleteAt = &at
	}
	return n
}
