package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound     = errors.New("notification not found")
	ErrInvalidState = errors.New("notification is not in a state allowing this action")
)

type (
	// Repository persists notifications.
	// Every state transition is a single conditional write on the current state of the record:
	// ScheduleNotificationDeletion only applies to active notifications and CancelNotificationDeletion
	// only to pending ones; both return ErrInvalidState when the condition does not hold
	// and ErrNotFound when the record is gone.
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		// QueryNotifications returns the notifications matching filter, newest first.
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, id string) (Notification, error)
		MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
		ScheduleNotificationDeletion(ctx context.Context, id string, deleteAt time.Time) (Notification, error)
		CancelNotificationDeletion(ctx context.Context, id string) (Notification, error)
		// DeleteExpiredNotifications removes every pending notification with DeleteAt <= now.
		DeleteExpiredNotifications(ctx context.Context, now time.Time) (int, error)
	}

	Service struct {
		repo Repository
		now  func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SetNowFunc replaces the clock of svc.
func (svc *Service) SetNowFunc(fn func() time.Time) {
	svc.now = fn
}

func (svc *Service) Now() time.Time {
	return svc.now().UTC()
}

func (svc *Service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	n := Notification{
		ID:          uuid.NewString(),
		UserID:      nn.UserID,
		Title:       nn.Title,
		Message:     nn.Message,
		Type:        nn.Type,
		RelatedData: nn.RelatedData,
		CreatedAt:   svc.Now(),
	}
	return svc.repo.CreateNotification(ctx, n)
}

func (svc *Service) Get(ctx context.Context, id string) (Notification, error) {
	return svc.repo.GetNotification(ctx, id)
}

func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, filter)
}

// MarkRead is a no-op on notifications already read.
func (svc *Service) MarkRead(ctx context.Context, id string) (Notification, error) {
	return svc.repo.MarkNotificationRead(ctx, id)
}

// MarkAllRead marks every unread notification of userID as read and returns how many were.
func (svc *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkAllNotificationsRead(ctx, userID)
}

// MarkForDeletion schedules the deletion of an active notification after DeletionGracePeriod.
func (svc *Service) MarkForDeletion(ctx context.Context, id string) (Notification, error) {
	return svc.repo.ScheduleNotificationDeletion(ctx, id, svc.Now().Add(DeletionGracePeriod))
}

// CancelDeletion restores a notification pending deletion.
// ErrNotFound means the sweep got there first: it is too late to cancel.
func (svc *Service) CancelDeletion(ctx context.Context, id string) (Notification, error) {
	return svc.repo.CancelNotificationDeletion(ctx, id)
}

// RemainingTime returns how long n can still be restored; zero when n is not pending deletion.
func (svc *Service) RemainingTime(n Notification) time.Duration {
	if !n.PendingDelete || n.DeleteAt == nil {
		return 0
	}
	return RemainingTime(*n.DeleteAt, svc.Now())
}
