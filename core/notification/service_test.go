package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/storage/database/inmem"
)

func setup(t *testing.T) (*notification.Service, *notification.Sweeper, *time.Time) {
	t.Helper()
	repo := inmemdb.NewNotificationRepository(inmemdb.Open())
	svc := notification.NewService(repo)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.SetNowFunc(func() time.Time { return now })
	return svc, notification.NewSweeper(repo, nil), &now
}

func create(t *testing.T, svc *notification.Service, userID string) notification.Notification {
	t.Helper()
	n, err := svc.Create(context.Background(), notification.NewNotification{
		UserID:  userID,
		Title:   "Welcome",
		Message: "Hello there",
		Type:    notification.TypeGeneric,
	})
	require.NoError(t, err)
	return n
}

func TestRemainingTime(t *testing.T) {
	deleteAt := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{name: "one second left", now: deleteAt.Add(-time.Second), want: time.Second},
		{name: "full window", now: deleteAt.Add(-time.Hour), want: time.Hour},
		{name: "at deadline", now: deleteAt, want: 0},
		{name: "past deadline", now: deleteAt.Add(time.Second), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notification.RemainingTime(deleteAt, tt.now))
		})
	}
}

func TestService_Create(t *testing.T) {
	svc, _, now := setup(t)
	n := create(t, svc, "u1")

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, *now, n.CreatedAt)
	assert.False(t, n.Read)
	assert.False(t, n.PendingDelete)
	assert.Nil(t, n.DeleteAt)
}

func TestNewNotification_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)

	tests := []struct {
		name       string
		nn         notification.NewNotification
		wantFields []string
	}{
		{
			name: "valid",
			nn:   notification.NewNotification{UserID: "u1", Title: " Hi ", Message: "There", Type: notification.TypeCourseAdded},
		},
		{
			name:       "missing fields",
			nn:         notification.NewNotification{Type: notification.TypeGeneric},
			wantFields: []string{"user_id", "title", "message"},
		},
		{
			name:       "unknown type",
			nn:         notification.NewNotification{UserID: "u1", Title: "Hi", Message: "There", Type: "spam"},
			wantFields: []string{"type"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nn.Validate(validate)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs))
			fields := make([]string, 0, len(vErrs))
			for _, e := range vErrs {
				fields = append(fields, e.Field())
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestService_readState(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	n1 := create(t, svc, "u1")
	create(t, svc, "u1")
	create(t, svc, "u2")

	n, err := svc.MarkRead(ctx, n1.ID)
	require.NoError(t, err)
	assert.True(t, n.Read)
	n, err = svc.MarkRead(ctx, n1.ID)
	require.NoError(t, err, "marking read twice is a no-op")
	assert.True(t, n.Read)

	_, err = svc.MarkRead(ctx, "missing")
	assert.Equal(t, notification.ErrNotFound, errors.Cause(err))

	unread, err := svc.List(ctx, notification.QueryFilter{UserID: "u1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	count, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unread, err = svc.List(ctx, notification.QueryFilter{UserID: "u1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)

	others, err := svc.List(ctx, notification.QueryFilter{UserID: "u2", UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, others, 1, "other users are untouched")
}

func TestService_deferredDeletion(t *testing.T) {
	svc, sweeper, now := setup(t)
	ctx := context.Background()
	t0 := *now
	n := create(t, svc, "u1")

	t.Run("cancel while active", func(t *testing.T) {
		_, err := svc.CancelDeletion(ctx, n.ID)
		assert.Equal(t, notification.ErrInvalidState, errors.Cause(err))
	})

	t.Run("mark for deletion", func(t *testing.T) {
		marked, err := svc.MarkForDeletion(ctx, n.ID)
		require.NoError(t, err)
		assert.True(t, marked.PendingDelete)
		require.NotNil(t, marked.DeleteAt)
		assert.Equal(t, t0.Add(time.Hour), *marked.DeleteAt)

		*now = t0.Add(time.Hour - time.Second)
		assert.Equal(t, time.Second, svc.RemainingTime(marked))
		*now = t0.Add(time.Hour + time.Second)
		assert.Equal(t, time.Duration(0), svc.RemainingTime(marked))
		*now = t0
	})

	t.Run("mark twice", func(t *testing.T) {
		_, err := svc.MarkForDeletion(ctx, n.ID)
		assert.Equal(t, notification.ErrInvalidState, errors.Cause(err))
	})

	t.Run("sweep before deadline", func(t *testing.T) {
		count, err := sweeper.Sweep(ctx, t0.Add(time.Hour-time.Second))
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("sweep at deadline", func(t *testing.T) {
		count, err := sweeper.Sweep(ctx, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = sweeper.Sweep(ctx, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, count, "idempotent")
	})

	t.Run("too late to cancel", func(t *testing.T) {
		_, err := svc.CancelDeletion(ctx, n.ID)
		assert.Equal(t, notification.ErrNotFound, errors.Cause(err))
		_, err = svc.MarkForDeletion(ctx, n.ID)
		assert.Equal(t, notification.ErrNotFound, errors.Cause(err))
	})
}

func TestService_cancelKeepsReadState(t *testing.T) {
	svc, _, now := setup(t)
	ctx := context.Background()
	n := create(t, svc, "u1")
	_, err := svc.MarkRead(ctx, n.ID)
	require.NoError(t, err)

	marked, err := svc.MarkForDeletion(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, marked.DeleteAt)
	assert.WithinDuration(t, now.Add(time.Hour), *marked.DeleteAt, time.Second)

	*now = now.Add(10 * time.Minute)
	restored, err := svc.CancelDeletion(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, restored.PendingDelete)
	assert.Nil(t, restored.DeleteAt)
	assert.True(t, restored.Read)
	assert.Equal(t, time.Duration(0), svc.RemainingTime(restored))

	_, err = svc.CancelDeletion(ctx, n.ID)
	assert.Equal(t, notification.ErrInvalidState, errors.Cause(err))
}
