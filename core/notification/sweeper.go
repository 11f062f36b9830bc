package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type SweepRepository interface {
	DeleteExpiredNotifications(ctx context.Context, now time.Time) (int, error)
}

// Sweeper finalizes expired pending deletions.
type Sweeper struct {
	repo   SweepRepository
	logger core.Logger
}

func NewSweeper(repo SweepRepository, logger core.Logger) *Sweeper {
	return &Sweeper{repo: repo, logger: logger}
}

// Sweep permanently deletes every notification pending deletion whose deadline is at or before now.
// Running it again with the same now deletes nothing.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	n, err := s.repo.DeleteExpiredNotifications(ctx, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired notifications")
	}
	if n > 0 && s.logger != nil {
		s.logger.Info("notifications swept", map[string]interface{}{"count": n, "now": now.UTC()})
	}
	return n, nil
}
