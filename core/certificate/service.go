package certificate

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("certificate not found")
	ErrNotEligible = errors.New("not every course and writing of the category is completed")
)

const (
	issuedTitle    = "Certificate issued"
	issuedMessage  = "Congratulations! You completed every course of %q and earned its certificate."
	updatedTitle   = "New course added"
	updatedMessage = "A new course was added to %q. Complete it to bring your certificate up to date."
)

type (
	Repository interface {
		// GetCertificate locks the row until the end of the transaction when forUpdate is set.
		GetCertificate(ctx context.Context, userID, category string, forUpdate bool) (Certificate, error)
		QueryCertificates(ctx context.Context, filter QueryFilter) ([]Certificate, error)
		// UpsertCertificate inserts cert, or, when the (UserID, Category) certificate exists,
		// replaces its CompletedCourseIDs, clears IsOutdated and sets UpdatedAt to cert.IssuedAt
		// in a single write. created reports whether cert was inserted.
		UpsertCertificate(ctx context.Context, cert Certificate) (saved Certificate, created bool, err error)
		// MarkCertificateOutdated flags the certificate as outdated.
		// It returns false when it already was.
		MarkCertificateOutdated(ctx context.Context, id string) (bool, error)
	}

	Tracker interface {
		Progress(ctx context.Context, userID, category string) (progress.Progress, error)
		CourseIDs(ctx context.Context, category string) ([]string, error)
	}

	Notifier interface {
		Create(ctx context.Context, nn notification.NewNotification) (notification.Notification, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		tracker  Tracker
		notifier Notifier
		users    UserFinder
		mailSvc  core.EmailService
		logger   core.Logger
		now      func() time.Time
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	tracker Tracker,
	notifier Notifier,
	users UserFinder,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		tracker:  tracker,
		notifier: notifier,
		users:    users,
		mailSvc:  mailSvc,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNowFunc replaces the clock of svc.
func (svc *Service) SetNowFunc(fn func() time.Time) {
	svc.now = fn
}

func (svc *Service) Now() time.Time {
	return svc.now().UTC()
}

// IssueOrRefresh issues the certificate of category to userID once every course and writing is completed.
// An existing certificate is refreshed against the current course set instead, without notifying.
// The certificate and its certificate_issued notification commit together.
func (svc *Service) IssueOrRefresh(ctx context.Context, userID, category string) (Certificate, error) {
	p, err := svc.tracker.Progress(ctx, userID, category)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "computing progress")
	}
	if !p.Snapshot.IsAllCompleted() {
		return Certificate{}, ErrNotEligible
	}

	var cert Certificate
	var created bool
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		cert, created, err = svc.repo.UpsertCertificate(ctx, Certificate{
			ID:                 uuid.NewString(),
			UserID:             userID,
			Category:           category,
			IssuedAt:           svc.Now(),
			CompletedCourseIDs: NormalizeCourseIDs(p.CourseIDs),
		})
		if err != nil {
			return errors.Wrap(err, "upserting certificate")
		}
		if !created {
			return nil
		}
		_, err = svc.notifier.Create(ctx, notification.NewNotification{
			UserID:  userID,
			Title:   issuedTitle,
			Message: fmt.Sprintf(issuedMessage, category),
			Type:    notification.TypeCertificateIssued,
			RelatedData: notification.RelatedData{
				Category:      category,
				CertificateID: cert.ID,
			},
		})
		return errors.Wrap(err, "creating certificate_issued notification")
	})
	if err != nil {
		return Certificate{}, err
	}

	if created {
		svc.sendIssuedEmail(ctx, cert)
	}
	return cert, nil
}

// CheckOutdated reports whether the certificate of userID in category misses courses of the category.
// The first time it does, the certificate is flagged outdated and a certificate_updated notification is emitted;
// further calls change nothing. Without a certificate there is nothing to be outdated.
func (svc *Service) CheckOutdated(ctx context.Context, userID, category string) (bool, error) {
	current, err := svc.tracker.CourseIDs(ctx, category)
	if err != nil {
		return false, errors.Wrap(err, "listing category courses")
	}
	outdated, _, err := svc.checkOutdated(ctx, userID, category, current)
	return outdated, err
}

// CheckOutdatedForCategory runs CheckOutdated for every certificate of category,
// e.g. after a course was added to it. It returns how many certificates became outdated.
func (svc *Service) CheckOutdatedForCategory(ctx context.Context, category string) (int, error) {
	current, err := svc.tracker.CourseIDs(ctx, category)
	if err != nil {
		return 0, errors.Wrap(err, "listing category courses")
	}
	certs, err := svc.repo.QueryCertificates(ctx, QueryFilter{Category: category})
	if err != nil {
		return 0, errors.Wrap(err, "querying certificates")
	}

	var count int
	for _, cert := range certs {
		if cert.IsOutdated {
			continue
		}
		_, flipped, err := svc.checkOutdated(ctx, cert.UserID, category, current)
		if err != nil {
			return count, errors.Wrapf(err, "checking certificate %s", cert.ID)
		}
		if flipped {
			count++
		}
	}
	return count, nil
}

func (svc *Service) checkOutdated(ctx context.Context, userID, category string, current []string) (outdated, flipped bool, err error) {
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		cert, err := svc.repo.GetCertificate(ctx, userID, category, true /* forUpdate */)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return nil
			}
			return errors.Wrap(err, "getting certificate")
		}

		missing := cert.MissingCourseIDs(current)
		if len(missing) == 0 {
			return nil
		}
		outdated = true
		if cert.IsOutdated {
			return nil
		}

		if flipped, err = svc.repo.MarkCertificateOutdated(ctx, cert.ID); err != nil {
			return errors.Wrap(err, "marking certificate outdated")
		}
		if !flipped {
			return nil
		}
		_, err = svc.notifier.Create(ctx, notification.NewNotification{
			UserID:  userID,
			Title:   updatedTitle,
			Message: fmt.Sprintf(updatedMessage, category),
			Type:    notification.TypeCertificateUpdated,
			RelatedData: notification.RelatedData{
				Category:      category,
				CertificateID: cert.ID,
				CourseIDs:     missing,
			},
		})
		return errors.Wrap(err, "creating certificate_updated notification")
	})
	if err != nil {
		return false, false, err
	}
	return outdated, flipped, nil
}

func (svc *Service) Get(ctx context.Context, userID, category string) (Certificate, error) {
	return svc.repo.GetCertificate(ctx, userID, category, false)
}

func (svc *Service) List(ctx context.Context, userID string) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, QueryFilter{UserID: userID})
}

// sendIssuedEmail is best effort: the certificate is already committed.
func (svc *Service) sendIssuedEmail(ctx context.Context, cert Certificate) {
	if svc.mailSvc == nil {
		return
	}
	usr, err := svc.users.GetByID(ctx, cert.UserID)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Error("finding certificate owner", errors.Wrap(err, "sending certificate email"))
		}
		return
	}
	if usr.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: issuedTitle,
		BodyStr: fmt.Sprintf(
			"Hi %s,\r\n\r\n"+issuedMessage+"\r\n\r\nIssued on %s.",
			usr.Name, cert.Category, cert.IssuedAt.Format("January 2, 2006"),
		),
	}
	svc.mailSvc.SendMessages(msg)
}
