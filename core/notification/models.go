package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Type of a Notification. RelatedData is keyed by it.
type Type string

const (
	TypeCourseAdded        Type = "course_added"
	TypeCertificateIssued  Type = "certificate_issued"
	TypeCertificateUpdated Type = "certificate_updated"
	TypeGeneric            Type = "generic"
)

var AllTypes = []Type{TypeCourseAdded, TypeCertificateIssued, TypeCertificateUpdated, TypeGeneric}

// DeletionGracePeriod is how long a notification marked for deletion can still be restored.
const DeletionGracePeriod = time.Hour

type (
	// RelatedData is the variant payload of a Notification.
	// certificate_* notifications carry Category and CertificateID (+ CourseIDs for outdated certificates),
	// course_added ones carry Category and CourseIDs.
	RelatedData struct {
		Category      string   `json:"category,omitempty"`
		CertificateID string   `json:"certificate_id,omitempty"`
		CourseIDs     []string `json:"course_ids,omitempty"`
		URL           string   `json:"url,omitempty"`
	}

	Notification struct {
		ID            string      `json:"id"`
		UserID        string      `json:"user_id"`
		Title         string      `json:"title"`
		Message       string      `json:"message"`
		Type          Type        `json:"type"`
		RelatedData   RelatedData `json:"related_data"`
		Read          bool        `json:"read"`
		CreatedAt     time.Time   `json:"created_at"` // UTC
		PendingDelete bool        `json:"pending_delete"`
		DeleteAt      *time.Time  `json:"delete_at"` // UTC; set iff PendingDelete
	}

	// NewNotification contains information needed to create a new Notification.
	NewNotification struct {
		UserID      string      `json:"user_id" validate:"required"`
		Title       string      `json:"title" validate:"required,max=120"`
		Message     string      `json:"message" validate:"required,max=2000"`
		Type        Type        `json:"type" validate:"required,notiftype"`
		RelatedData RelatedData `json:"related_data"`
	}

	// QueryFilter applies AND operation on its set fields.
	QueryFilter struct {
		UserID     string
		UnreadOnly bool
	}
)

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.UserID = core.CleanString(nn.UserID)
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	return validate.Struct(nn)
}

// IsActive reports whether n is not scheduled for deletion.
func (n *Notification) IsActive() bool {
	return !n.PendingDelete
}

// RemainingTime returns how long until deleteAt, never less than zero.
func RemainingTime(deleteAt, now time.Time) time.Duration {
	if d := deleteAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
