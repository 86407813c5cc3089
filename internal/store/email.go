package store

import (
	"time"

	"github.com/inboxd/inboxd/internal/label"
)

// Email is a stored message. Labels are the authoritative categorization
// state; read/starred are derived from them, never stored separately.
type Email struct {
	ID            int64
	ProviderRef   string // id in the external provider, empty for locally-composed mail
	Sender        string
	ToRecipients  string
	Subject       string
	Body          string
	Labels        label.Set
	LastSynced    label.Set // provider label snapshot at the last sync, used by the reconciler
	HasAttachment bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ReceivedAt    time.Time
}

// Read reports whether the email has been read (no unread label).
func (e *Email) Read() bool {
	return !e.Labels.Has(label.Unread)
}

// Starred reports whether the email is visibly starred: both star labels present.
func (e *Email) Starred() bool {
	return e.Labels.Has(label.Starred) && e.Labels.Has(label.YellowStar)
}

// Clone returns a deep copy, label sets included.
func (e *Email) Clone() *Email {
	c := *e
	c.Labels = e.Labels.Clone()
	c.LastSynced = e.LastSynced.Clone()
	return &c
}

// Draft holds the fields of an email to be created. Labels default to a
// draft placement when empty.
type Draft struct {
	ProviderRef   string
	Sender        string
	ToRecipients  string
	Subject       string
	Body          string
	Labels        label.Set
	HasAttachment bool
	ReceivedAt    time.Time
}

// Filter selects emails for a paginated listing. Every label in Labels must
// be present and none in ExcludeLabels may be; Query is a case-insensitive
// substring match over subject, sender and body.
type Filter struct {
	Labels        []string
	ExcludeLabels []string
	Query         string
	Page          int
	PageSize      int
}

// Page is one page of a filtered listing.
type Page struct {
	Emails     []*Email
	TotalCount int
	TotalPages int
}
