package services

import (
	"context"
	"time"

	"github.com/inboxd/inboxd/internal/gmail"
	"github.com/inboxd/inboxd/internal/label"
	"github.com/inboxd/inboxd/internal/store"
)

// MailStore is the authoritative persistence backend for emails. The SQLite
// store implements it; tests substitute fakes.
type MailStore interface {
	Create(ctx context.Context, draft store.Draft) (*store.Email, error)
	Get(ctx context.Context, id int64) (*store.Email, error)
	GetByProviderRef(ctx context.Context, ref string) (*store.Email, error)
	List(ctx context.Context, f store.Filter) (*store.Page, error)
	Update(ctx context.Context, id int64, action label.Action, params label.Params) (*store.Email, error)
	AddLabel(ctx context.Context, id int64, name string) (*store.Email, error)
	RemoveLabel(ctx context.Context, id int64, name string) (*store.Email, error)
	SetLabels(ctx context.Context, id int64, labels, lastSynced label.Set) (*store.Email, error)
	Delete(ctx context.Context, id int64) error
}

// Provider mirrors label state to the external mail provider.
type Provider interface {
	FetchLabelSnapshot(ctx context.Context, ref string) (label.Set, error)
	ApplyLabelDelta(ctx context.Context, ref string, add, remove []string) error
	Delete(ctx context.Context, ref string) error
	ListLabelMessages(ctx context.Context, labelName string, max int64) ([]*gmail.Message, error)
}

// ActionService executes a single label action with optimistic update and
// rollback semantics.
type ActionService interface {
	Execute(ctx context.Context, id int64, action label.Action, params label.Params) (*store.Email, error)
}

// BulkActionService applies one action to many emails concurrently with
// per-item failure isolation.
type BulkActionService interface {
	ExecuteBulk(ctx context.Context, ids []int64, action label.Action, params label.Params) (*BulkResult, error)
}

// ViewService produces the windowed listings and counters the UI renders.
type ViewService interface {
	ListView(ctx context.Context, req ViewRequest) (*EmailPage, error)
	UnreadCount(ctx context.Context, key label.ViewKey) (int, error)
	Counts(ctx context.Context) (*ViewCounts, error)
}

// SyncService reconciles local label state against the provider.
type SyncService interface {
	Sync(ctx context.Context) (*SyncResult, error)
}

// UndoService records the last label action so it can be reverted.
type UndoService interface {
	RecordAction(ctx context.Context, action *UndoableAction) error
	UndoLastAction(ctx context.Context) (*UndoResult, error)
	HasUndoableAction(ctx context.Context) bool
}

// BulkResult reports a bulk execution: which ids succeeded, which failed,
// and why. A partially failed bulk is not an error at the call level.
type BulkResult struct {
	Action    label.Action
	Requested int
	Succeeded []int64
	Failed    []int64
	Errors    map[int64]error
}

// ViewRequest selects a windowed listing.
type ViewRequest struct {
	Key      label.ViewKey
	Tab      label.Tab
	Query    string
	Page     int
	PageSize int
}

// EmailPage is one rendered window of a view plus the totals computed from
// the full filtered set.
type EmailPage struct {
	Emails     []*store.Email
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

// ViewCounts carries the per-view unread counters shown in the sidebar.
type ViewCounts struct {
	Inbox   int
	Starred int
	Spam    int
	Trash   int
	Tabs    map[label.Tab]int
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Pulled     int // messages fetched from the provider
	Imported   int // messages seen for the first time
	Reconciled int // existing messages whose labels were merged
	Pushed     int // local deltas mirrored back to the provider
}

// UndoableAction captures the state needed to revert one label action.
type UndoableAction struct {
	ID          string
	Action      label.Action
	Params      label.Params
	EmailIDs    []int64
	PrevLabels  map[int64]label.Set
	Description string
	Timestamp   time.Time
}

// UndoResult reports the outcome of an undo.
type UndoResult struct {
	Success     bool
	Description string
	EmailCount  int
	Errors      []string
}
