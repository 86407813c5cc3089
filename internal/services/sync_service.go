package services

import (
	"context"
	"errors"
	"log"

	"github.com/inboxd/inboxd/internal/gmail"
	"github.com/inboxd/inboxd/internal/label"
	"github.com/inboxd/inboxd/internal/store"
)

// Reconcile three-way merges one email's label state. For every label the
// provider owns: if the local state diverged from what was last synced, the
// local change wins; otherwise the provider's current state wins. Labels the
// provider has no ID for (yellow_star, all, custom tags) are taken from the
// local state untouched, then the result is normalized so the store
// invariants hold: trash absorbs everything, stars stay paired, and exactly
// one placement remains.
//
// Reconcile is pure and idempotent: merging the result again against the
// same provider snapshot returns it unchanged.
func Reconcile(local, lastSynced, remote label.Set) label.Set {
	merged := label.NewSet()

	vocabulary := gmail.Vocabulary()
	for _, name := range vocabulary.Slice() {
		localHas := local.Has(name)
		if localHas != lastSynced.Has(name) {
			// changed locally since the last sync: local wins
			if localHas {
				merged.Add(name)
			}
			continue
		}
		if remote.Has(name) {
			merged.Add(name)
		}
	}
	for _, name := range local.Slice() {
		if !vocabulary.Has(name) {
			merged.Add(name)
		}
	}

	// trash absorbs the rest of the set
	if merged.Has(label.Trash) {
		return label.NewSet(label.Trash)
	}

	// star labels travel together
	if merged.Has(label.Starred) {
		merged.Add(label.YellowStar)
	} else {
		merged.Remove(label.YellowStar)
	}

	normalizePlacement(merged, local)
	return merged
}

// normalizePlacement restores placement exclusivity after a merge. When both
// sides moved the email, the local placement wins; no placement at all means
// the email is archived.
func normalizePlacement(merged, local label.Set) {
	var placements []string
	for _, name := range merged.Slice() {
		if label.IsPlacement(name) {
			placements = append(placements, name)
		}
	}
	switch len(placements) {
	case 0:
		merged.Add(label.All)
	case 1:
		// already exclusive
	default:
		keep := placements[0]
		if p := local.Placement(); p != "" && merged.Has(p) {
			keep = p
		}
		for _, name := range placements {
			if name != keep {
				merged.Remove(name)
			}
		}
	}
}

// syncPullLabels are the provider views a sync pass pulls.
var syncPullLabels = []string{label.Inbox, label.Sent, label.Spam, label.Trash}

// SyncServiceImpl implements SyncService
type SyncServiceImpl struct {
	mailStore MailStore
	provider  Provider
	maxPull   int64
	logger    *log.Logger // optional
}

// NewSyncService creates a new sync service
func NewSyncService(mailStore MailStore, provider Provider, maxPull int64) *SyncServiceImpl {
	if maxPull <= 0 {
		maxPull = 100
	}
	return &SyncServiceImpl{mailStore: mailStore, provider: provider, maxPull: maxPull}
}

// SetLogger sets the logger for debug output
func (s *SyncServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// Sync pulls the provider's current state, imports messages seen for the
// first time, three-way merges the rest, and pushes local divergence back.
// When the backend cannot be reached the pass is a no-op: no local state has
// been touched when ErrSyncUnavailable comes back.
func (s *SyncServiceImpl) Sync(ctx context.Context) (*SyncResult, error) {
	if s.provider == nil {
		return nil, ErrSyncUnavailable
	}

	result := &SyncResult{}
	seen := make(map[string]bool)

	for _, pullLabel := range syncPullLabels {
		messages, err := s.provider.ListLabelMessages(ctx, pullLabel, s.maxPull)
		if err != nil {
			return nil, classifyProviderErr(err)
		}
		for _, msg := range messages {
			if seen[msg.ID] {
				continue
			}
			seen[msg.ID] = true
			result.Pulled++

			if err := s.syncOne(ctx, msg, result); err != nil {
				return nil, err
			}
		}
	}

	if s.logger != nil {
		s.logger.Printf("sync: pulled=%d imported=%d reconciled=%d pushed=%d",
			result.Pulled, result.Imported, result.Reconciled, result.Pushed)
	}
	return result, nil
}

func (s *SyncServiceImpl) syncOne(ctx context.Context, msg *gmail.Message, result *SyncResult) error {
	local, err := s.mailStore.GetByProviderRef(ctx, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		created, err := s.mailStore.Create(ctx, store.Draft{
			ProviderRef:   msg.ID,
			Sender:        msg.From,
			ToRecipients:  msg.To,
			Subject:       msg.Subject,
			Body:          msg.PlainText,
			Labels:        msg.Labels.Clone(),
			HasAttachment: msg.HasAttachment,
			ReceivedAt:    msg.Date,
		})
		if err != nil {
			return classifyStoreErr(err)
		}
		// imports start in sync with the provider by definition
		if _, err := s.mailStore.SetLabels(ctx, created.ID, msg.Labels.Clone(), msg.Labels.Clone()); err != nil {
			return classifyStoreErr(err)
		}
		result.Imported++
		return nil
	}
	if err != nil {
		return classifyStoreErr(err)
	}

	merged := Reconcile(local.Labels, local.LastSynced, msg.Labels)

	if !merged.Equal(local.Labels) || !msg.Labels.Equal(local.LastSynced) {
		if _, err := s.mailStore.SetLabels(ctx, local.ID, merged, msg.Labels.Clone()); err != nil {
			return classifyStoreErr(err)
		}
		if !merged.Equal(local.Labels) {
			result.Reconciled++
		}
	}

	// push local divergence back to the provider
	add, remove := gmail.Delta(msg.Labels, merged)
	if len(add) > 0 || len(remove) > 0 {
		if err := s.provider.ApplyLabelDelta(ctx, msg.ID, add, remove); err != nil {
			// the merge is already stored; the next pass retries the push
			if s.logger != nil {
				s.logger.Printf("sync: push for %s failed: %v", msg.ID, err)
			}
			return nil
		}
		result.Pushed++
	}
	return nil
}
