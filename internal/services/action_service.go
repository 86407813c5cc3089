package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/inboxd/inboxd/internal/gmail"
	"github.com/inboxd/inboxd/internal/label"
	"github.com/inboxd/inboxd/internal/store"
)

// ActionServiceImpl implements ActionService
type ActionServiceImpl struct {
	mailStore MailStore
	provider  Provider // optional; nil when running offline
	cache     *StateCache
	undo      UndoService // optional
	logger    *log.Logger // optional, for debug logging

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewActionService creates a new action service
func NewActionService(mailStore MailStore, provider Provider, cache *StateCache) *ActionServiceImpl {
	if cache == nil {
		cache = NewStateCache()
	}
	return &ActionServiceImpl{
		mailStore: mailStore,
		provider:  provider,
		cache:     cache,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// SetLogger sets the logger for debug output
func (s *ActionServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// SetUndoService wires the undo recorder. Optional to avoid a construction cycle.
func (s *ActionServiceImpl) SetUndoService(undo UndoService) {
	s.undo = undo
}

// lockFor returns the mutex serializing actions on one email. Concurrent
// actions on different emails proceed in parallel.
func (s *ActionServiceImpl) lockFor(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.locks[id]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[id] = m
	return m
}

// Execute runs one label action against one email: the cached state is
// updated optimistically, the store is asked to apply the same transition,
// and on refusal the cached state is rolled back to what it was. The
// returned email is the store's post-transition state (nil when the email
// was deleted).
func (s *ActionServiceImpl) Execute(ctx context.Context, id int64, action label.Action, params label.Params) (*store.Email, error) {
	return s.execute(ctx, id, action, params, true)
}

// execute is Execute with undo recording switchable: bulk runs suppress the
// per-item records and write one combined record instead.
func (s *ActionServiceImpl) execute(ctx context.Context, id int64, action label.Action, params label.Params, recordUndo bool) (*store.Email, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	prev, cached := s.cache.Get(id)
	if !cached {
		loaded, err := s.mailStore.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) && isDestructive(action) {
				// already gone: the desired end state holds
				s.cache.Remove(id)
				return nil, nil
			}
			return nil, classifyStoreErr(err)
		}
		prev = loaded
	}

	// Validate and compute the optimistic state before touching anything.
	outcome, err := label.Apply(prev.Labels, action, params)
	if err != nil {
		return nil, classifyStoreErr(err)
	}

	// Optimistic update
	if outcome.Delete {
		s.cache.Remove(id)
	} else {
		optimistic := prev.Clone()
		optimistic.Labels = outcome.Labels
		s.cache.Put(optimistic)
	}

	updated, err := s.mailStore.Update(ctx, id, action, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) && isDestructive(action) {
			s.cache.Remove(id)
			return nil, nil
		}
		// Rollback to the pre-action state.
		if cached {
			s.cache.Put(prev)
		} else {
			s.cache.Remove(id)
		}
		if s.logger != nil {
			s.logger.Printf("action %s on %d rolled back: %v", action, id, err)
		}
		return nil, classifyStoreErr(err)
	}

	if outcome.Delete {
		s.cache.Remove(id)
	} else {
		s.cache.Put(updated)
	}

	if recordUndo {
		s.recordUndo(ctx, prev, action, params)
	}
	s.mirror(ctx, prev, updated, action)

	return updated, nil
}

// isDestructive reports whether the action's end state is "the email is not
// here anymore", which makes a missing email a success rather than an error.
func isDestructive(action label.Action) bool {
	return action == label.ActionDeleteForever || action == label.ActionMoveToTrash
}

func (s *ActionServiceImpl) recordUndo(ctx context.Context, prev *store.Email, action label.Action, params label.Params) {
	if s.undo == nil || action == label.ActionDeleteForever {
		return
	}
	err := s.undo.RecordAction(ctx, &UndoableAction{
		Action:      action,
		Params:      params,
		EmailIDs:    []int64{prev.ID},
		PrevLabels:  map[int64]label.Set{prev.ID: prev.Labels.Clone()},
		Description: fmt.Sprintf("%s on %q", action, prev.Subject),
		Timestamp:   time.Now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Printf("record undo for %d failed: %v", prev.ID, err)
	}
}

// mirror pushes the label change to the provider. Best effort: the store has
// already committed, so a provider failure is logged and left for the next
// sync pass to repair.
func (s *ActionServiceImpl) mirror(ctx context.Context, prev, updated *store.Email, action label.Action) {
	if s.provider == nil || prev.ProviderRef == "" {
		return
	}
	var err error
	if action == label.ActionDeleteForever {
		err = s.provider.Delete(ctx, prev.ProviderRef)
	} else {
		add, remove := gmail.Delta(prev.Labels, updated.Labels)
		if len(add) == 0 && len(remove) == 0 {
			return
		}
		err = s.provider.ApplyLabelDelta(ctx, prev.ProviderRef, add, remove)
	}
	if err != nil && s.logger != nil {
		s.logger.Printf("mirror %s to provider for %s failed: %v", action, prev.ProviderRef, err)
	}
}
