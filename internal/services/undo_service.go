package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inboxd/inboxd/internal/gmail"
	"github.com/inboxd/inboxd/internal/label"
)

// UndoServiceImpl implements UndoService. Single-level: only the most
// recent label action can be reverted, and reverting clears it.
type UndoServiceImpl struct {
	mailStore MailStore
	provider  Provider // optional
	cache     *StateCache

	mu         sync.RWMutex
	lastAction *UndoableAction
	logger     *log.Logger // optional
}

// NewUndoService creates a new undo service
func NewUndoService(mailStore MailStore, provider Provider, cache *StateCache) *UndoServiceImpl {
	if cache == nil {
		cache = NewStateCache()
	}
	return &UndoServiceImpl{mailStore: mailStore, provider: provider, cache: cache}
}

// SetLogger sets the logger for debug output
func (s *UndoServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// RecordAction records an action for potential undo
func (s *UndoServiceImpl) RecordAction(ctx context.Context, action *UndoableAction) error {
	if action == nil {
		return fmt.Errorf("action cannot be nil")
	}
	if len(action.PrevLabels) == 0 {
		return fmt.Errorf("action carries no previous label state")
	}
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAction = action
	return nil
}

// HasUndoableAction reports whether an undo is available.
func (s *UndoServiceImpl) HasUndoableAction(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAction != nil
}

// UndoLastAction restores the label state captured before the last action.
// Emails that vanished since (deleted, purged) are reported but do not
// block the remaining restores.
func (s *UndoServiceImpl) UndoLastAction(ctx context.Context) (*UndoResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastAction == nil {
		return &UndoResult{
			Success:     false,
			Description: "No action to undo",
			Errors:      []string{"no undoable action available"},
		}, nil
	}

	action := s.lastAction
	result := &UndoResult{
		Success:     true,
		Description: fmt.Sprintf("Undid %s", action.Description),
		EmailCount:  len(action.EmailIDs),
	}

	for _, id := range action.EmailIDs {
		prev, ok := action.PrevLabels[id]
		if !ok {
			continue
		}
		if err := s.restoreOne(ctx, id, prev); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("email %d: %v", id, err))
		}
	}

	if result.Success {
		s.lastAction = nil
	}
	return result, nil
}

func (s *UndoServiceImpl) restoreOne(ctx context.Context, id int64, prev label.Set) error {
	current, err := s.mailStore.Get(ctx, id)
	if err != nil {
		return classifyStoreErr(err)
	}

	restored, err := s.mailStore.SetLabels(ctx, id, prev.Clone(), nil)
	if err != nil {
		return classifyStoreErr(err)
	}
	s.cache.Put(restored)

	if s.provider != nil && current.ProviderRef != "" {
		add, remove := gmail.Delta(current.Labels, prev)
		if len(add) > 0 || len(remove) > 0 {
			if err := s.provider.ApplyLabelDelta(ctx, current.ProviderRef, add, remove); err != nil && s.logger != nil {
				// sync repairs this later
				s.logger.Printf("undo: provider restore for %s failed: %v", current.ProviderRef, err)
			}
		}
	}
	return nil
}
