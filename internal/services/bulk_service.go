package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/inboxd/inboxd/internal/label"
)

// BulkActionServiceImpl implements BulkActionService
type BulkActionServiceImpl struct {
	actions   *ActionServiceImpl
	mailStore MailStore
	undo      UndoService // optional
	logger    *log.Logger // optional
}

// NewBulkActionService creates a new bulk action service
func NewBulkActionService(actions *ActionServiceImpl, mailStore MailStore) *BulkActionServiceImpl {
	return &BulkActionServiceImpl{actions: actions, mailStore: mailStore}
}

// SetLogger sets the logger for debug output
func (s *BulkActionServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// SetUndoService wires the undo recorder for combined bulk undo records.
func (s *BulkActionServiceImpl) SetUndoService(undo UndoService) {
	s.undo = undo
}

// ExecuteBulk applies one action to every id concurrently. Items fail
// independently: one refused email never aborts the rest, and the result
// reports per-id errors. The call itself only errors on empty or invalid
// input.
func (s *BulkActionServiceImpl) ExecuteBulk(ctx context.Context, ids []int64, action label.Action, params label.Params) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no emails selected", ErrInvalidPrecondition)
	}

	// Snapshot pre-action labels for the combined undo record.
	prevLabels := make(map[int64]label.Set, len(ids))
	var prevMu sync.Mutex

	result := &BulkResult{
		Action:    action,
		Requested: len(ids),
		Errors:    make(map[int64]error),
	}
	var resultMu sync.Mutex

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()

			if prev, err := s.mailStore.Get(ctx, id); err == nil {
				prevMu.Lock()
				prevLabels[id] = prev.Labels.Clone()
				prevMu.Unlock()
			}

			err := s.executeOne(ctx, id, action, params)

			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, id)
				result.Errors[id] = err
			} else {
				result.Succeeded = append(result.Succeeded, id)
			}
		}(id)
	}
	wg.Wait()

	if s.logger != nil && len(result.Failed) > 0 {
		s.logger.Printf("bulk %s: %d/%d failed", action, len(result.Failed), result.Requested)
	}

	// Emails moved out of the current view disappear from the loaded window
	// at once; the next listing refetch corrects any page-boundary drift.
	if movesBetweenViews(action) {
		for _, id := range result.Succeeded {
			s.actions.cache.Remove(id)
		}
	}

	s.recordUndo(ctx, action, params, result, prevLabels)

	return result, nil
}

// movesBetweenViews reports whether the action changes which view an email
// belongs to.
func movesBetweenViews(action label.Action) bool {
	switch action {
	case label.ActionArchive, label.ActionMoveToTrash, label.ActionRestoreFromTrash,
		label.ActionDeleteForever, label.ActionCategorize:
		return true
	}
	return false
}

// executeOne runs the action for a single id. star and unstar are applied
// as two sequential label steps, matching the provider's paired-label
// behavior; if the second step fails the first is reported as a failure but
// not retracted, and the next sync pass repairs the half state.
func (s *BulkActionServiceImpl) executeOne(ctx context.Context, id int64, action label.Action, params label.Params) error {
	switch action {
	case label.ActionStar:
		if _, err := s.actions.execute(ctx, id, label.ActionApplyLabel, label.Params{Label: label.Starred}, false); err != nil {
			return err
		}
		_, err := s.actions.execute(ctx, id, label.ActionApplyLabel, label.Params{Label: label.YellowStar}, false)
		return err
	case label.ActionUnstar:
		if _, err := s.actions.execute(ctx, id, label.ActionRemoveLabel, label.Params{Label: label.Starred}, false); err != nil {
			return err
		}
		_, err := s.actions.execute(ctx, id, label.ActionRemoveLabel, label.Params{Label: label.YellowStar}, false)
		return err
	default:
		_, err := s.actions.execute(ctx, id, action, params, false)
		return err
	}
}

func (s *BulkActionServiceImpl) recordUndo(ctx context.Context, action label.Action, params label.Params, result *BulkResult, prevLabels map[int64]label.Set) {
	if s.undo == nil || action == label.ActionDeleteForever || len(result.Succeeded) == 0 {
		return
	}
	prev := make(map[int64]label.Set, len(result.Succeeded))
	for _, id := range result.Succeeded {
		if labels, ok := prevLabels[id]; ok {
			prev[id] = labels
		}
	}
	err := s.undo.RecordAction(ctx, &UndoableAction{
		Action:      action,
		Params:      params,
		EmailIDs:    append([]int64(nil), result.Succeeded...),
		PrevLabels:  prev,
		Description: fmt.Sprintf("%s on %d emails", action, len(result.Succeeded)),
		Timestamp:   time.Now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Printf("record bulk undo failed: %v", err)
	}
}
