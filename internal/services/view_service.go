package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/inboxd/inboxd/internal/label"
	"github.com/inboxd/inboxd/internal/store"
)

// DefaultPageSize is the window size used when a request does not set one.
const DefaultPageSize = 50

// DefaultMaxPageSize caps how large a single requested page may be.
const DefaultMaxPageSize = 1000

// categoryLabels lists the inbox tab categories, for primary-tab exclusion.
var categoryLabels = []string{
	label.CategorySocial,
	label.CategoryPromotions,
	label.CategoryUpdates,
	label.CategoryForums,
}

// ViewServiceImpl implements ViewService
type ViewServiceImpl struct {
	mailStore   MailStore
	cache       *StateCache
	pageSize    int
	maxPageSize int
	logger      *log.Logger // optional

	mu   sync.Mutex
	last ViewRequest // previous request, for filter-change page resets
}

// NewViewService creates a new view service
func NewViewService(mailStore MailStore, cache *StateCache, pageSize int) *ViewServiceImpl {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if cache == nil {
		cache = NewStateCache()
	}
	return &ViewServiceImpl{mailStore: mailStore, cache: cache, pageSize: pageSize, maxPageSize: DefaultMaxPageSize}
}

// SetMaxPageSize overrides the cap on requested page sizes.
func (s *ViewServiceImpl) SetMaxPageSize(n int) {
	if n > 0 {
		s.maxPageSize = n
	}
}

// SetLogger sets the logger for debug output
func (s *ViewServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// filterFor translates a view request into a store filter. Placement
// exclusivity keeps this simple: placement views need no exclusions, only
// flag views (starred, important, all) must keep trash and spam out.
func filterFor(req ViewRequest) (store.Filter, error) {
	f := store.Filter{Query: req.Query, Page: req.Page, PageSize: req.PageSize}

	switch req.Key {
	case label.ViewInbox:
		f.Labels = []string{label.Inbox}
		if cat, ok := label.CategoryForTab(req.Tab); ok {
			f.Labels = append(f.Labels, cat)
		} else if req.Tab == label.TabPrimary {
			// primary tab: inbox mail carrying no category
			f.ExcludeLabels = append(f.ExcludeLabels, categoryLabels...)
		}
		// no tab at all means the whole inbox, categories included
	case label.ViewStarred:
		f.Labels = []string{label.Starred}
		f.ExcludeLabels = []string{label.Trash, label.Spam}
	case label.ViewImportant:
		f.Labels = []string{label.Important}
		f.ExcludeLabels = []string{label.Trash, label.Spam}
	case label.ViewSent:
		f.Labels = []string{label.Sent}
	case label.ViewDraft:
		f.Labels = []string{label.Draft}
	case label.ViewSpam:
		f.Labels = []string{label.Spam}
	case label.ViewTrash:
		f.Labels = []string{label.Trash}
	case label.ViewAll:
		f.ExcludeLabels = []string{label.Trash, label.Spam}
	default:
		return store.Filter{}, fmt.Errorf("%w: unknown view %q", ErrInvalidPrecondition, req.Key)
	}
	return f, nil
}

// ListView returns one window of the requested view. Changing the view key,
// tab or query resets pagination to the first page; only an explicit page
// change within the same filter honors the requested page.
func (s *ViewServiceImpl) ListView(ctx context.Context, req ViewRequest) (*EmailPage, error) {
	if req.PageSize <= 0 {
		req.PageSize = s.pageSize
	}
	if req.PageSize > s.maxPageSize {
		req.PageSize = s.maxPageSize
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	s.mu.Lock()
	if req.Key != s.last.Key || req.Tab != s.last.Tab || req.Query != s.last.Query {
		req.Page = 1
	}
	s.last = req
	s.mu.Unlock()

	f, err := filterFor(req)
	if err != nil {
		return nil, err
	}

	page, err := s.mailStore.List(ctx, f)
	if err != nil {
		return nil, classifyStoreErr(err)
	}

	// A filter shrink can leave the requested page past the end; fall back
	// to the last page that still has content.
	if len(page.Emails) == 0 && page.TotalCount > 0 && req.Page > page.TotalPages {
		req.Page = page.TotalPages
		f.Page = req.Page
		s.mu.Lock()
		s.last = req
		s.mu.Unlock()
		page, err = s.mailStore.List(ctx, f)
		if err != nil {
			return nil, classifyStoreErr(err)
		}
	}

	s.cache.ReplaceAll(page.Emails)

	return &EmailPage{
		Emails:     page.Emails,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
	}, nil
}

// UnreadCount returns the unread total of a view, computed over the full
// filtered set, never just the loaded window.
func (s *ViewServiceImpl) UnreadCount(ctx context.Context, key label.ViewKey) (int, error) {
	f, err := filterFor(ViewRequest{Key: key})
	if err != nil {
		return 0, err
	}
	f.Labels = append(f.Labels, label.Unread)
	f.Page, f.PageSize = 1, 1

	page, err := s.mailStore.List(ctx, f)
	if err != nil {
		return 0, classifyStoreErr(err)
	}
	return page.TotalCount, nil
}

// Counts computes the sidebar counters in one pass: unread totals for the
// inbox and its tabs, spam unread, and the trash total.
func (s *ViewServiceImpl) Counts(ctx context.Context) (*ViewCounts, error) {
	counts := &ViewCounts{Tabs: make(map[label.Tab]int)}

	var err error
	if counts.Inbox, err = s.UnreadCount(ctx, label.ViewInbox); err != nil {
		return nil, err
	}
	if counts.Starred, err = s.UnreadCount(ctx, label.ViewStarred); err != nil {
		return nil, err
	}
	if counts.Spam, err = s.UnreadCount(ctx, label.ViewSpam); err != nil {
		return nil, err
	}

	trash, err := s.mailStore.List(ctx, store.Filter{Labels: []string{label.Trash}, Page: 1, PageSize: 1})
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	counts.Trash = trash.TotalCount

	for _, tab := range []label.Tab{label.TabPrimary, label.TabSocial, label.TabPromotions, label.TabUpdates, label.TabForums} {
		f, err := filterFor(ViewRequest{Key: label.ViewInbox, Tab: tab})
		if err != nil {
			return nil, err
		}
		f.Labels = append(f.Labels, label.Unread)
		f.Page, f.PageSize = 1, 1
		page, err := s.mailStore.List(ctx, f)
		if err != nil {
			return nil, classifyStoreErr(err)
		}
		counts.Tabs[tab] = page.TotalCount
	}

	return counts, nil
}
