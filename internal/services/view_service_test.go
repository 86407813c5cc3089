package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/label"
)

func seedMailbox(ms *fakeMailStore) {
	// 3 primary inbox (2 unread), 2 social, 1 promotions (unread),
	// 1 starred archived, 1 spam (unread), 2 trash
	ms.seed(label.NewSet(label.Inbox, label.Unread), "primary one")
	ms.seed(label.NewSet(label.Inbox, label.Unread), "primary two")
	ms.seed(label.NewSet(label.Inbox), "primary three")
	ms.seed(label.NewSet(label.Inbox, label.CategorySocial), "social one")
	ms.seed(label.NewSet(label.Inbox, label.CategorySocial, label.Unread), "social two")
	ms.seed(label.NewSet(label.Inbox, label.CategoryPromotions, label.Unread), "promo")
	ms.seed(label.NewSet(label.All, label.Starred, label.YellowStar), "starred archive")
	ms.seed(label.NewSet(label.Spam, label.Unread), "spam")
	ms.seed(label.NewSet(label.Trash), "trash one")
	ms.seed(label.NewSet(label.Trash), "trash two")
}

func TestListView_Filtering(t *testing.T) {
	ms := newFakeMailStore()
	seedMailbox(ms)
	svc := NewViewService(ms, nil, 0)

	tests := []struct {
		name     string
		req      ViewRequest
		expected int
	}{
		{"primary_tab_excludes_categories", ViewRequest{Key: label.ViewInbox, Tab: label.TabPrimary}, 3},
		{"social_tab", ViewRequest{Key: label.ViewInbox, Tab: label.TabSocial}, 2},
		{"promotions_tab", ViewRequest{Key: label.ViewInbox, Tab: label.TabPromotions}, 1},
		{"whole_inbox_without_tab", ViewRequest{Key: label.ViewInbox}, 6},
		{"starred_excludes_trash_spam", ViewRequest{Key: label.ViewStarred}, 1},
		{"spam", ViewRequest{Key: label.ViewSpam}, 1},
		{"trash", ViewRequest{Key: label.ViewTrash}, 2},
		{"all_excludes_trash_spam", ViewRequest{Key: label.ViewAll}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListView(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, page.TotalCount, "view %s", tt.req.Key)
			assert.Len(t, page.Emails, tt.expected)
		})
	}
}

func TestListView_RequestedPageSizeCapped(t *testing.T) {
	ms := newFakeMailStore()
	for i := 0; i < 5; i++ {
		ms.seed(label.NewSet(label.Inbox), "mail")
	}
	svc := NewViewService(ms, nil, 0)
	svc.SetMaxPageSize(2)

	page, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, page.PageSize)
	assert.Len(t, page.Emails, 2)
	assert.Equal(t, 3, page.TotalPages)
}

func TestListView_UnknownView(t *testing.T) {
	svc := NewViewService(newFakeMailStore(), nil, 0)

	_, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewKey("outbox")})
	assert.ErrorIs(t, err, ErrInvalidPrecondition)
}

func TestListView_Pagination(t *testing.T) {
	ms := newFakeMailStore()
	for i := 0; i < 7; i++ {
		ms.seed(label.NewSet(label.Inbox), "mail")
	}
	svc := NewViewService(ms, nil, 3)

	page, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Emails, 3)
	assert.Equal(t, 7, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)

	page, err = svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Emails, 1)
}

// Changing the view or the query resets pagination to the first page.
func TestListView_FilterChangeResetsPage(t *testing.T) {
	ms := newFakeMailStore()
	for i := 0; i < 7; i++ {
		ms.seed(label.NewSet(label.Inbox), "inbox mail")
		ms.seed(label.NewSet(label.Trash), "trash mail")
	}
	svc := NewViewService(ms, nil, 3)

	_, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox, Page: 2})
	require.NoError(t, err)

	// same view, explicit page: honored
	page, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)

	// different view: back to page one
	page, err = svc.ListView(context.Background(), ViewRequest{Key: label.ViewTrash, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)

	// query change within the view: back to page one too
	_, err = svc.ListView(context.Background(), ViewRequest{Key: label.ViewTrash, Page: 2})
	require.NoError(t, err)
	page, err = svc.ListView(context.Background(), ViewRequest{Key: label.ViewTrash, Query: "mail", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
}

// When the filtered set shrinks under the current page, the coordinator
// falls back to the last page that still has content.
func TestListView_PagePastEndFallsBack(t *testing.T) {
	ms := newFakeMailStore()
	for i := 0; i < 4; i++ {
		ms.seed(label.NewSet(label.Inbox), "mail")
	}
	svc := NewViewService(ms, nil, 3)

	_, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox})
	require.NoError(t, err)

	page, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox, Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Emails, 1)
}

func TestListView_PopulatesCache(t *testing.T) {
	ms := newFakeMailStore()
	e := ms.seed(label.NewSet(label.Inbox), "cached")
	cache := NewStateCache()
	svc := NewViewService(ms, cache, 0)

	_, err := svc.ListView(context.Background(), ViewRequest{Key: label.ViewInbox})
	require.NoError(t, err)

	cached, ok := cache.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, "cached", cached.Subject)
}

// Counters come from the full filtered set, never just the loaded window.
func TestUnreadCount_IgnoresPageWindow(t *testing.T) {
	ms := newFakeMailStore()
	for i := 0; i < 60; i++ {
		ms.seed(label.NewSet(label.Inbox, label.Unread), "unread")
	}
	svc := NewViewService(ms, nil, 10)

	count, err := svc.UnreadCount(context.Background(), label.ViewInbox)
	require.NoError(t, err)
	assert.Equal(t, 60, count)
}

func TestCounts(t *testing.T) {
	ms := newFakeMailStore()
	seedMailbox(ms)
	svc := NewViewService(ms, nil, 0)

	counts, err := svc.Counts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, counts.Inbox) // unread across all tabs
	assert.Equal(t, 0, counts.Starred)
	assert.Equal(t, 1, counts.Spam)
	assert.Equal(t, 2, counts.Trash) // trash counts totals, not unread
	assert.Equal(t, 2, counts.Tabs[label.TabPrimary])
	assert.Equal(t, 1, counts.Tabs[label.TabSocial])
	assert.Equal(t, 1, counts.Tabs[label.TabPromotions])
	assert.Equal(t, 0, counts.Tabs[label.TabUpdates])
}
