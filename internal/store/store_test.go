package store

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/label"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "inboxd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesSchemaAndPerms(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "inboxd.db")

	s, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dbPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	var ver int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version;").Scan(&ver))
	assert.Equal(t, 1, ver)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Draft{
		Sender:       "alice@example.com",
		ToRecipients: "me@example.com",
		Subject:      "quarterly report",
		Body:         "attached",
		Labels:       label.NewSet(label.Inbox, label.Unread),
	})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.True(t, label.NewSet(label.Inbox, label.Unread).Equal(e.Labels))
	assert.False(t, e.Read())
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "quarterly report", got.Subject)
	assert.True(t, e.Labels.Equal(got.Labels))
}

func TestCreate_EmptyLabelsDefaultToDraft(t *testing.T) {
	s := openTestStore(t)

	e, err := s.Create(context.Background(), Draft{Subject: "wip"})
	require.NoError(t, err)
	assert.True(t, label.NewSet(label.Draft).Equal(e.Labels))
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByProviderRef(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, Draft{
		ProviderRef: "msg-abc",
		Subject:     "from gmail",
		Labels:      label.NewSet(label.Inbox),
	})
	require.NoError(t, err)

	got, err := s.GetByProviderRef(ctx, "msg-abc")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = s.GetByProviderRef(ctx, "msg-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByProviderRef(ctx, "")
	assert.Error(t, err)
}

func TestList_FiltersAndPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, Draft{Subject: "inbox mail", Labels: label.NewSet(label.Inbox, label.Unread)})
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, Draft{Subject: "archived mail", Labels: label.NewSet(label.All)})
	require.NoError(t, err)
	_, err = s.Create(ctx, Draft{Subject: "binned", Labels: label.NewSet(label.Trash)})
	require.NoError(t, err)

	page, err := s.List(ctx, Filter{Labels: []string{label.Inbox}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
	assert.Len(t, page.Emails, 3)

	// all labels in the filter must match
	page, err = s.List(ctx, Filter{Labels: []string{label.Inbox, label.Unread}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)

	page, err = s.List(ctx, Filter{Labels: []string{label.Trash}})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)

	// exclusion filters drop matching rows
	page, err = s.List(ctx, Filter{ExcludeLabels: []string{label.Trash, label.All}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)

	// pagination windows
	page, err = s.List(ctx, Filter{Labels: []string{label.Inbox}, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Emails, 2)
	assert.Equal(t, 2, page.TotalPages)

	page, err = s.List(ctx, Filter{Labels: []string{label.Inbox}, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Emails, 1)

	// past the last page: empty window, counts intact
	page, err = s.List(ctx, Filter{Labels: []string{label.Inbox}, Page: 5, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Emails)
	assert.Equal(t, 3, page.TotalCount)
}

func TestList_QueryIsCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, Draft{Sender: "Bob@Example.com", Subject: "Lunch Plans", Labels: label.NewSet(label.Inbox)})
	require.NoError(t, err)
	_, err = s.Create(ctx, Draft{Sender: "carol@example.com", Subject: "invoice", Labels: label.NewSet(label.Inbox)})
	require.NoError(t, err)

	page, err := s.List(ctx, Filter{Query: "lunch"})
	require.NoError(t, err)
	require.Len(t, page.Emails, 1)
	assert.Equal(t, "Lunch Plans", page.Emails[0].Subject)

	page, err = s.List(ctx, Filter{Query: "BOB"})
	require.NoError(t, err)
	assert.Len(t, page.Emails, 1)

	page, err = s.List(ctx, Filter{Query: "nothing-matches"})
	require.NoError(t, err)
	assert.Empty(t, page.Emails)
	assert.Equal(t, 0, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
}

func TestUpdate_AppliesTransition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Draft{Subject: "hi", Labels: label.NewSet(label.Inbox, label.Unread)})
	require.NoError(t, err)

	updated, err := s.Update(ctx, e.ID, label.ActionMarkRead, label.Params{})
	require.NoError(t, err)
	assert.True(t, label.NewSet(label.Inbox).Equal(updated.Labels))
	assert.True(t, updated.Read())

	updated, err = s.Update(ctx, e.ID, label.ActionMoveToTrash, label.Params{})
	require.NoError(t, err)
	assert.True(t, label.NewSet(label.Trash).Equal(updated.Labels))
}

func TestUpdate_DeleteForeverRemovesRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Draft{Subject: "gone", Labels: label.NewSet(label.Trash)})
	require.NoError(t, err)

	updated, err := s.Update(ctx, e.ID, label.ActionDeleteForever, label.Params{})
	require.NoError(t, err)
	assert.Nil(t, updated)

	_, err = s.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_InvalidTransition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Draft{Subject: "not trashed", Labels: label.NewSet(label.Inbox)})
	require.NoError(t, err)

	_, err = s.Update(ctx, e.ID, label.ActionRestoreFromTrash, label.Params{})
	assert.ErrorIs(t, err, label.ErrNotInTrash)

	// the row is untouched
	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, label.NewSet(label.Inbox).Equal(got.Labels))
}

func TestUpdate_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Update(context.Background(), 42, label.ActionStar, label.Params{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddRemoveLabel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Draft{Subject: "tagging", Labels: label.NewSet(label.Inbox)})
	require.NoError(t, err)

	updated, err := s.AddLabel(ctx, e.ID, label.Important)
	require.NoError(t, err)
	assert.True(t, updated.Labels.Has(label.Important))

	updated, err = s.RemoveLabel(ctx, e.ID, label.Important)
	require.NoError(t, err)
	assert.False(t, updated.Labels.Has(label.Important))
}

func TestSetLabels_RecordsSyncSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Draft{ProviderRef: "m1", Subject: "synced", Labels: label.NewSet(label.Inbox, label.Unread)})
	require.NoError(t, err)
	assert.Empty(t, e.LastSynced)

	merged := label.NewSet(label.Inbox)
	snapshot := label.NewSet(label.Inbox, label.Unread)
	updated, err := s.SetLabels(ctx, e.ID, merged, snapshot)
	require.NoError(t, err)
	assert.True(t, merged.Equal(updated.Labels))
	assert.True(t, snapshot.Equal(updated.LastSynced))
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Draft{Subject: "bye", Labels: label.NewSet(label.Trash)})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, e.ID))
	assert.ErrorIs(t, s.Delete(ctx, e.ID), ErrNotFound)
}
