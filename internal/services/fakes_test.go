package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/inboxd/inboxd/internal/gmail"
	"github.com/inboxd/inboxd/internal/label"
	"github.com/inboxd/inboxd/internal/store"
)

// fakeMailStore is an in-memory MailStore with per-call error injection.
type fakeMailStore struct {
	mu     sync.Mutex
	nextID int64
	emails map[int64]*store.Email

	updateErr      map[int64]error // injected failures for Update/AddLabel/RemoveLabel
	updateErrAfter map[int64]int   // successful updates allowed before updateErr fires
	listErr        error
}

func newFakeMailStore() *fakeMailStore {
	return &fakeMailStore{
		emails:         make(map[int64]*store.Email),
		updateErr:      make(map[int64]error),
		updateErrAfter: make(map[int64]int),
	}
}

func (f *fakeMailStore) seed(labels label.Set, subject string) *store.Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e := &store.Email{
		ID:         f.nextID,
		Subject:    subject,
		Labels:     labels.Clone(),
		LastSynced: label.NewSet(),
		ReceivedAt: time.Now(),
	}
	f.emails[e.ID] = e
	return e.Clone()
}

func (f *fakeMailStore) seedSynced(ref string, labels, lastSynced label.Set) *store.Email {
	e := f.seed(labels, "synced "+ref)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails[e.ID].ProviderRef = ref
	f.emails[e.ID].LastSynced = lastSynced.Clone()
	return f.emails[e.ID].Clone()
}

func (f *fakeMailStore) Create(ctx context.Context, draft store.Draft) (*store.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	labels := draft.Labels
	if len(labels) == 0 {
		labels = label.NewSet(label.Draft)
	}
	e := &store.Email{
		ID:            f.nextID,
		ProviderRef:   draft.ProviderRef,
		Sender:        draft.Sender,
		ToRecipients:  draft.ToRecipients,
		Subject:       draft.Subject,
		Body:          draft.Body,
		Labels:        labels.Clone(),
		LastSynced:    label.NewSet(),
		HasAttachment: draft.HasAttachment,
		ReceivedAt:    draft.ReceivedAt,
	}
	f.emails[e.ID] = e
	return e.Clone(), nil
}

func (f *fakeMailStore) Get(ctx context.Context, id int64) (*store.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.emails[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.Clone(), nil
}

func (f *fakeMailStore) GetByProviderRef(ctx context.Context, ref string) (*store.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emails {
		if e.ProviderRef == ref {
			return e.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeMailStore) List(ctx context.Context, filter store.Filter) (*store.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	var matched []*store.Email
	for _, e := range f.emails {
		if matchesFilter(e, filter) {
			matched = append(matched, e.Clone())
		}
	}
	// stable order for assertions
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			if matched[j].ID < matched[i].ID {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
	}

	page := &store.Page{
		TotalCount: len(matched),
		TotalPages: (len(matched) + filter.PageSize - 1) / filter.PageSize,
	}
	if page.TotalPages == 0 {
		page.TotalPages = 1
	}
	start := (filter.Page - 1) * filter.PageSize
	if start < len(matched) {
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page.Emails = matched[start:end]
	}
	return page, nil
}

func matchesFilter(e *store.Email, f store.Filter) bool {
	for _, l := range f.Labels {
		if !e.Labels.Has(l) {
			return false
		}
	}
	for _, l := range f.ExcludeLabels {
		if e.Labels.Has(l) {
			return false
		}
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(e.Subject), q) &&
			!strings.Contains(strings.ToLower(e.Sender), q) &&
			!strings.Contains(strings.ToLower(e.Body), q) {
			return false
		}
	}
	return true
}

func (f *fakeMailStore) Update(ctx context.Context, id int64, action label.Action, params label.Params) (*store.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.updateErr[id]; ok {
		if n := f.updateErrAfter[id]; n > 0 {
			f.updateErrAfter[id] = n - 1
		} else {
			return nil, err
		}
	}
	e, ok := f.emails[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out, err := label.Apply(e.Labels, action, params)
	if err != nil {
		return nil, err
	}
	if out.Delete {
		delete(f.emails, id)
		return nil, nil
	}
	e.Labels = out.Labels
	return e.Clone(), nil
}

func (f *fakeMailStore) AddLabel(ctx context.Context, id int64, name string) (*store.Email, error) {
	return f.Update(ctx, id, label.ActionApplyLabel, label.Params{Label: name})
}

func (f *fakeMailStore) RemoveLabel(ctx context.Context, id int64, name string) (*store.Email, error) {
	return f.Update(ctx, id, label.ActionRemoveLabel, label.Params{Label: name})
}

func (f *fakeMailStore) SetLabels(ctx context.Context, id int64, labels, lastSynced label.Set) (*store.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.emails[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	e.Labels = labels.Clone()
	if lastSynced != nil {
		e.LastSynced = lastSynced.Clone()
	}
	return e.Clone(), nil
}

func (f *fakeMailStore) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.emails[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.emails, id)
	return nil
}

// fakeProvider records the deltas pushed to it and serves canned snapshots.
type fakeProvider struct {
	mu        sync.Mutex
	snapshots map[string]label.Set
	messages  map[string][]*gmail.Message // per pull label
	deltas    []providerDelta
	deletes   []string
	applyErr  error
	listErr   error
}

type providerDelta struct {
	ref    string
	add    []string
	remove []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		snapshots: make(map[string]label.Set),
		messages:  make(map[string][]*gmail.Message),
	}
}

func (p *fakeProvider) FetchLabelSnapshot(ctx context.Context, ref string) (label.Set, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.snapshots[ref]; ok {
		return s.Clone(), nil
	}
	return label.NewSet(label.All), nil
}

func (p *fakeProvider) ApplyLabelDelta(ctx context.Context, ref string, add, remove []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applyErr != nil {
		return p.applyErr
	}
	p.deltas = append(p.deltas, providerDelta{ref: ref, add: add, remove: remove})
	return nil
}

func (p *fakeProvider) Delete(ctx context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, ref)
	return nil
}

func (p *fakeProvider) ListLabelMessages(ctx context.Context, labelName string, max int64) ([]*gmail.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.messages[labelName], nil
}
