package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inboxd/inboxd/internal/label"
)

// ErrNotFound is returned when the targeted email no longer exists.
var ErrNotFound = errors.New("email not found")

// Store persists emails in a SQLite database. Label sets are serialized as
// JSON arrays exactly once, at this boundary.
type Store struct {
	db *sql.DB
}

// Open opens (and creates/migrates) the database at the given path
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	// Ensure file exists with strict perms
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		f, err := os.OpenFile(dbPath, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create database file: %w", err)
		}
		f.Close()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys=ON;")
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=5000;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	// user_version based migrations
	var ver int
	_ = s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&ver)

	// v1: emails table
	if ver == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS emails (
  id                 INTEGER PRIMARY KEY AUTOINCREMENT,
  provider_ref       TEXT NOT NULL DEFAULT '',
  sender             TEXT NOT NULL DEFAULT '',
  to_recipients      TEXT NOT NULL DEFAULT '',
  subject            TEXT NOT NULL DEFAULT '',
  body               TEXT NOT NULL DEFAULT '',
  labels             TEXT NOT NULL DEFAULT '[]',
  last_synced_labels TEXT NOT NULL DEFAULT '[]',
  has_attachment     INTEGER NOT NULL DEFAULT 0,
  created_at         INTEGER NOT NULL,
  updated_at         INTEGER NOT NULL,
  received_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emails_provider_ref ON emails(provider_ref);
`)
		if err == nil {
			_, err = tx.ExecContext(ctx, "PRAGMA user_version=1;")
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate v1: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		ver = 1
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const emailColumns = `id, provider_ref, sender, to_recipients, subject, body,
labels, last_synced_labels, has_attachment, created_at, updated_at, received_at`

func scanEmail(row interface{ Scan(...any) error }) (*Email, error) {
	var (
		e                       Email
		labelsJSON, syncedJSON  string
		created, updated, recvd int64
	)
	err := row.Scan(&e.ID, &e.ProviderRef, &e.Sender, &e.ToRecipients, &e.Subject, &e.Body,
		&labelsJSON, &syncedJSON, &e.HasAttachment, &created, &updated, &recvd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan email: %w", err)
	}
	if err := json.Unmarshal([]byte(labelsJSON), &e.Labels); err != nil {
		// A corrupted labels column must not take the whole listing down.
		e.Labels = label.NewSet()
	}
	if err := json.Unmarshal([]byte(syncedJSON), &e.LastSynced); err != nil {
		e.LastSynced = label.NewSet()
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	e.UpdatedAt = time.Unix(updated, 0).UTC()
	e.ReceivedAt = time.Unix(recvd, 0).UTC()
	return &e, nil
}

func marshalLabels(s label.Set) (string, error) {
	if s == nil {
		s = label.NewSet()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal labels: %w", err)
	}
	return string(data), nil
}

// Create inserts a new email. Empty label sets default to a draft placement.
func (s *Store) Create(ctx context.Context, draft Draft) (*Email, error) {
	labels := draft.Labels
	if len(labels) == 0 {
		labels = label.NewSet(label.Draft)
	}
	labelsJSON, err := marshalLabels(labels)
	if err != nil {
		return nil, err
	}
	syncedJSON, err := marshalLabels(nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	received := draft.ReceivedAt
	if received.IsZero() {
		received = now
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO emails (provider_ref, sender, to_recipients, subject, body,
  labels, last_synced_labels, has_attachment, created_at, updated_at, received_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draft.ProviderRef, draft.Sender, draft.ToRecipients, draft.Subject, draft.Body,
		labelsJSON, syncedJSON, draft.HasAttachment, now.Unix(), now.Unix(), received.Unix())
	if err != nil {
		return nil, fmt.Errorf("create email: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create email id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a single email by id.
func (s *Store) Get(ctx context.Context, id int64) (*Email, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	return scanEmail(row)
}

// GetByProviderRef fetches the email imported from the given provider id.
func (s *Store) GetByProviderRef(ctx context.Context, ref string) (*Email, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("provider ref cannot be empty")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE provider_ref = ?`, ref)
	return scanEmail(row)
}

// List returns a filtered, paginated listing ordered newest first.
func (s *Store) List(ctx context.Context, f Filter) (*Page, error) {
	if f.PageSize <= 0 {
		f.PageSize = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	var (
		where []string
		args  []any
	)
	for _, l := range f.Labels {
		// Labels are stored as a JSON array of quoted tokens.
		where = append(where, `labels LIKE ?`)
		args = append(args, `%"`+l+`"%`)
	}
	for _, l := range f.ExcludeLabels {
		where = append(where, `labels NOT LIKE ?`)
		args = append(args, `%"`+l+`"%`)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, `(LOWER(subject) LIKE ? OR LOWER(sender) LIKE ? OR LOWER(body) LIKE ?)`)
		pattern := "%" + strings.ToLower(q) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emails`+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count emails: %w", err)
	}

	offset := (f.Page - 1) * f.PageSize
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails`+clause+` ORDER BY received_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, f.PageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	page := &Page{TotalCount: total, TotalPages: (total + f.PageSize - 1) / f.PageSize}
	if page.TotalPages == 0 {
		page.TotalPages = 1
	}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		page.Emails = append(page.Emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return page, nil
}

// Update applies a named transition server-side and returns the updated
// email. delete_forever removes the row and returns (nil, nil).
func (s *Store) Update(ctx context.Context, id int64, action label.Action, params label.Params) (*Email, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	out, err := label.Apply(e.Labels, action, params)
	if err != nil {
		return nil, err
	}
	if out.Delete {
		return nil, s.Delete(ctx, id)
	}
	return s.writeLabels(ctx, id, out.Labels, nil)
}

// AddLabel adds a single label to an email.
func (s *Store) AddLabel(ctx context.Context, id int64, name string) (*Email, error) {
	return s.Update(ctx, id, label.ActionApplyLabel, label.Params{Label: name})
}

// RemoveLabel removes a single label from an email.
func (s *Store) RemoveLabel(ctx context.Context, id int64, name string) (*Email, error) {
	return s.Update(ctx, id, label.ActionRemoveLabel, label.Params{Label: name})
}

// SetLabels overwrites the label set directly, bypassing the transition
// table. Reserved for sync reconciliation, which also records the provider
// snapshot it merged against.
func (s *Store) SetLabels(ctx context.Context, id int64, labels, lastSynced label.Set) (*Email, error) {
	return s.writeLabels(ctx, id, labels, lastSynced)
}

func (s *Store) writeLabels(ctx context.Context, id int64, labels, lastSynced label.Set) (*Email, error) {
	labelsJSON, err := marshalLabels(labels)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Unix()
	var res sql.Result
	if lastSynced != nil {
		syncedJSON, err := marshalLabels(lastSynced)
		if err != nil {
			return nil, err
		}
		res, err = s.db.ExecContext(ctx,
			`UPDATE emails SET labels = ?, last_synced_labels = ?, updated_at = ? WHERE id = ?`,
			labelsJSON, syncedJSON, now, id)
		if err != nil {
			return nil, fmt.Errorf("update email labels: %w", err)
		}
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE emails SET labels = ?, updated_at = ? WHERE id = ?`, labelsJSON, now, id)
		if err != nil {
			return nil, fmt.Errorf("update email labels: %w", err)
		}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete permanently removes an email.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM emails WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete email: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
