// Package statestore persists per-platform browser session state: the
// cookie jar and a local/session-storage snapshot, stamped with a save
// time. One row per platform; a save replaces the whole row in a single
// upsert, so readers never observe a partially written record.
package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/webseek/dbopen"
	"github.com/hazyhaar/webseek/platform"
)

// Schema for the session_state table.
const Schema = `
CREATE TABLE IF NOT EXISTS session_state (
	platform        TEXT PRIMARY KEY,
	cookies         TEXT NOT NULL DEFAULT '[]',
	local_storage   TEXT NOT NULL DEFAULT '{}',
	session_storage TEXT NOT NULL DEFAULT '{}',
	saved_at        INTEGER NOT NULL
);
`

// Cookie is one browser cookie in storable form.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds; 0 = session cookie
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// State is the persisted session artifact for one platform.
type State struct {
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
	SavedAt        time.Time         `json:"saved_at"`
}

// Info summarises one stored record for listing.
type Info struct {
	Platform          platform.Platform `json:"platform"`
	SavedAt           time.Time         `json:"saved_at"`
	CookieCount       int               `json:"cookie_count"`
	LocalStorageCount int               `json:"local_storage_count"`
}

// Store is the SQLite-backed state store.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the state database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Save overwrites the stored state for a platform. The write is a single
// statement, so a concurrent Load or List sees either the old record or
// the new one, never a mix.
func (s *Store) Save(ctx context.Context, p platform.Platform, st State) error {
	cookies, err := json.Marshal(st.Cookies)
	if err != nil {
		return fmt.Errorf("statestore: marshal cookies: %w", err)
	}
	local, err := json.Marshal(emptyMap(st.LocalStorage))
	if err != nil {
		return fmt.Errorf("statestore: marshal local storage: %w", err)
	}
	session, err := json.Marshal(emptyMap(st.SessionStorage))
	if err != nil {
		return fmt.Errorf("statestore: marshal session storage: %w", err)
	}

	savedAt := st.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO session_state (platform, cookies, local_storage, session_storage, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET
			cookies = excluded.cookies,
			local_storage = excluded.local_storage,
			session_storage = excluded.session_storage,
			saved_at = excluded.saved_at
	`, string(p), string(cookies), string(local), string(session), savedAt.Unix())
	if err != nil {
		return fmt.Errorf("statestore: save %s: %w", p, err)
	}
	return nil
}

// Load reads the stored state for a platform. A missing record is a normal
// first-run condition and is reported via ok=false, not an error.
func (s *Store) Load(ctx context.Context, p platform.Platform) (State, bool, error) {
	var (
		cookies, local, session string
		savedAt                 int64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT cookies, local_storage, session_storage, saved_at
		FROM session_state WHERE platform = ?
	`, string(p)).Scan(&cookies, &local, &session, &savedAt)
	if err == sql.ErrNoRows {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("statestore: load %s: %w", p, err)
	}

	var st State
	if err := json.Unmarshal([]byte(cookies), &st.Cookies); err != nil {
		return State{}, false, fmt.Errorf("statestore: decode cookies for %s: %w", p, err)
	}
	if err := json.Unmarshal([]byte(local), &st.LocalStorage); err != nil {
		return State{}, false, fmt.Errorf("statestore: decode local storage for %s: %w", p, err)
	}
	if err := json.Unmarshal([]byte(session), &st.SessionStorage); err != nil {
		return State{}, false, fmt.Errorf("statestore: decode session storage for %s: %w", p, err)
	}
	st.SavedAt = time.Unix(savedAt, 0)
	return st, true, nil
}

// List summarises every stored record, most recently saved first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT platform, cookies, local_storage, saved_at
		FROM session_state ORDER BY saved_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("statestore: list: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			p, cookies, local string
			savedAt           int64
		)
		if err := rows.Scan(&p, &cookies, &local, &savedAt); err != nil {
			return nil, fmt.Errorf("statestore: list scan: %w", err)
		}

		var cs []Cookie
		if err := json.Unmarshal([]byte(cookies), &cs); err != nil {
			return nil, fmt.Errorf("statestore: decode cookies for %s: %w", p, err)
		}
		var ls map[string]string
		if err := json.Unmarshal([]byte(local), &ls); err != nil {
			return nil, fmt.Errorf("statestore: decode local storage for %s: %w", p, err)
		}

		infos = append(infos, Info{
			Platform:          platform.Platform(p),
			SavedAt:           time.Unix(savedAt, 0),
			CookieCount:       len(cs),
			LocalStorageCount: len(ls),
		})
	}
	return infos, rows.Err()
}

// Clear deletes the stored state for a platform. Clearing a platform that
// has no record is a no-op.
func (s *Store) Clear(ctx context.Context, p platform.Platform) error {
	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM session_state WHERE platform = ?`, string(p)); err != nil {
		return fmt.Errorf("statestore: clear %s: %w", p, err)
	}
	return nil
}

func emptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
