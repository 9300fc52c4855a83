// Package session owns the live browser side of webseek: one shared Chrome
// process, one incognito context per platform, and the persistence dance
// between those contexts and the state store.
//
// Concurrency contract: the manager's own API is safe for concurrent use,
// but operations that drive a single platform's page (navigate, search)
// must be serialized by the caller: at most one foreground operation per
// session at a time. The background autosave only reads cookies and
// storage, so it may overlap anything.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/webseek/platform"
	"github.com/hazyhaar/webseek/statestore"
)

// Manager owns the browser process and the per-platform sessions.
type Manager struct {
	cfg   Config
	store *statestore.Store

	mu       sync.Mutex
	browser  *rod.Browser
	lnch     *launcher.Launcher
	sessions map[platform.Platform]*Session
	closed   bool
}

// New creates a Manager. Chrome is launched lazily on the first Setup.
func New(store *statestore.Store, cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:      cfg,
		store:    store,
		sessions: make(map[platform.Platform]*Session),
	}
}

// Setup ensures a live session exists for the platform. When
// opts.Persistent is set and the store holds state for the platform, the
// fresh context is seeded with those cookies before first navigation and
// the storage snapshot is replayed after it. Calling Setup for a platform
// that already has a session returns the existing one.
func (m *Manager) Setup(ctx context.Context, p platform.Platform, opts Options) (*Session, error) {
	opts.applyDefaults()

	prof, ok := platform.Describe(p)
	if !ok {
		return nil, fmt.Errorf("session: unknown platform %q", p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("session: manager is closed")
	}
	if s, ok := m.sessions[p]; ok {
		return s, nil
	}

	if err := m.ensureBrowserLocked(); err != nil {
		return nil, err
	}

	// Each platform gets its own incognito context: independent cookie
	// jar and storage, no cross-platform leakage.
	inc, err := m.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("session: incognito context for %s: %w", p, err)
	}

	page, err := stealth.Page(inc)
	if err != nil {
		return nil, fmt.Errorf("session: stealth page for %s: %w", p, err)
	}

	s := &Session{
		Profile:    prof,
		page:       page,
		persistent: opts.Persistent,
		navTimeout: m.cfg.NavTimeout,
		logger:     m.cfg.Logger,
	}

	if err := m.seedSessionLocked(ctx, s, opts); err != nil {
		page.Close()
		return nil, err
	}

	if opts.AutoSave {
		s.autosaveStop = make(chan struct{})
		s.autosaveDone = make(chan struct{})
		go func() {
			defer close(s.autosaveDone)
			autosaveLoop(opts.AutoSaveInterval, s.autosaveStop, m.cfg.Logger, func(ctx context.Context) error {
				return m.SaveState(ctx, p)
			})
		}()
		m.cfg.Logger.Info("session: autosave started",
			"platform", p, "interval", opts.AutoSaveInterval)
	}

	m.sessions[p] = s
	m.cfg.Logger.Info("session: ready",
		"platform", p, "persistent", opts.Persistent)
	return s, nil
}

// seedSessionLocked restores persisted state (if requested and present)
// and lands the page on the platform's base URL.
func (m *Manager) seedSessionLocked(ctx context.Context, s *Session, opts Options) error {
	var saved statestore.State
	var restore bool

	if opts.Persistent {
		st, ok, err := m.store.Load(ctx, s.Profile.Platform)
		if err != nil {
			return err
		}
		// A store miss is the normal first run: continue unauthenticated.
		if ok {
			saved, restore = st, true
		}
	}

	if restore && len(saved.Cookies) > 0 {
		if err := s.page.SetCookies(cookieParams(saved.Cookies)); err != nil {
			return fmt.Errorf("session: restore cookies for %s: %w", s.Profile.Platform, err)
		}
	}

	if err := s.Navigate(ctx, s.Profile.BaseURL); err != nil {
		return err
	}

	// Web storage is origin-bound, so it can only be replayed once the
	// base URL is loaded.
	if restore {
		s.restoreStorage(ctx, saved.LocalStorage, saved.SessionStorage)
		m.cfg.Logger.Info("session: state restored",
			"platform", s.Profile.Platform,
			"cookies", len(saved.Cookies),
			"local_storage", len(saved.LocalStorage))
	}
	return nil
}

// Get returns the live session for a platform, if one exists.
func (m *Manager) Get(p platform.Platform) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[p]
	return s, ok
}

// SaveState snapshots the live context's cookies and web storage and
// overwrites the stored record for the platform. It only reads page
// state, so it is safe to call while a navigation is in flight.
func (m *Manager) SaveState(ctx context.Context, p platform.Platform) error {
	s, ok := m.Get(p)
	if !ok {
		return fmt.Errorf("session: no session for %s; call Setup first", p)
	}

	st, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, p, st); err != nil {
		return err
	}
	m.cfg.Logger.Debug("session: state saved",
		"platform", p, "cookies", len(st.Cookies))
	return nil
}

// ListStates summarises all persisted session records.
func (m *Manager) ListStates(ctx context.Context) ([]statestore.Info, error) {
	return m.store.List(ctx)
}

// ClearState deletes the persisted record for a platform. The live
// session, if any, keeps running; only the on-disk state is removed.
func (m *Manager) ClearState(ctx context.Context, p platform.Platform) error {
	return m.store.Clear(ctx, p)
}

// Cleanup stops autosave loops, persists final state for persistent
// sessions, and shuts the browser down. Idempotent; safe after a partial
// or failed Setup; never returns an error for having nothing to do.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = map[platform.Platform]*Session{}
	browser, lnch := m.browser, m.lnch
	m.browser, m.lnch = nil, nil
	m.mu.Unlock()

	for p, s := range sessions {
		// Stop the autosave loop before touching the context so a save
		// never races the close.
		s.stopAutosave()

		if s.persistent {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if st, err := s.snapshot(ctx); err == nil {
				if err := m.store.Save(ctx, p, st); err != nil {
					m.cfg.Logger.Warn("session: final save failed", "platform", p, "error", err)
				}
			} else {
				m.cfg.Logger.Warn("session: final snapshot failed", "platform", p, "error", err)
			}
			cancel()
		}
		s.close()
	}

	if browser != nil {
		browser.Close()
	}
	if lnch != nil {
		lnch.Cleanup()
	}
	m.cfg.Logger.Info("session: cleaned up", "sessions", len(sessions))
	return nil
}

func (m *Manager) ensureBrowserLocked() error {
	if m.browser != nil {
		return nil
	}

	var wsURL string
	if m.cfg.Remote != "" {
		wsURL = m.cfg.Remote
		m.cfg.Logger.Info("session: connecting to remote browser", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled").
			Set("no-first-run").
			Set("no-default-browser-check")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("session: launch chrome: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.cfg.Logger.Info("session: launched chrome",
			"headless", m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("session: connect: %w", err)
	}
	m.browser = b
	return nil
}
