package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/webseek/dbopen"
	"github.com/hazyhaar/webseek/platform"
	"github.com/hazyhaar/webseek/statestore"
)

// testManager builds a Manager over an in-memory store. No browser is
// launched: these tests only exercise paths that must work without one.
func testManager(t *testing.T) *Manager {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(statestore.Schema))
	return New(&statestore.Store{DB: db}, Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestCleanupIdempotent(t *testing.T) {
	m := testManager(t)

	if err := m.Cleanup(); err != nil {
		t.Fatalf("first Cleanup: %v", err)
	}
	if err := m.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}

func TestSetupUnknownPlatform(t *testing.T) {
	m := testManager(t)

	_, err := m.Setup(context.Background(), platform.Platform("myspace"), Options{})
	if err == nil {
		t.Fatal("Setup with unknown platform succeeded")
	}
	if !strings.Contains(err.Error(), "unknown platform") {
		t.Errorf("err = %v", err)
	}

	// A failed setup must not poison cleanup.
	if err := m.Cleanup(); err != nil {
		t.Fatalf("Cleanup after failed Setup: %v", err)
	}
}

func TestSetupAfterCleanup(t *testing.T) {
	m := testManager(t)
	if err := m.Cleanup(); err != nil {
		t.Fatal(err)
	}

	_, err := m.Setup(context.Background(), platform.Zhihu, Options{})
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("Setup after Cleanup: err = %v, want manager-closed error", err)
	}
}

func TestSaveStateWithoutSession(t *testing.T) {
	m := testManager(t)

	err := m.SaveState(context.Background(), platform.Zhihu)
	if err == nil {
		t.Fatal("SaveState without session succeeded")
	}
	if !strings.Contains(err.Error(), "Setup") {
		t.Errorf("error should point the caller at Setup: %v", err)
	}
}

func TestNoStateUntilFirstSave(t *testing.T) {
	// Setting up a persistent session must not create a state record on
	// its own; the store stays empty until the first save.
	m := testManager(t)

	infos, err := m.ListStates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Fatalf("fresh store lists %d states", len(infos))
	}
}

func TestClearStateWithoutSession(t *testing.T) {
	// Clearing operates on the store only; it needs no live session.
	m := testManager(t)
	if err := m.ClearState(context.Background(), platform.Wechat); err != nil {
		t.Fatalf("ClearState: %v", err)
	}
}

func TestAutosaveLoop(t *testing.T) {
	var calls atomic.Int64
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		autosaveLoop(5*time.Millisecond, stop, slog.New(slog.NewTextHandler(io.Discard, nil)),
			func(context.Context) error {
				calls.Add(1)
				return nil
			})
	}()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("autosave never fired")
		case <-time.After(time.Millisecond):
		}
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("autosave loop did not stop")
	}

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Fatal("autosave kept firing after stop")
	}
}

func TestCookieConversion(t *testing.T) {
	live := []*proto.NetworkCookie{
		{
			Name: "z_c0", Value: "tok", Domain: ".zhihu.com", Path: "/",
			Expires: 1893456000, HTTPOnly: true, Secure: true,
			SameSite: proto.NetworkCookieSameSiteLax,
		},
	}

	stored := storedCookies(live)
	if len(stored) != 1 {
		t.Fatalf("storedCookies = %d entries", len(stored))
	}
	if stored[0].SameSite != "Lax" {
		t.Errorf("SameSite = %q", stored[0].SameSite)
	}

	params := cookieParams(stored)
	if len(params) != 1 {
		t.Fatalf("cookieParams = %d entries", len(params))
	}
	p := params[0]
	if p.Name != "z_c0" || p.Value != "tok" || p.Domain != ".zhihu.com" || p.Path != "/" {
		t.Errorf("cookie fields lost: %+v", p)
	}
	if !p.HTTPOnly || !p.Secure {
		t.Errorf("cookie flags lost: %+v", p)
	}
	if float64(p.Expires) != 1893456000 {
		t.Errorf("Expires = %v", p.Expires)
	}
	if p.SameSite != proto.NetworkCookieSameSiteLax {
		t.Errorf("SameSite = %v", p.SameSite)
	}
}
