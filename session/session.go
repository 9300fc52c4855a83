package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/webseek/platform"
	"github.com/hazyhaar/webseek/statestore"
)

// Session is one live browser context bound to a platform. It satisfies
// the page interfaces of logindetect and crawl.
type Session struct {
	Profile platform.Profile

	page       *rod.Page
	persistent bool
	navTimeout time.Duration
	logger     *slog.Logger

	autosaveStop chan struct{}
	autosaveDone chan struct{}
}

// Navigate loads a URL in the session's page and waits for the load
// event. Every step is bounded by the configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.navTimeout)

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("session: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		// Slow pages keep loading subresources long after the content is
		// usable; log and carry on.
		s.logger.Warn("session: wait load timed out", "url", url, "error", err)
	}
	return nil
}

// CurrentURL returns the page's current URL, or "" when the page is gone.
func (s *Session) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// HTML returns the serialised DOM.
func (s *Session) HTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Timeout(s.navTimeout).
		Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("session: read dom: %w", err)
	}
	return res.Value.Str(), nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Timeout(s.navTimeout).
		Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("session: read title: %w", err)
	}
	return res.Value.Str(), nil
}

// Has reports whether a CSS selector currently matches. It checks once,
// without waiting for the element to appear.
func (s *Session) Has(ctx context.Context, selector string) (bool, error) {
	ok, _, err := s.page.Context(ctx).Timeout(s.navTimeout).Has(selector)
	if err != nil {
		return false, fmt.Errorf("session: probe %q: %w", selector, err)
	}
	return ok, nil
}

// HasText reports whether the literal text is visible in the page body.
func (s *Session) HasText(ctx context.Context, text string) (bool, error) {
	res, err := s.page.Context(ctx).Timeout(s.navTimeout).
		Eval(`(t) => document.body ? document.body.innerText.includes(t) : false`, text)
	if err != nil {
		return false, fmt.Errorf("session: text probe: %w", err)
	}
	return res.Value.Bool(), nil
}

// snapshot reads cookies and web storage from the live context into a
// storable State. Read-only with respect to the page.
func (s *Session) snapshot(ctx context.Context) (statestore.State, error) {
	page := s.page.Context(ctx)

	cookiesRes, err := proto.NetworkGetCookies{}.Call(page)
	if err != nil {
		return statestore.State{}, fmt.Errorf("session: get cookies: %w", err)
	}

	st := statestore.State{
		Cookies:        storedCookies(cookiesRes.Cookies),
		LocalStorage:   s.snapshotStorage(ctx, "localStorage"),
		SessionStorage: s.snapshotStorage(ctx, "sessionStorage"),
		SavedAt:        time.Now(),
	}
	return st, nil
}

// snapshotStorage serialises one web-storage area. Storage access can be
// denied on opaque origins; that degrades to an empty snapshot rather
// than failing the save.
func (s *Session) snapshotStorage(ctx context.Context, area string) map[string]string {
	res, err := s.page.Context(ctx).Eval(fmt.Sprintf(`() => {
		try {
			const out = {};
			for (let i = 0; i < %s.length; i++) {
				const k = %s.key(i);
				out[k] = %s.getItem(k);
			}
			return JSON.stringify(out);
		} catch (e) {
			return "{}";
		}
	}`, area, area, area))
	if err != nil {
		s.logger.Debug("session: storage snapshot failed", "area", area, "error", err)
		return map[string]string{}
	}

	out := map[string]string{}
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// restoreStorage replays storage snapshots into the current origin.
// Best-effort: a rejected setItem loses that key, not the session.
func (s *Session) restoreStorage(ctx context.Context, local, sess map[string]string) {
	replay := func(area string, items map[string]string) {
		if len(items) == 0 {
			return
		}
		data, err := json.Marshal(items)
		if err != nil {
			return
		}
		_, err = s.page.Context(ctx).Eval(fmt.Sprintf(`(data) => {
			try {
				const items = JSON.parse(data);
				for (const [k, v] of Object.entries(items)) {
					%s.setItem(k, v);
				}
			} catch (e) {}
		}`, area), string(data))
		if err != nil {
			s.logger.Debug("session: storage restore failed", "area", area, "error", err)
		}
	}
	replay("localStorage", local)
	replay("sessionStorage", sess)
}

func (s *Session) stopAutosave() {
	if s.autosaveStop == nil {
		return
	}
	close(s.autosaveStop)
	<-s.autosaveDone
	s.autosaveStop = nil
}

func (s *Session) close() {
	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
}

// cookieParams converts stored cookies to the CDP set-cookie form.
func cookieParams(cookies []statestore.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	return params
}

// storedCookies converts live CDP cookies to the storable form.
func storedCookies(cookies []*proto.NetworkCookie) []statestore.Cookie {
	out := make([]statestore.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, statestore.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}
