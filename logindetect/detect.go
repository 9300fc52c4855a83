// Package logindetect classifies the authentication state of a live page.
//
// The classifier is a pure, stateless query: it evaluates the platform's
// ordered signal lists against the page and returns a Status. It never
// waits, never navigates, and caches nothing, because the page can change
// between calls. Callers that need to wait for a human to finish logging
// in loop over Detect with their own schedule; Await packages that loop
// with an explicit interval and context-driven cancellation.
package logindetect

import (
	"context"
	"strings"
	"time"

	"github.com/hazyhaar/webseek/platform"
)

// Status is the classified authentication state.
type Status int

const (
	// Unknown means the heuristics were inconclusive. Not an error: the
	// caller should navigate to a known URL and re-check.
	Unknown Status = iota
	LoggedIn
	LoggedOut
	// LoginPending means a login or QR prompt is visible and a human is
	// expected to act.
	LoginPending
)

func (s Status) String() string {
	switch s {
	case LoggedIn:
		return "logged_in"
	case LoggedOut:
		return "logged_out"
	case LoginPending:
		return "login_pending"
	default:
		return "unknown"
	}
}

// Page is the minimal live-page surface the detector probes. Implemented
// by *session.Session.
type Page interface {
	// CurrentURL returns the page's current URL.
	CurrentURL() string
	// Has reports whether a CSS selector matches at least one element.
	Has(ctx context.Context, selector string) (bool, error)
	// HasText reports whether the literal text appears in the page body.
	HasText(ctx context.Context, text string) (bool, error)
}

// Detect classifies the page's authentication state for a platform.
//
// Evaluation order: authenticated signals, then login-prompt signals, then
// the dedicated login-page URL patterns; a clean page then classifies as
// LoggedIn on login-free platforms and Unknown otherwise. Authenticated
// signals go first because they require authenticated-only elements and so
// misfire least on transitional pages. A probe that errors is skipped, not
// treated as a classification.
func Detect(ctx context.Context, page Page, prof platform.Profile) Status {
	if matchAny(ctx, page, prof.AuthSignals) {
		return LoggedIn
	}

	// Prompt signals are evaluated for every platform, login-free ones
	// included: a login-free platform can still throw a verification
	// prompt (Sogou's anti-spider captcha) that a human must clear.
	if matchAny(ctx, page, prof.PromptSignals) {
		return LoginPending
	}

	url := page.CurrentURL()
	for _, pat := range prof.LoginURLPatterns {
		if strings.Contains(url, pat) {
			return LoggedOut
		}
	}

	if !prof.RequiresLogin {
		return LoggedIn
	}
	return Unknown
}

func matchAny(ctx context.Context, page Page, signals []platform.Signal) bool {
	for _, sig := range signals {
		if ctx.Err() != nil {
			return false
		}
		switch sig.Kind {
		case platform.SignalURL:
			if strings.Contains(page.CurrentURL(), sig.Value) {
				return true
			}
		case platform.SignalSelector:
			if ok, err := page.Has(ctx, sig.Value); err == nil && ok {
				return true
			}
		case platform.SignalText:
			if ok, err := page.HasText(ctx, sig.Value); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// AwaitOptions bound the Await polling loop.
type AwaitOptions struct {
	// Want is the status to wait for. Default: LoggedIn.
	Want Status
	// Interval between checks. Default: 2s.
	Interval time.Duration
	// Timeout for the whole wait. Default: 5m. Ignored if the caller's
	// context expires first.
	Timeout time.Duration
}

func (o *AwaitOptions) defaults() {
	if o.Want == Unknown {
		o.Want = LoggedIn
	}
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Minute
	}
}

// Await polls Detect until the wanted status is observed or the deadline
// passes. It returns the last observed status; the error is non-nil only
// when the wait ended on cancellation or timeout.
func Await(ctx context.Context, page Page, prof platform.Profile, opts AwaitOptions) (Status, error) {
	opts.defaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	last := Detect(ctx, page, prof)
	for last != opts.Want {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
			last = Detect(ctx, page, prof)
		}
	}
	return last, nil
}
