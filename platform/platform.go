// Package platform is the static registry of supported target sites.
//
// Each platform bundles everything site-specific the rest of the system
// needs: base URL, login-page URL patterns, ordered login-state signals,
// the search URL shape, and result-card selectors. Adding a platform means
// adding one Profile to the table; no other package changes.
//
// Selectors and patterns are heuristics against markup the sites change
// without notice. They are data, not contracts.
package platform

import (
	"fmt"
	"net/url"
)

// Platform identifies one supported target site.
type Platform string

const (
	Zhihu   Platform = "zhihu"
	Wechat  Platform = "wechat"
	General Platform = "general"
)

// Parse maps a user-supplied string to a registered Platform.
func Parse(s string) (Platform, bool) {
	p := Platform(s)
	_, ok := profiles[p]
	return p, ok
}

// SignalKind says how a Signal's Value is evaluated against a live page.
type SignalKind int

const (
	// SignalURL matches when Value is a substring of the current URL.
	SignalURL SignalKind = iota
	// SignalSelector matches when a CSS selector finds at least one element.
	SignalSelector
	// SignalText matches when the literal text appears in the page body.
	SignalText
)

// Signal is one login-state heuristic. Signals are evaluated in slice
// order and the detector short-circuits on the first match.
type Signal struct {
	Kind  SignalKind
	Value string
}

// CardSelectors locate the pieces of one search-result card. Empty
// selectors mean the platform does not expose that field.
type CardSelectors struct {
	Card    string // one result card
	Title   string // title anchor, relative to the card; href is the link
	Author  string
	Votes   string
	Summary string
}

// Profile is everything the engine knows about one platform.
type Profile struct {
	Platform      Platform
	Name          string
	BaseURL       string
	RequiresLogin bool

	// LoginURLPatterns identify the dedicated login page by URL substring.
	LoginURLPatterns []string
	// AuthSignals indicate an authenticated session. Checked first: they
	// require authenticated-only page elements, so they are the least
	// likely to fire on a transitional page.
	AuthSignals []Signal
	// PromptSignals indicate a visible login or QR prompt.
	PromptSignals []Signal

	Cards CardSelectors

	searchURL func(query string, page int) string
}

// SearchURL builds the search endpoint for a query and a 1-based page index.
func (p Profile) SearchURL(query string, page int) string {
	if page < 1 {
		page = 1
	}
	return p.searchURL(query, page)
}

var profiles = map[Platform]Profile{
	Zhihu: {
		Platform:      Zhihu,
		Name:          "知乎",
		BaseURL:       "https://www.zhihu.com",
		RequiresLogin: true,
		LoginURLPatterns: []string{
			"www.zhihu.com/signin",
			"account.zhihu.com",
		},
		AuthSignals: []Signal{
			{SignalSelector, `[data-za-detail-view-id="1001"]`},
			{SignalSelector, `.AppHeader-userInfo .Avatar`},
		},
		PromptSignals: []Signal{
			{SignalSelector, `.Qrcode-img`},
			{SignalSelector, `.SignFlow`},
			{SignalText, "扫码登录"},
		},
		Cards: CardSelectors{
			Card:    ".Card.SearchResult-Card, .Card",
			Title:   ".ContentItem-title a, h2 a",
			Author:  ".AuthorInfo-name",
			Votes:   ".VoteButton--up",
			Summary: ".RichContent .RichText",
		},
		searchURL: func(query string, page int) string {
			return fmt.Sprintf("https://www.zhihu.com/search?q=%s&type=content&page=%d",
				url.QueryEscape(query), page)
		},
	},

	// WeChat official-account articles are reached through Sogou's WeChat
	// search. There is no account login; Sogou instead throttles with a
	// captcha page, which is modelled as the login prompt.
	Wechat: {
		Platform:      Wechat,
		Name:          "微信公众号",
		BaseURL:       "https://weixin.sogou.com",
		RequiresLogin: false,
		LoginURLPatterns: []string{
			"weixin.sogou.com/antispider",
		},
		PromptSignals: []Signal{
			{SignalSelector, ".verify-code"},
			{SignalSelector, "#seccodeImage"},
			{SignalText, "请输入验证码"},
		},
		Cards: CardSelectors{
			Card:    ".txt-box",
			Title:   "h3 a",
			Author:  ".s-p a.account",
			Summary: "p.txt-info",
		},
		searchURL: func(query string, page int) string {
			return fmt.Sprintf("https://weixin.sogou.com/weixin?type=2&query=%s&page=%d",
				url.QueryEscape(query), page)
		},
	},

	General: {
		Platform:      General,
		Name:          "通用",
		BaseURL:       "https://www.bing.com",
		RequiresLogin: false,
		Cards: CardSelectors{
			Card:    "li.b_algo",
			Title:   "h2 a",
			Summary: ".b_caption p",
		},
		searchURL: func(query string, page int) string {
			return fmt.Sprintf("https://www.bing.com/search?q=%s&first=%d",
				url.QueryEscape(query), (page-1)*10+1)
		},
	},
}

// Describe returns the profile for a platform.
func Describe(p Platform) (Profile, bool) {
	prof, ok := profiles[p]
	return prof, ok
}

// All returns every registered profile.
func All() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range []Platform{Zhihu, Wechat, General} {
		out = append(out, profiles[p])
	}
	return out
}
