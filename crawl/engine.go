// Package crawl drives bounded, paginated searches through a live
// platform session and reads individual pages in full.
//
// The engine never owns the session: it drives whatever Pager it is
// given, one foreground operation at a time (caller discipline, see the
// session package). It never retries navigation on its own: re-issuing a
// search resubmits it, and only the caller can judge whether that is safe.
package crawl

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/webseek/extract"
	"github.com/hazyhaar/webseek/platform"
)

// Pager is the slice of a live session the engine needs. Implemented by
// *session.Session.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL() string
	HTML(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// Result is one qualifying search hit.
type Result struct {
	Title     string  `json:"title"`
	Author    string  `json:"author,omitempty"`
	URL       string  `json:"url"`
	Summary   string  `json:"summary,omitempty"`
	VoteCount int     `json:"vote_count"`
	Relevance float64 `json:"relevance_score"`
}

// Outcome aggregates one search invocation.
//
// Invariant: FilteredResults == len(Links) == len(Results), Links holds
// first-seen order and contains no duplicate URL.
type Outcome struct {
	Query           string   `json:"query"`
	TotalResults    int      `json:"total_results"`
	FilteredResults int      `json:"filtered_results"`
	Links           []string `json:"links"`
	Results         []Result `json:"results"`
	PagesFetched    int      `json:"pages_fetched"`
	// Partial is set when a page navigation failed mid-crawl and the
	// outcome holds only what was collected before the failure.
	Partial bool `json:"partial,omitempty"`
}

// PageContent is the readable content of one fetched page.
type PageContent struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	TextLength int    `json:"text_length"`
	Text       string `json:"text_content"`
}

// Options tunes an Engine.
type Options struct {
	// MaxPages caps pagination when Search is called with maxPages <= 0.
	// Default: 3.
	MaxPages int
	// MinRelevance is the default score threshold. Default: 0.5.
	MinRelevance float64
	// RatePerSecond paces page navigations. Default: 1.
	RatePerSecond float64
	// Scorer computes relevance. Default: DefaultScorer.
	Scorer Scorer

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if o.MinRelevance <= 0 {
		o.MinRelevance = 0.5
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 1
	}
	if o.Scorer == nil {
		o.Scorer = DefaultScorer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Engine runs searches against one platform profile through one session.
type Engine struct {
	pager   Pager
	prof    platform.Profile
	opts    Options
	limiter *rate.Limiter
}

// New creates an Engine over a live session's pager.
func New(pager Pager, prof platform.Profile, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		pager:   pager,
		prof:    prof,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
	}
}

// Search pages through the platform's results for query, scores and
// filters the cards, and returns the deduplicated survivors.
//
// maxPages <= 0 and minRelevance < 0 select the engine's configured
// defaults; minRelevance == 0 keeps every card.
//
// Termination, in priority order: maxPages reached; a page contributes
// zero new qualifying results (end of the useful result set); a page
// fails to load (partial outcome, logged, not an error).
func (e *Engine) Search(ctx context.Context, query string, maxPages int, minRelevance float64) (*Outcome, error) {
	if e.pager == nil {
		return nil, fmt.Errorf("crawl: no session; set up a browser session first")
	}
	if query == "" {
		return nil, fmt.Errorf("crawl: empty query")
	}
	if maxPages <= 0 {
		maxPages = e.opts.MaxPages
	}
	// Zero is a real threshold (keep everything); negative means "use the
	// configured default".
	if minRelevance < 0 {
		minRelevance = e.opts.MinRelevance
	}
	if minRelevance > 1 {
		minRelevance = 1
	}

	out := &Outcome{Query: query, Links: []string{}, Results: []Result{}}
	seen := make(map[string]bool)

	for pageNo := 1; pageNo <= maxPages; pageNo++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return out, fmt.Errorf("crawl: rate wait: %w", err)
		}

		pageURL := e.prof.SearchURL(query, pageNo)
		if err := e.pager.Navigate(ctx, pageURL); err != nil {
			e.opts.Logger.Warn("crawl: page load failed, returning partial results",
				"page", pageNo, "url", pageURL, "error", err)
			out.Partial = true
			break
		}
		out.PagesFetched++

		rawHTML, err := e.pager.HTML(ctx)
		if err != nil {
			e.opts.Logger.Warn("crawl: dom read failed, returning partial results",
				"page", pageNo, "error", err)
			out.Partial = true
			break
		}

		cards, err := parseCards(rawHTML, e.prof)
		if err != nil {
			e.opts.Logger.Warn("crawl: card parse failed, returning partial results",
				"page", pageNo, "error", err)
			out.Partial = true
			break
		}
		out.TotalResults += len(cards)

		kept := 0
		for _, c := range cards {
			c.Relevance = e.opts.Scorer(query, c)
			if c.Relevance < minRelevance {
				continue
			}
			if c.URL == "" || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			out.Results = append(out.Results, c)
			out.Links = append(out.Links, c.URL)
			kept++
		}

		e.opts.Logger.Debug("crawl: page done",
			"page", pageNo, "cards", len(cards), "kept", kept)

		// A page that adds nothing new marks the end of the useful
		// result set, whether it was empty or all noise and repeats.
		if kept == 0 {
			break
		}
	}

	out.FilteredResults = len(out.Results)
	return out, nil
}

// ReadPage navigates to url in the engine's session and extracts the
// page's title and main text.
func (e *Engine) ReadPage(ctx context.Context, url string) (*PageContent, error) {
	if e.pager == nil {
		return nil, fmt.Errorf("crawl: no session; set up a browser session first")
	}
	if url == "" {
		return nil, fmt.Errorf("crawl: empty url")
	}

	if err := e.pager.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("crawl: read page: %w", err)
	}

	rawHTML, err := e.pager.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawl: read page: %w", err)
	}

	res, err := extract.Main(rawHTML)
	if err != nil {
		return nil, fmt.Errorf("crawl: extract %s: %w", url, err)
	}

	title := res.Title
	if title == "" {
		// Dynamic pages sometimes set the title after the DOM snapshot.
		if t, err := e.pager.Title(ctx); err == nil {
			title = t
		}
	}

	return &PageContent{
		URL:        url,
		Title:      title,
		TextLength: len(res.Text),
		Text:       res.Text,
	}, nil
}
