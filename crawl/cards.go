package crawl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/webseek/platform"
)

const maxSummaryRunes = 300

// parseCards scans one result page and returns the raw cards in document
// order. Relevance is left zero; the engine scores afterwards.
func parseCards(rawHTML string, prof platform.Profile) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}

	base, err := url.Parse(prof.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", prof.BaseURL, err)
	}

	sel := prof.Cards
	var cards []Result
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		title := card.Find(sel.Title).First()
		if title.Length() == 0 {
			return
		}
		text := strings.TrimSpace(title.Text())
		if text == "" {
			return
		}

		href, _ := title.Attr("href")
		r := Result{
			Title: text,
			URL:   resolveURL(base, href),
		}
		if sel.Author != "" {
			r.Author = strings.TrimSpace(card.Find(sel.Author).First().Text())
		}
		if sel.Votes != "" {
			r.VoteCount = ParseCount(card.Find(sel.Votes).First().Text())
		}
		if sel.Summary != "" {
			r.Summary = truncateRunes(strings.TrimSpace(card.Find(sel.Summary).First().Text()), maxSummaryRunes)
		}
		cards = append(cards, r)
	})
	return cards, nil
}

// resolveURL absolutizes href against the platform base. Sogou and Zhihu
// both emit relative result links.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
