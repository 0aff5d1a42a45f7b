// Package walker discovers decision documents from the archive's
// paginated search listings and parses individual decision pages into
// raw documents. Markup structure is treated as advisory: extraction
// degrades to whichever hints are present rather than failing.
package walker

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fairclaim/fos-cli/internal/fetcher"
)

// maxEmptyPages is how many consecutive listing pages may yield zero
// new links before a walk stops. Guards against pagination schemes that
// silently repeat or stall instead of signalling end-of-results.
const maxEmptyPages = 3

var referencePattern = regexp.MustCompile(`DRN-?(\d+)`)

// Walker discovers decision page URLs from category search listings.
type Walker struct {
	fetcher    fetcher.Fetcher
	baseURL    string
	searchPath string
	dateFrom   string
	dateTo     string
}

// New creates a Walker rooted at the given archive base URL.
func New(f fetcher.Fetcher, baseURL, searchPath string) *Walker {
	return &Walker{
		fetcher:    f,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		searchPath: searchPath,
	}
}

// WithDateRange bounds every search to decisions published between from
// and to, both formatted 2006-01-02 and either allowed to be empty for
// an open end. It returns the walker for chaining.
func (w *Walker) WithDateRange(from, to string) *Walker {
	w.dateFrom = from
	w.dateTo = to
	return w
}

// Walk pages through the search results for a category and returns the
// discovered decision URLs, deduplicated by absolute URL, in discovery
// order. It stops at maxPages or after 3 consecutive pages with no new
// links; listing fetch failures count as empty pages. The walk is
// finite and not restartable mid-sequence: resumption is the
// coordinator's job via its progress store.
func (w *Walker) Walk(ctx context.Context, category string, maxPages int) ([]string, error) {
	var urls []string
	err := w.WalkPages(ctx, category, maxPages, func(_ int, pageURLs []string) error {
		urls = append(urls, pageURLs...)
		return nil
	})
	return urls, err
}

// WalkPages is the page-wise form of Walk: fn is invoked once per
// listing page that yields new links, receiving only the links not seen
// earlier in this walk. An error from fn stops the walk. The
// coordinator uses this to persist progress at page granularity.
func (w *Walker) WalkPages(ctx context.Context, category string, maxPages int, fn func(page int, urls []string) error) error {
	log := zap.L().With(zap.String("category", category))

	seen := make(map[string]bool)
	emptyRun := 0

	for page := 1; page <= maxPages && emptyRun < maxEmptyPages; page++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "walk: cancelled")
		}

		searchURL := w.searchURL(category, page)
		log.Info("walk: fetching search results", zap.Int("page", page))

		html, err := w.fetcher.FetchPage(ctx, searchURL)
		if err != nil {
			if !fetcher.IsFetchFailure(err) {
				return err
			}
			log.Warn("walk: listing page fetch failed, counting as empty",
				zap.Int("page", page),
				zap.Error(err),
			)
			emptyRun++
			continue
		}

		var fresh []string
		for _, link := range w.extractDecisionLinks(html) {
			if seen[link] {
				continue
			}
			seen[link] = true
			fresh = append(fresh, link)
		}

		if len(fresh) == 0 {
			emptyRun++
			continue
		}
		emptyRun = 0
		log.Info("walk: found decisions", zap.Int("page", page), zap.Int("new_links", len(fresh)))

		if err := fn(page, fresh); err != nil {
			return err
		}
	}

	return nil
}

// searchURL builds one listing page's URL. Date bounds ride along as
// query parameters when set.
func (w *Walker) searchURL(category string, page int) string {
	u := fmt.Sprintf("%s%s?product=%s&page=%d", w.baseURL, w.searchPath, url.QueryEscape(category), page)
	if w.dateFrom != "" {
		u += "&date_from=" + url.QueryEscape(w.dateFrom)
	}
	if w.dateTo != "" {
		u += "&date_to=" + url.QueryEscape(w.dateTo)
	}
	return u
}

// ReferenceFromURL extracts the normalized DRN reference carried in a
// decision URL, or "" when the URL has none.
func ReferenceFromURL(rawURL string) string {
	if m := referencePattern.FindStringSubmatch(rawURL); m != nil {
		return "DRN-" + m[1]
	}
	return ""
}

// extractDecisionLinks pulls decision page URLs out of a listing page.
// Links follow the pattern /ombudsman-decisions/DRN-XXXXXXX; anything
// carrying a DRN reference qualifies. Relative hrefs are resolved
// against the archive base.
func (w *Walker) extractDecisionLinks(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Debug("walk: unparseable listing page", zap.Error(err))
		return nil
	}

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		if !strings.Contains(href, "/ombudsman-decisions/DRN") && !referencePattern.MatchString(href) {
			return
		}

		resolved, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(resolved)
		absolute.Fragment = ""
		full := absolute.String()

		if !seen[full] {
			seen[full] = true
			links = append(links, full)
		}
	})

	return links
}
