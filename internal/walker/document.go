package walker

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fairclaim/fos-cli/internal/model"
	"github.com/fairclaim/fos-cli/internal/patterns"
)

var (
	dateClassPattern    = regexp.MustCompile(`(?i)date`)
	contentClassPattern = regexp.MustCompile(`(?i)content`)
	crumbClassPattern   = regexp.MustCompile(`(?i)breadcrumb`)
)

// ParseDocument converts a fetched decision page into a RawDocument.
// Every structural field is best-effort: reference comes from the URL
// first and page text second, body text from main/article/content
// containers with whole-page fallback. Returns nil only when no
// reference can be found at all.
func ParseDocument(html, pageURL string, searchCategories []string) *model.RawDocument {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	reference := referenceFrom(pageURL, doc)
	if reference == "" {
		return nil
	}

	raw := &model.RawDocument{
		Reference:   reference,
		URL:         pageURL,
		RetrievedAt: time.Now().UTC(),
	}

	// Date: prefer a <time> element, fall back to anything date-classed.
	if sel := doc.Find("time").First(); sel.Length() > 0 {
		raw.Date = strings.TrimSpace(sel.Text())
	}
	if raw.Date == "" {
		doc.Find("[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			class, _ := sel.Attr("class")
			if dateClassPattern.MatchString(class) {
				raw.Date = strings.TrimSpace(sel.Text())
				return false
			}
			return true
		})
	}

	raw.ProductCategory = productLabel(doc)
	raw.ProductType = productTypeFromBreadcrumbs(doc, searchCategories)
	raw.Body = bodyText(doc)
	raw.Outcome = patterns.DetectOutcome(raw.Body)

	return raw
}

// referenceFrom extracts the DRN reference from the URL, or from the
// page text when the URL carries none.
func referenceFrom(pageURL string, doc *goquery.Document) string {
	if m := referencePattern.FindStringSubmatch(pageURL); m != nil {
		return "DRN-" + m[1]
	}
	if m := referencePattern.FindStringSubmatch(doc.Text()); m != nil {
		return "DRN-" + m[1]
	}
	return ""
}

// productLabel looks for a "Product:" field and returns the text that
// follows it on the same node.
func productLabel(doc *goquery.Document) string {
	var label string
	doc.Find("dt, th, strong, b, span, p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if !strings.HasPrefix(strings.ToLower(text), "product:") {
			return true
		}
		label = strings.TrimSpace(strings.TrimPrefix(text[len("product:"):], " "))
		if label == "" {
			label = strings.TrimSpace(sel.Next().Text())
		}
		return false
	})
	return label
}

// productTypeFromBreadcrumbs matches breadcrumb text against the
// configured search category slugs (with dashes read as spaces).
func productTypeFromBreadcrumbs(doc *goquery.Document, searchCategories []string) string {
	var crumbText string
	doc.Find("[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		if crumbClassPattern.MatchString(class) {
			crumbText = strings.ToLower(sel.Text())
			return false
		}
		return true
	})
	if crumbText == "" {
		return ""
	}
	for _, cat := range searchCategories {
		if strings.Contains(crumbText, strings.ReplaceAll(cat, "-", " ")) {
			return cat
		}
	}
	return ""
}

// bodyText extracts decision body text from the page's main content
// container, stripping script, style, and chrome elements. Falls back
// to the whole document when no container matches.
func bodyText(doc *goquery.Document) string {
	container := doc.Find("main").First()
	if container.Length() == 0 {
		container = doc.Find("article").First()
	}
	if container.Length() == 0 {
		doc.Find("[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			class, _ := sel.Attr("class")
			if contentClassPattern.MatchString(class) {
				container = sel
				return false
			}
			return true
		})
	}
	if container.Length() == 0 {
		container = doc.Selection.Find("body").First()
	}
	if container.Length() == 0 {
		return ""
	}

	container.Find("script, style, nav, header, footer").Remove()

	var b strings.Builder
	container.Find("p, h1, h2, h3, h4, li, td, dd, dt").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	})
	if b.Len() > 0 {
		return strings.TrimSpace(b.String())
	}
	return strings.TrimSpace(container.Text())
}
