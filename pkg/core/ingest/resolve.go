package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTextDocument is returned when a filing index page links no text document.
var ErrNoTextDocument = errors.New("no text document on filing index page")

// ResolveTextDocument finds the complete submission text file linked from an
// EDGAR filing index page ("...-index.htm") and returns its absolute URL.
//
// The document table lists one row per file; the complete submission is the row
// described as "Complete submission text file". Older pages lack the description,
// so any ".txt" link is accepted as a fallback.
func ResolveTextDocument(page string, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse filing index page: %w", err)
	}

	var complete, fallback string
	doc.Find("table tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		href, ok := row.Find("a[href]").First().Attr("href")
		if !ok || !strings.HasSuffix(strings.ToLower(href), ".txt") {
			return true
		}
		if strings.Contains(strings.ToLower(row.Text()), "complete submission") {
			complete = href
			return false
		}
		if fallback == "" {
			fallback = href
		}
		return true
	})

	if complete == "" {
		doc.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if fallback == "" && strings.HasSuffix(strings.ToLower(href), ".txt") {
				fallback = href
				return false
			}
			return true
		})
	}

	href := complete
	if href == "" {
		href = fallback
	}
	if href == "" {
		return "", fmt.Errorf("%s: %w", pageURL, ErrNoTextDocument)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid document link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
