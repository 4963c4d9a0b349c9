package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"graded-cards-scraper/models"
)

// Marketplace knows how to build search URLs for one source and how to turn
// a rendered results page into raw listing fragments.
type Marketplace interface {
	Source() models.Source
	SearchURL(query string, page int) string
	ParseResults(html string) ([]*models.RawListing, error)
}

// Marketplaces returns the parser for each supported source.
func Marketplaces() map[models.Source]Marketplace {
	return map[models.Source]Marketplace{
		models.SourceEbay:    Ebay{},
		models.SourceMercari: Mercari{},
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absoluteURL resolves href against base; unparseable values are returned as is.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// imageSource prefers lazy-load attributes over src, which is often a
// placeholder until the image scrolls into view.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-defer-load", "src"} {
		if v, ok := img.Attr(attr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "data:") {
				return v
			}
		}
	}
	if set, ok := img.Attr("srcset"); ok {
		if first := strings.Fields(strings.Split(set, ",")[0]); len(first) > 0 {
			return first[0]
		}
	}
	return ""
}

func imageURLs(base string, sel *goquery.Selection) []string {
	var urls []string
	seen := make(map[string]struct{})
	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := absoluteURL(base, imageSource(img))
		if src == "" {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		urls = append(urls, src)
	})
	return urls
}
