package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"graded-cards-scraper/models"
)

const mercariBaseURL = "https://www.mercari.com"

var mercariItemIDRegexp = regexp.MustCompile(`/us/item/([a-zA-Z0-9]+)`)

// Mercari parses Mercari US search result pages.
type Mercari struct{}

func (Mercari) Source() models.Source { return models.SourceMercari }

func (Mercari) SearchURL(query string, page int) string {
	v := url.Values{}
	v.Set("keyword", query)
	v.Set("page", fmt.Sprint(page))
	return mercariBaseURL + "/search/?" + v.Encode()
}

func (Mercari) ParseResults(html string) ([]*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("mercari: parse html: %w", err)
	}

	root := doc.Find(`[data-testid="SearchResults"]`)
	if root.Length() == 0 {
		root = doc.Selection
	}

	var out []*models.RawListing
	root.Find(`a[href*="/us/item/"]`).Each(func(_ int, item *goquery.Selection) {
		href, _ := item.Attr("href")
		m := mercariItemIDRegexp.FindStringSubmatch(href)
		if m == nil {
			return
		}

		title := cleanText(item.Find(`[data-testid="ItemName"]`).First().Text())
		if title == "" {
			title, _ = item.Find("img").First().Attr("alt")
			title = cleanText(title)
		}
		if title == "" {
			title, _ = item.Attr("aria-label")
			title = cleanText(title)
		}
		if title == "" {
			return
		}

		out = append(out, &models.RawListing{
			Title:     title,
			PriceText: cleanText(item.Find(`[data-testid="ItemPrice"]`).First().Text()),
			URL:       mercariBaseURL + "/us/item/" + m[1] + "/",
			ImageURLs: imageURLs(mercariBaseURL, item),
			ListingID: m[1],
			Source:    models.SourceMercari,
		})
	})

	return dedupe(out), nil
}
