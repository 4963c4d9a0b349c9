package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"graded-cards-scraper/models"
)

const ebayBaseURL = "https://www.ebay.com"

var ebayItemIDRegexp = regexp.MustCompile(`/itm/(?:[^/?#]+/)?(\d+)`)

// Ebay parses eBay search result pages. Both the classic s-item markup and
// the newer s-card markup are recognised.
type Ebay struct{}

func (Ebay) Source() models.Source { return models.SourceEbay }

func (Ebay) SearchURL(query string, page int) string {
	v := url.Values{}
	v.Set("_nkw", query)
	v.Set("_sacat", "0")
	v.Set("_ipg", "240")
	v.Set("_pgn", fmt.Sprint(page))
	return ebayBaseURL + "/sch/i.html?" + v.Encode()
}

func (Ebay) ParseResults(html string) ([]*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("ebay: parse html: %w", err)
	}

	var out []*models.RawListing
	doc.Find("li.s-item, li.s-card").Each(func(_ int, item *goquery.Selection) {
		link, _ := item.Find("a.s-item__link, a.su-link, a[href*='/itm/']").First().Attr("href")
		m := ebayItemIDRegexp.FindStringSubmatch(link)
		if m == nil {
			return
		}

		title := cleanText(item.Find(".s-item__title, .s-card__title").First().Text())
		title = strings.TrimPrefix(title, "New Listing")
		title = cleanText(title)
		if title == "" {
			title, _ = item.Find("img").First().Attr("alt")
			title = cleanText(title)
		}
		// eBay injects a "Shop on eBay" placeholder as the first result.
		if title == "" || strings.EqualFold(title, "Shop on eBay") {
			return
		}

		out = append(out, &models.RawListing{
			Title:     title,
			PriceText: cleanText(item.Find(".s-item__price, .s-card__price").First().Text()),
			URL:       ebayBaseURL + "/itm/" + m[1],
			ImageURLs: imageURLs(ebayBaseURL, item.Find(".s-item__image, .s-card__image, .s-item__image-wrapper").First()),
			ListingID: m[1],
			Source:    models.SourceEbay,
		})
	})

	return dedupe(out), nil
}

// dedupe drops repeated listing IDs within one page; the broad selector list
// can match the same item twice.
func dedupe(in []*models.RawListing) []*models.RawListing {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, r := range in {
		if _, dup := seen[r.ListingID]; dup {
			continue
		}
		seen[r.ListingID] = struct{}{}
		out = append(out, r)
	}
	return out
}
