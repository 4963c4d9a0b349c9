package scraper

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// fakeFetcher serves canned HTML by URL and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]int
	calls    []string
}

func (f *fakeFetcher) FetchHTML(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.failures[url] > 0 {
		f.failures[url]--
		return "", errors.New("navigation timeout")
	}
	return f.pages[url], nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func testOptions() Options {
	return Options{
		Query:          "charizard",
		Pages:          3,
		MaxConcurrency: 2,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

func keys(raws []*models.RawListing) []string {
	out := make([]string, 0, len(raws))
	for _, r := range raws {
		out = append(out, models.RecordKey(r.Source, r.ListingID))
	}
	sort.Strings(out)
	return out
}

func TestScrapeStopsOnEmptyPage(t *testing.T) {
	ebay, mercari := Ebay{}, Mercari{}
	f := &fakeFetcher{
		pages: map[string]string{
			ebay.SearchURL("charizard", 1):    ebayPage,
			ebay.SearchURL("charizard", 2):    "<html></html>",
			mercari.SearchURL("charizard", 1): mercariPage,
			// Page 2 repeats page 1, so nothing new is found.
			mercari.SearchURL("charizard", 2): mercariPage,
		},
	}

	s := New(f, []Marketplace{ebay, mercari}, testOptions(), utils.Discard())
	got, err := s.Scrape(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ebay/275500998877",
		"ebay/315577001122",
		"mercari/m12345678901",
		"mercari/m99",
	}, keys(got))
	assert.Equal(t, 0, f.callCount(ebay.SearchURL("charizard", 3)))
	assert.Equal(t, 0, f.callCount(mercari.SearchURL("charizard", 3)))
}

func TestScrapeRetriesPageFetch(t *testing.T) {
	ebay := Ebay{}
	first := ebay.SearchURL("charizard", 1)
	f := &fakeFetcher{
		pages:    map[string]string{first: ebayPage},
		failures: map[string]int{first: 1},
	}

	opts := testOptions()
	opts.Pages = 1
	got, err := New(f, []Marketplace{ebay}, opts, utils.Discard()).Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, f.callCount(first))
}

func TestScrapeFailingSourceIsSkipped(t *testing.T) {
	ebay, mercari := Ebay{}, Mercari{}
	f := &fakeFetcher{
		pages:    map[string]string{mercari.SearchURL("charizard", 1): mercariPage},
		failures: map[string]int{ebay.SearchURL("charizard", 1): 10},
	}

	opts := testOptions()
	opts.Pages = 1
	got, err := New(f, []Marketplace{ebay, mercari}, opts, utils.Discard()).Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mercari/m12345678901", "mercari/m99"}, keys(got))
}

func TestScrapeAllSourcesFailing(t *testing.T) {
	ebay := Ebay{}
	f := &fakeFetcher{failures: map[string]int{ebay.SearchURL("charizard", 1): 10}}

	opts := testOptions()
	opts.Pages = 1
	_, err := New(f, []Marketplace{ebay}, opts, utils.Discard()).Scrape(context.Background())
	assert.Error(t, err)
}
