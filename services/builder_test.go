package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

func TestBuilderRejectsMissingListingID(t *testing.T) {
	b := NewBuilder(utils.Discard())

	res := b.Admit(&models.ListingRecord{Source: models.SourceEbay, Title: "PSA 10 Charizard"})
	assert.Equal(t, Invalid, res.Status)
	assert.ErrorIs(t, res.Err, ErrMissingListingID)
	assert.Equal(t, 0, b.Len())
}

func TestBuilderRejectsUnknownSource(t *testing.T) {
	b := NewBuilder(utils.Discard())

	res := b.Admit(&models.ListingRecord{Source: "craigslist", ListingID: "1"})
	assert.Equal(t, Invalid, res.Status)
	assert.ErrorIs(t, res.Err, ErrUnknownSource)
}

func TestBuilderFirstAdmissionWins(t *testing.T) {
	b := NewBuilder(utils.Discard())

	first := &models.ListingRecord{Source: models.SourceEbay, ListingID: "1", Title: "first"}
	second := &models.ListingRecord{Source: models.SourceEbay, ListingID: "1", Title: "second"}
	other := &models.ListingRecord{Source: models.SourceMercari, ListingID: "1", Title: "other source"}

	assert.Equal(t, Accepted, b.Admit(first).Status)
	assert.Equal(t, Duplicate, b.Admit(second).Status)
	assert.Equal(t, Accepted, b.Admit(other).Status)

	recs := b.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "first", recs[0].Title)
	assert.Equal(t, "other source", recs[1].Title)
}

func TestBuilderEnforcesRecordInvariants(t *testing.T) {
	b := NewBuilder(utils.Discard())

	rec := &models.ListingRecord{
		Source:    models.SourceEbay,
		ListingID: "9",
		Grade:     models.Float(10),
		Price:     models.Float(-5),
	}
	require.Equal(t, Accepted, b.Admit(rec).Status)

	got := b.Records()[0]
	assert.Equal(t, models.CompanyUnknown, got.GradingCompany)
	assert.Nil(t, got.Grade, "grade without company is dropped")
	assert.Nil(t, got.Price, "negative price is dropped")
}

func TestBuilderSeedAndSeen(t *testing.T) {
	b := NewBuilder(utils.Discard())
	b.Seed([]string{models.RecordKey(models.SourceEbay, "old")})

	assert.True(t, b.Seen(models.SourceEbay, "old"))
	assert.False(t, b.Seen(models.SourceMercari, "old"))

	res := b.Admit(&models.ListingRecord{Source: models.SourceEbay, ListingID: "old"})
	assert.Equal(t, Duplicate, res.Status)
	assert.Equal(t, 0, b.Len())
}

func TestBuilderConcurrentAdmission(t *testing.T) {
	b := NewBuilder(utils.Discard())

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := &models.ListingRecord{Source: models.SourceEbay, ListingID: fmt.Sprintf("%d", i%20)}
			if b.Admit(rec).Status == Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if accepted != 20 {
		t.Errorf("accepted: got %d, want 20", accepted)
	}
	if b.Len() != 20 {
		t.Errorf("records: got %d, want 20", b.Len())
	}
}
