package models

// ReasonCode explains why the quality filter kept or rejected a row.
type ReasonCode string

const (
	ReasonKeep          ReasonCode = "KEEP"
	ReasonGradeMismatch ReasonCode = "GRADE_MISMATCH"
	ReasonMultiItem     ReasonCode = "MULTI_ITEM"
	ReasonSealedProduct ReasonCode = "SEALED_PRODUCT"
	ReasonMemeListing   ReasonCode = "MEME_LISTING"
	ReasonTooFewImages  ReasonCode = "TOO_FEW_IMAGES"
	ReasonMissingGrade  ReasonCode = "MISSING_GRADE"
)

// Decision is the classification of a single row.
type Decision struct {
	Reason ReasonCode
	Detail string
	// Grade is set when a kept row had no grade and one was read back from
	// its card name or title.
	Grade string
}

// Keep reports whether the row survives the filter.
func (d Decision) Keep() bool {
	return d.Reason == ReasonKeep
}

// Rejection is a rejected row together with its reason. The manifest file
// only carries ListingID and Reason; Row is kept for the purge step.
type Rejection struct {
	ListingID string
	Reason    ReasonCode
	Detail    string
	Row       Row
}

// FilterResult is the output of one quality-filter pass.
type FilterResult struct {
	Kept     []Row
	Rejected []Rejection
}

// ReasonCounts tallies rejections by reason code.
func (r *FilterResult) ReasonCounts() map[ReasonCode]int {
	counts := make(map[ReasonCode]int)
	for _, rej := range r.Rejected {
		counts[rej.Reason]++
	}
	return counts
}
