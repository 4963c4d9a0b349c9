package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"graded-cards-scraper/config"
	"graded-cards-scraper/models"
	"graded-cards-scraper/utils"
)

// minFuzzyTokenLength keeps short words like "fake" to exact matching; fuzzy
// matching on them produces too many false hits.
const minFuzzyTokenLength = 5

// FilterOptions configures a QualityFilter.
type FilterOptions struct {
	// MinImages rejects rows with fewer stored images. Zero disables the rule.
	MinImages int
	// RequireGrade rejects rows that have no grade and none can be recovered
	// from the card name or title.
	RequireGrade bool
	// Workers bounds the number of rows classified at once.
	Workers int
}

type ruleSet struct {
	scanner   *GradeScanner
	multi     []*regexp.Regexp
	sealed    []*regexp.Regexp
	memeExact *regexp.Regexp
	memeFuzzy []string
	threshold float64
}

// QualityFilter classifies exported rows as keep or reject. Classification
// is a pure function of the row; deleting files for rejected rows is the
// separate ImagePurger action.
type QualityFilter struct {
	logger   *utils.Logger
	opts     FilterOptions
	rules    *ruleSet
	bySource map[string]*ruleSet
}

// NewQualityFilter compiles the keyword and pattern lists of the vocabulary.
func NewQualityFilter(vocab config.Vocabulary, opts FilterOptions, logger *utils.Logger) (*QualityFilter, error) {
	if opts.Workers < 1 {
		opts.Workers = 4
	}

	rules, err := compileRules(vocab)
	if err != nil {
		return nil, err
	}

	f := &QualityFilter{logger: logger, opts: opts, rules: rules, bySource: make(map[string]*ruleSet)}
	for name, m := range vocab.Marketplaces {
		if m.Vocabulary == nil {
			continue
		}
		merged, err := vocab.ForSource(name)
		if err != nil {
			return nil, err
		}
		rs, err := compileRules(merged)
		if err != nil {
			return nil, fmt.Errorf("filter: %s vocabulary: %w", name, err)
		}
		f.bySource[name] = rs
	}
	return f, nil
}

func compileRules(vocab config.Vocabulary) (*ruleSet, error) {
	scanner, err := NewGradeScanner(vocab)
	if err != nil {
		return nil, err
	}

	rs := &ruleSet{scanner: scanner, threshold: vocab.MemeFuzzyThreshold}
	if rs.multi, err = compileAll(vocab.MultiItemPatterns); err != nil {
		return nil, fmt.Errorf("filter: multi-item pattern: %w", err)
	}
	if rs.sealed, err = compileAll(vocab.SealedPatterns); err != nil {
		return nil, fmt.Errorf("filter: sealed pattern: %w", err)
	}

	var exact []string
	for _, kw := range vocab.MemeKeywords {
		words := strings.Fields(strings.ToLower(kw))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		exact = append(exact, strings.Join(words, `\s+`))
		if len(words) == 1 && len(words[0]) >= minFuzzyTokenLength {
			rs.memeFuzzy = append(rs.memeFuzzy, words[0])
		}
	}
	if len(exact) > 0 {
		rs.memeExact = regexp.MustCompile(`(?i)\b(?:` + strings.Join(exact, "|") + `)\b`)
	}
	return rs, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (f *QualityFilter) rulesFor(source string) *ruleSet {
	if rs, ok := f.bySource[source]; ok {
		return rs
	}
	return f.rules
}

// Classify returns the first matching reason in priority order: grade
// mismatch, multi-item, sealed product, meme listing, too few images,
// missing grade.
func (f *QualityFilter) Classify(row models.Row) models.Decision {
	rs := f.rulesFor(row.Source)
	text := row.Title
	if strings.TrimSpace(text) == "" {
		text = row.CardName
	}

	if detail, ok := rs.gradeMismatch(text, row.Grade); ok {
		return models.Decision{Reason: models.ReasonGradeMismatch, Detail: detail}
	}
	if m := firstMatch(rs.multi, text); m != "" {
		return models.Decision{Reason: models.ReasonMultiItem, Detail: fmt.Sprintf("matched %q", m)}
	}
	if m := firstMatch(rs.sealed, text); m != "" {
		return models.Decision{Reason: models.ReasonSealedProduct, Detail: fmt.Sprintf("matched %q", m)}
	}
	if kw := rs.memeKeyword(text); kw != "" && !rs.scanner.HasCompany(text) {
		return models.Decision{Reason: models.ReasonMemeListing, Detail: fmt.Sprintf("keyword %q without grading company", kw)}
	}
	if f.opts.MinImages > 0 && len(row.ImagePaths) < f.opts.MinImages {
		return models.Decision{
			Reason: models.ReasonTooFewImages,
			Detail: fmt.Sprintf("%d images, need %d", len(row.ImagePaths), f.opts.MinImages),
		}
	}
	if f.opts.RequireGrade && strings.TrimSpace(row.Grade) == "" {
		g, ok := rs.recoverGrade(row)
		if !ok {
			return models.Decision{Reason: models.ReasonMissingGrade, Detail: "no grade in card name or title"}
		}
		return models.Decision{Reason: models.ReasonKeep, Detail: "grade recovered", Grade: g}
	}
	return models.Decision{Reason: models.ReasonKeep}
}

// recoverGrade reads a grade back from the card name, then the title. Only
// rows with a known grading company qualify, and the text must name exactly
// one grade.
func (rs *ruleSet) recoverGrade(row models.Row) (string, bool) {
	company := strings.TrimSpace(row.GradingCompany)
	if company == "" || strings.EqualFold(company, string(models.CompanyUnknown)) {
		return "", false
	}
	for _, text := range []string{row.CardName, row.Title} {
		if grades := rs.scanner.ScanGrades(text); len(grades) == 1 {
			return FormatGrade(grades[0]), true
		}
	}
	return "", false
}

// gradeMismatch re-scans the whole text for every grade mention. Two
// different grades in one title, or a single grade that disagrees with the
// recorded one, is a mismatch.
func (rs *ruleSet) gradeMismatch(text, recorded string) (string, bool) {
	grades := rs.scanner.ScanGrades(text)
	if len(grades) >= 2 {
		parts := make([]string, len(grades))
		for i, g := range grades {
			parts[i] = FormatGrade(g)
		}
		return "conflicting grades " + strings.Join(parts, ", "), true
	}

	recorded = strings.TrimSpace(recorded)
	if len(grades) == 1 && recorded != "" {
		want, err := strconv.ParseFloat(recorded, 64)
		if err == nil && want != grades[0] {
			return fmt.Sprintf("title says %s, recorded grade is %s", FormatGrade(grades[0]), recorded), true
		}
	}
	return "", false
}

func (rs *ruleSet) memeKeyword(text string) string {
	if rs.memeExact != nil {
		if m := rs.memeExact.FindString(text); m != "" {
			return strings.ToLower(m)
		}
	}
	if len(rs.memeFuzzy) == 0 || rs.threshold <= 0 {
		return ""
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, tok := range tokens {
		if len(tok) < minFuzzyTokenLength {
			continue
		}
		for _, kw := range rs.memeFuzzy {
			if matchr.JaroWinkler(tok, kw, false) >= rs.threshold {
				return kw
			}
		}
	}
	return ""
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// Filter classifies every row in parallel and splits them into kept rows and
// rejections, both in input order.
func (f *QualityFilter) Filter(rows []models.Row) models.FilterResult {
	decisions := make([]models.Decision, len(rows))

	pool := utils.NewWorkerPool(f.opts.Workers, 0)
	for i := range rows {
		pool.Submit(func() {
			decisions[i] = f.Classify(rows[i])
		})
	}
	pool.Wait()

	result := models.FilterResult{Kept: []models.Row{}, Rejected: []models.Rejection{}}
	for i, d := range decisions {
		if d.Keep() {
			row := rows[i]
			if d.Grade != "" {
				f.logger.Debug("[filter] Recovered grade %s for %s/%s", d.Grade, row.Source, row.ListingID)
				row.Grade = d.Grade
			}
			result.Kept = append(result.Kept, row)
			continue
		}
		f.logger.Info("[filter] Rejecting %s/%s: %s (%s)", rows[i].Source, rows[i].ListingID, d.Reason, d.Detail)
		result.Rejected = append(result.Rejected, models.Rejection{
			ListingID: rows[i].ListingID,
			Reason:    d.Reason,
			Detail:    d.Detail,
			Row:       rows[i],
		})
	}

	f.logger.Info("[filter] Kept %d of %d rows (rejected %d)", len(result.Kept), len(rows), len(result.Rejected))
	return result
}
