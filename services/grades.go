package services

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"graded-cards-scraper/config"
	"graded-cards-scraper/models"
)

// span is a half-open byte range in a title.
type span struct{ start, end int }

// companyMention is one occurrence of a grading-company alias in a title.
type companyMention struct {
	company  models.GradingCompany
	priority int // index of the alias in the vocabulary
	alias    span
}

// gradeMention is a grade number tied to a company mention or a grading phrase.
type gradeMention struct {
	value float64
	num   span
}

type aliasMatcher struct {
	company       models.GradingCompany
	re            *regexp.Regexp
	notFollowedBy map[string]struct{}
}

// GradeScanner finds grading companies and grade numbers in listing titles.
// It is built once from a vocabulary and is safe for concurrent use.
type GradeScanner struct {
	aliases    []aliasMatcher
	qualifier  *regexp.Regexp // any qualifier phrase, word bounded
	afterGrade *regexp.Regexp
	beforeNum  *regexp.Regexp
	phraseNum  *regexp.Regexp
}

// NewGradeScanner compiles the company and qualifier vocabulary.
func NewGradeScanner(vocab config.Vocabulary) (*GradeScanner, error) {
	s := &GradeScanner{}

	for _, a := range vocab.Companies {
		alias := strings.TrimSpace(a.Alias)
		if alias == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(alias))
		if err != nil {
			return nil, fmt.Errorf("grades: company alias %q: %w", alias, err)
		}
		m := aliasMatcher{
			company:       normaliseCompany(a.Company),
			re:            re,
			notFollowedBy: make(map[string]struct{}, len(a.NotFollowedBy)),
		}
		for _, w := range a.NotFollowedBy {
			m.notFollowedBy[strings.ToLower(w)] = struct{}{}
		}
		s.aliases = append(s.aliases, m)
	}

	qual := qualifierAlternation(vocab.Qualifiers)
	qualRun := ""
	if qual != "" {
		qualRun = `(?:(?:` + qual + `)[\s-]*)*`
		s.qualifier = regexp.MustCompile(`(?i)\b(?:` + qual + `)\b`)
	}

	s.afterGrade = regexp.MustCompile(`(?i)^\s*[-:#]?\s*` + qualRun + `(\d+(?:\.\d+)?)`)
	s.beforeNum = regexp.MustCompile(`(?i)(?:^|[^\w./#])(\d+(?:\.\d+)?)[\s-]*` + qualRun + `$`)

	phrase := `grade|graded`
	if qual != "" {
		phrase += `|` + qual
	}
	s.phraseNum = regexp.MustCompile(`(?i)\b(?:` + phrase + `)\s*[-:#]?\s*(\d+(?:\.\d+)?)`)

	return s, nil
}

// qualifierAlternation turns phrases like "gem mint" into a regexp
// alternation, longest phrase first so "gem mint" beats "mint".
func qualifierAlternation(phrases []string) string {
	parts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		words := strings.FieldsFunc(p, func(r rune) bool { return unicode.IsSpace(r) || r == '-' })
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `[\s-]*`))
	}
	sort.SliceStable(parts, func(i, j int) bool { return len(parts[i]) > len(parts[j]) })
	return strings.Join(parts, "|")
}

// mentions returns every valid company alias occurrence, in title order.
func (s *GradeScanner) mentions(title string) []companyMention {
	var out []companyMention
	for i, a := range s.aliases {
		for _, loc := range a.re.FindAllStringIndex(title, -1) {
			end := loc[1]
			if end < len(title) && isLetter(rune(title[end])) {
				continue
			}
			if len(a.notFollowedBy) > 0 {
				if _, skip := a.notFollowedBy[nextWord(title[end:])]; skip {
					continue
				}
			}
			out = append(out, companyMention{company: a.company, priority: i, alias: span{loc[0], end}})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].alias.start < out[j].alias.start })
	return out
}

// gradeFor returns the grade adjacent to a company mention: the number after
// it wins, the number right before it is the fallback.
func (s *GradeScanner) gradeFor(title string, m companyMention) (gradeMention, bool) {
	rest := title[m.alias.end:]
	if loc := s.afterGrade.FindStringSubmatchIndex(rest); loc != nil {
		numEnd := loc[3]
		if !gluedAt(rest, numEnd) {
			if v, ok := parseGrade(rest[loc[2]:loc[3]]); ok {
				return gradeMention{value: v, num: span{m.alias.end + loc[2], m.alias.end + loc[3]}}, true
			}
		}
	}

	head := title[:m.alias.start]
	if loc := s.beforeNum.FindStringSubmatchIndex(head); loc != nil {
		if v, ok := parseGrade(head[loc[2]:loc[3]]); ok {
			return gradeMention{value: v, num: span{loc[2], loc[3]}}, true
		}
	}
	return gradeMention{}, false
}

// Company picks the grading company for a title. Vocabulary order decides
// between different companies; unknown when none is mentioned.
func (s *GradeScanner) Company(title string) (models.GradingCompany, []companyMention) {
	all := s.mentions(title)
	if len(all) == 0 {
		return models.CompanyUnknown, nil
	}

	best := all[0]
	for _, m := range all[1:] {
		if m.priority < best.priority {
			best = m
		}
	}

	var own []companyMention
	for _, m := range all {
		if m.company == best.company {
			own = append(own, m)
		}
	}
	return best.company, own
}

// HasCompany reports whether any grading-company alias appears in the title.
func (s *GradeScanner) HasCompany(title string) bool {
	return len(s.mentions(title)) > 0
}

// ScanGrades re-derives every grade mention in the full title: the grade next
// to each company alias (any company) plus "grade N" and qualifier phrases
// such as "GEM MINT 10". Distinct values are returned in title order.
func (s *GradeScanner) ScanGrades(title string) []float64 {
	type found struct {
		pos   int
		value float64
	}
	var hits []found

	for _, m := range s.mentions(title) {
		if g, ok := s.gradeFor(title, m); ok {
			hits = append(hits, found{g.num.start, g.value})
		}
	}
	for _, loc := range s.phraseNum.FindAllStringSubmatchIndex(title, -1) {
		if gluedAt(title, loc[3]) {
			continue
		}
		if v, ok := parseGrade(title[loc[2]:loc[3]]); ok {
			hits = append(hits, found{loc[2], v})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var out []float64
	seen := make(map[float64]struct{})
	for _, h := range hits {
		if _, dup := seen[h.value]; dup {
			continue
		}
		seen[h.value] = struct{}{}
		out = append(out, h.value)
	}
	return out
}

// parseGrade accepts integers 1-10 and half grades such as 9.5.
func parseGrade(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 1 || v > 10 {
		return 0, false
	}
	whole := math.Floor(v)
	if v != whole && v-whole != 0.5 {
		return 0, false
	}
	return v, true
}

// FormatGrade renders a grade in its shortest form ("10", "9.5").
func FormatGrade(g float64) string {
	return strconv.FormatFloat(g, 'f', -1, 64)
}

func normaliseCompany(s string) models.GradingCompany {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PSA":
		return models.CompanyPSA
	case "BGS", "BECKETT":
		return models.CompanyBGS
	case "CGC":
		return models.CompanyCGC
	case "SGC":
		return models.CompanySGC
	case "TAG":
		return models.CompanyTAG
	}
	return models.CompanyUnknown
}

// gluedAt reports whether the character at s[i], right after a number, makes
// the number part of something larger: a card number (4/102), a word (10th)
// or a decimal (10.25). A full stop ending a sentence does not count.
func gluedAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	switch b := s[i]; {
	case b == '.':
		return i+1 < len(s) && isDigit(s[i+1])
	case b == '/', isDigit(b):
		return true
	default:
		return isLetter(rune(b))
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func nextWord(s string) string {
	s = strings.TrimLeft(s, " \t-")
	end := 0
	for end < len(s) && isLetter(rune(s[end])) {
		end++
	}
	return strings.ToLower(s[:end])
}
