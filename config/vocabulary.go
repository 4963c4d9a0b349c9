package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// CompanyAlias maps one spelling found in titles to a grading company.
// NotFollowedBy lists words that, when they come right after the alias,
// mean the alias is not a grading company ("Tag Team").
type CompanyAlias struct {
	Alias         string   `yaml:"alias"`
	Company       string   `yaml:"company"`
	NotFollowedBy []string `yaml:"not_followed_by,omitempty"`
}

// ImageRule rewrites a thumbnail URL into its largest variant. Pattern is a
// Go regexp; Replacement may reference groups as ${1}.
type ImageRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Marketplace is the per-source part of the vocabulary. Vocabulary, when set,
// overrides the shared keyword lists for that source only.
type Marketplace struct {
	ImageRules []ImageRule `yaml:"image_rules"`
	Vocabulary *Vocabulary `yaml:"vocabulary,omitempty"`
}

// Vocabulary is the data that drives title parsing and quality filtering.
// Lists are ordered: for companies, earlier entries win.
type Vocabulary struct {
	Companies          []CompanyAlias         `yaml:"companies"`
	Qualifiers         []string               `yaml:"qualifiers"`
	MultiItemPatterns  []string               `yaml:"multi_item_patterns"`
	SealedPatterns     []string               `yaml:"sealed_patterns"`
	MemeKeywords       []string               `yaml:"meme_keywords"`
	MemeFuzzyThreshold float64                `yaml:"meme_fuzzy_threshold"`
	Marketplaces       map[string]Marketplace `yaml:"marketplaces"`
}

// DefaultVocabulary returns the built-in vocabulary for eBay and Mercari.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Companies: []CompanyAlias{
			{Alias: "PSA", Company: "PSA"},
			{Alias: "BGS", Company: "BGS"},
			{Alias: "BECKETT", Company: "BGS"},
			{Alias: "CGC", Company: "CGC"},
			{Alias: "SGC", Company: "SGC"},
			{Alias: "TAG", Company: "TAG", NotFollowedBy: []string{"team", "teams"}},
		},
		Qualifiers: []string{
			"gem mint", "gem mt", "black label", "pristine", "nm-mt", "nm mt",
			"near mint", "mint", "graded", "slab", "slabbed",
		},
		MultiItemPatterns: []string{
			`\blot\b`,
			`\bset\s+of\b`,
			`\bbundle\b`,
			`\bbulk\b`,
			`\bmultiple\b`,
			`\bcollection\s+of\b`,
			`\bx\s?(?:[2-9]|[1-9]\d+)\b`,
			`\b(?:[2-9]|[1-9]\d+)\s?x\b`,
			`\b\d+\+?\s*(?:pokemon\s+|graded\s+)?(?:cards|slabs)\b`,
			`\b(?:two|three|four|five|six|seven|eight|nine|ten)\s+(?:\w+\s+)?(?:cards|slabs)\b`,
		},
		SealedPatterns: []string{
			`\bfactory\s+sealed\b`,
			`\bsealed\b`,
			`\bunopened\b`,
			`\bbooster\s+(?:box|boxes|pack|packs|bundle)\b`,
			`\belite\s+trainer\s+box\b`,
			`\betb\b`,
			`\bblister\b`,
		},
		MemeKeywords: []string{
			"custom", "proxy", "fake", "reprint", "replica", "orica",
			"fan art", "thicc", "meme", "joke", "parody", "not real",
		},
		MemeFuzzyThreshold: 0.93,
		Marketplaces: map[string]Marketplace{
			"ebay": {
				ImageRules: []ImageRule{
					{Pattern: `/thumbs/images/`, Replacement: `/images/`},
					{Pattern: `s-l\d+\.`, Replacement: `s-l1600.`},
				},
			},
			"mercari": {
				ImageRules: []ImageRule{
					{Pattern: `/c_fill,[^/]+/`, Replacement: `/c_fit,f_auto,fl_progressive:steep,h_1600,q_95,w_1600/`},
					{Pattern: `/w_\d+,h_\d+/`, Replacement: `/w_1600,h_1600/`},
					{Pattern: `/q_\d+/`, Replacement: `/q_95/`},
					{Pattern: `([?&])width=\d+`, Replacement: `${1}width=1600`},
				},
			},
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file and fills every field it leaves
// empty from DefaultVocabulary. An empty path returns the defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: read %q: %w", path, err)
	}

	var v Vocabulary
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &v); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: parse %q: %w", path, err)
	}

	if err := mergo.Merge(&v, DefaultVocabulary()); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: apply defaults: %w", err)
	}
	return v, nil
}

// ForSource returns the vocabulary to use for one marketplace: its own
// overrides with the shared lists filling the gaps.
func (v Vocabulary) ForSource(source string) (Vocabulary, error) {
	m, ok := v.Marketplaces[source]
	if !ok || m.Vocabulary == nil {
		return v, nil
	}

	merged := *m.Vocabulary
	if err := mergo.Merge(&merged, v); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary: merge %s overrides: %w", source, err)
	}
	return merged, nil
}

// ImageRules returns the URL upgrade rules for a source, or nil.
func (v Vocabulary) ImageRules(source string) []ImageRule {
	return v.Marketplaces[source].ImageRules
}
