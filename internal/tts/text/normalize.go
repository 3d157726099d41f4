// Package text turns article text into speech-friendly plain text.
//
// Normalization is two composable passes: phonetic substitution of domain
// terms (PreprocessForTTS) followed by markdown stripping (StripMarkdown).
// PrepareTTSContent runs both in that order.
package text

import (
	"fmt"
	"regexp"
	"strings"
)

// Markdown patterns, listed in the order StripMarkdown applies them.
// Fenced blocks go before inline code so their delimiters are not read as
// inline spans; images go before links because image syntax contains a link.
var (
	fencedCodePattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern  = regexp.MustCompile("`[^`]*`")
	imagePattern       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headerPattern      = regexp.MustCompile(`(?m)^[ \t]*#+[ \t]+`)
	boldStarPattern    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderPattern   = regexp.MustCompile(`\b__([^_]+)__\b`)
	italicStarPattern  = regexp.MustCompile(`\*([^*\s][^*\n]*)\*`)
	italicUnderPattern = regexp.MustCompile(`\b_([^_\n]+)_\b`)
	listItemPattern    = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+\.)[ \t]+`)
	blockquotePattern  = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	blankLinesPattern  = regexp.MustCompile(`\n{3,}`)
)

// Normalizer applies an ordered replacement rule list and markdown stripping.
type Normalizer struct {
	rules []ReplacementRule
}

var defaultNormalizer = &Normalizer{rules: defaultRules}

// NewNormalizer builds a normalizer whose rules are the defaults overlaid with
// extra. The merged list must satisfy ValidateRules.
func NewNormalizer(extra []ReplacementRule) (*Normalizer, error) {
	rules := MergeRules(defaultRules, extra)

	err := ValidateRules(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid replacement rules: %w", err)
	}

	return &Normalizer{rules: rules}, nil
}

// NewNormalizerWithRules builds a normalizer from an explicit rule list.
func NewNormalizerWithRules(rules []ReplacementRule) (*Normalizer, error) {
	err := ValidateRules(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid replacement rules: %w", err)
	}

	owned := make([]ReplacementRule, len(rules))
	copy(owned, rules)

	return &Normalizer{rules: owned}, nil
}

// Rules returns a copy of the normalizer's ordered rules.
func (n *Normalizer) Rules() []ReplacementRule {
	rules := make([]ReplacementRule, len(n.rules))
	copy(rules, n.rules)

	return rules
}

// Preprocess applies every rule in order, replacing all occurrences.
// It is single-pass: applying it to its own output is not guaranteed to be
// a no-op.
func (n *Normalizer) Preprocess(input string) string {
	for _, rule := range n.rules {
		input = strings.ReplaceAll(input, rule.Pattern, rule.Replacement)
	}

	return input
}

// Prepare selects override when it is non-empty, otherwise content, and
// returns the phonetically rewritten, markdown-free text.
func (n *Normalizer) Prepare(content, override string) string {
	source := content
	if override != "" {
		source = override
	}

	// Substitution runs first: terms such as "C#" carry characters the
	// header pattern would otherwise see.
	return StripMarkdown(n.Preprocess(source))
}

// StripMarkdown removes markdown syntax, keeping link display text.
func StripMarkdown(input string) string {
	output := fencedCodePattern.ReplaceAllString(input, "")
	output = inlineCodePattern.ReplaceAllString(output, "")
	output = imagePattern.ReplaceAllString(output, "")
	output = linkPattern.ReplaceAllString(output, "$1")
	output = headerPattern.ReplaceAllString(output, "")
	output = boldStarPattern.ReplaceAllString(output, "$1")
	output = boldUnderPattern.ReplaceAllString(output, "$1")
	output = italicStarPattern.ReplaceAllString(output, "$1")
	output = italicUnderPattern.ReplaceAllString(output, "$1")
	output = listItemPattern.ReplaceAllString(output, "")
	output = blockquotePattern.ReplaceAllString(output, "")
	output = blankLinesPattern.ReplaceAllString(output, "\n\n")

	return strings.TrimSpace(output)
}

// PreprocessForTTS applies the default replacement rules.
func PreprocessForTTS(input string) string {
	return defaultNormalizer.Preprocess(input)
}

// PrepareTTSContent normalizes content, or override when it is non-empty,
// with the default rules.
func PrepareTTSContent(content, override string) string {
	return defaultNormalizer.Prepare(content, override)
}
