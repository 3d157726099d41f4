package text

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPattern indicates a replacement rule without a pattern.
	ErrEmptyPattern = errors.New("replacement rule pattern cannot be empty")
	// ErrRuleOrder indicates a compound rule placed after one of its substrings.
	ErrRuleOrder = errors.New("replacement rule is shadowed by an earlier substring rule")
)

// ReplacementRule is a literal, case-sensitive phonetic substitution.
type ReplacementRule struct {
	Pattern     string `toml:"pattern"`
	Replacement string `toml:"replacement"`
}

// defaultRules is ordered: every compound phrase comes before any rule whose
// pattern is a strict substring of it. ValidateRules enforces this.
var defaultRules = []ReplacementRule{
	{Pattern: "homes.com", Replacement: "homes dot com"},
	{Pattern: "C# .NET", Replacement: "C sharp dot net"},
	{Pattern: "ASP.NET", Replacement: "A S P dot net"},
	{Pattern: ".NET", Replacement: "dot net"},
	{Pattern: "C#", Replacement: "C sharp"},
	{Pattern: "F#", Replacement: "F sharp"},
	{Pattern: "C++", Replacement: "C plus plus"},
	{Pattern: "Node.js", Replacement: "node J S"},
	{Pattern: "Next.js", Replacement: "next J S"},
	{Pattern: "Vue.js", Replacement: "view J S"},
	{Pattern: "JavaScript", Replacement: "java script"},
	{Pattern: "TypeScript", Replacement: "type script"},
	{Pattern: "GraphQL", Replacement: "graph Q L"},
	{Pattern: "PostgreSQL", Replacement: "postgres Q L"},
	{Pattern: "MySQL", Replacement: "my S Q L"},
	{Pattern: "NoSQL", Replacement: "no S Q L"},
	{Pattern: "SQL", Replacement: "S Q L"},
	{Pattern: "REST API", Replacement: "rest A P I"},
	{Pattern: "APIs", Replacement: "A P I's"},
	{Pattern: "API", Replacement: "A P I"},
	{Pattern: "JSON", Replacement: "jason"},
	{Pattern: "YAML", Replacement: "yammel"},
	{Pattern: "kubectl", Replacement: "cube control"},
	{Pattern: "K8s", Replacement: "kubernetes"},
	{Pattern: "CI/CD", Replacement: "C I C D"},
	{Pattern: "UI/UX", Replacement: "U I U X"},
	{Pattern: "GitHub", Replacement: "git hub"},
	{Pattern: "OAuth", Replacement: "oh auth"},
	{Pattern: "npm", Replacement: "N P M"},
	{Pattern: "AWS", Replacement: "A W S"},
	{Pattern: "CLI", Replacement: "C L I"},
}

// DefaultRules returns a copy of the built-in ordered rule list.
func DefaultRules() []ReplacementRule {
	rules := make([]ReplacementRule, len(defaultRules))
	copy(rules, defaultRules)

	return rules
}

// ValidateRules checks that no rule can be shadowed by an earlier rule whose
// pattern is a strict substring of its own.
func ValidateRules(rules []ReplacementRule) error {
	for later, rule := range rules {
		if rule.Pattern == "" {
			return fmt.Errorf("%w: rule %d", ErrEmptyPattern, later)
		}

		for earlier := range later {
			candidate := rules[earlier].Pattern
			if candidate != rule.Pattern && strings.Contains(rule.Pattern, candidate) {
				return fmt.Errorf("%w: %q (rule %d) follows %q (rule %d)",
					ErrRuleOrder, rule.Pattern, later, candidate, earlier)
			}
		}
	}

	return nil
}

// MergeRules overlays extra rules onto base. An extra rule with the same
// pattern as a base rule replaces its replacement in place; any other extra
// rule is inserted before the first rule it contains, or appended.
func MergeRules(base, extra []ReplacementRule) []ReplacementRule {
	merged := make([]ReplacementRule, len(base), len(base)+len(extra))
	copy(merged, base)

	for _, rule := range extra {
		if index := indexOfPattern(merged, rule.Pattern); index >= 0 {
			merged[index].Replacement = rule.Replacement

			continue
		}

		merged = insertRule(merged, rule)
	}

	return merged
}

func indexOfPattern(rules []ReplacementRule, pattern string) int {
	for i, rule := range rules {
		if rule.Pattern == pattern {
			return i
		}
	}

	return -1
}

func insertRule(rules []ReplacementRule, rule ReplacementRule) []ReplacementRule {
	for i, existing := range rules {
		if existing.Pattern != "" && strings.Contains(rule.Pattern, existing.Pattern) {
			rules = append(rules, ReplacementRule{})
			copy(rules[i+1:], rules[i:])
			rules[i] = rule

			return rules
		}
	}

	return append(rules, rule)
}
