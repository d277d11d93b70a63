package domainservice

import (
	"strings"
)

// variantPrefixes is the fixed order bare references are tried in
var variantPrefixes = []string{
	"https://",
	"http://",
	"https://www.",
	"http://www.",
}

// Expander turns asset references into candidate URLs
type Expander struct{}

// NewExpander creates a new variant expander
func NewExpander() *Expander {
	return &Expander{}
}

// Expand returns the candidate URLs for a reference.
//
// A protocol-relative reference yields only its https form and an absolute
// http(s) reference is returned untouched. Anything else is treated as a
// bare host/path and multiplied over variantPrefixes.
func (e *Expander) Expand(reference string) []string {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}

	if strings.HasPrefix(reference, "//") {
		return []string{"https:" + reference}
	}

	lower := strings.ToLower(reference)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return []string{reference}
	}

	bare := strings.TrimLeft(reference, "/")
	if strings.HasPrefix(strings.ToLower(bare), "www.") {
		bare = bare[len("www."):]
	}
	if bare == "" {
		return nil
	}

	seen := make(map[string]bool, len(variantPrefixes))
	expanded := make([]string, 0, len(variantPrefixes))
	for _, prefix := range variantPrefixes {
		candidate := prefix + bare
		if !seen[candidate] {
			seen[candidate] = true
			expanded = append(expanded, candidate)
		}
	}

	return expanded
}
