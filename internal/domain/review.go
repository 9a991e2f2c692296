package domain

// Severity classifies a review finding by how strongly it blocks
// convergence of a fix session.
type Severity string

const (
	// SeverityMustFix covers bugs, security problems, breaking changes,
	// and critical design violations.
	SeverityMustFix Severity = "must_fix"
	// SeverityShouldFix covers significant design, complexity, or
	// quality problems.
	SeverityShouldFix Severity = "should_fix"
	// SeveritySuggestion covers optional or minor improvements.
	// Suggestions never force another fix iteration.
	SeveritySuggestion Severity = "suggestion"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s == SeverityMustFix || s == SeverityShouldFix || s == SeveritySuggestion
}

// Actionable reports whether a finding of this severity requires
// another fix iteration.
func (s Severity) Actionable() bool {
	return s == SeverityMustFix || s == SeverityShouldFix
}

// ReviewItem is one severity-classified finding from a review pass.
type ReviewItem struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	File        string   `json:"file,omitempty"`
}

// ReviewAnalysis is the parsed judgment of one review pass.
// IsClean=true implies Items is empty.
type ReviewAnalysis struct {
	IsClean bool         `json:"is_clean"`
	Items   []ReviewItem `json:"items"`
}

// HasActionableItems reports whether any item forces another fix
// iteration. Suggestion-only reviews do not.
func (a ReviewAnalysis) HasActionableItems() bool {
	for _, item := range a.Items {
		if item.Severity.Actionable() {
			return true
		}
	}
	return false
}

// ActionableItems returns the must_fix and should_fix items.
func (a ReviewAnalysis) ActionableItems() []ReviewItem {
	var out []ReviewItem
	for _, item := range a.Items {
		if item.Severity.Actionable() {
			out = append(out, item)
		}
	}
	return out
}

// Merge combines multiple pass analyses into one. The result is clean
// only if every input was clean.
func Merge(analyses ...ReviewAnalysis) ReviewAnalysis {
	merged := ReviewAnalysis{IsClean: true}
	for _, a := range analyses {
		if !a.IsClean {
			merged.IsClean = false
		}
		merged.Items = append(merged.Items, a.Items...)
	}
	return merged
}
