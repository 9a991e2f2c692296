package domain

import "testing"

func TestHasActionableItems(t *testing.T) {
	tests := []struct {
		name  string
		items []ReviewItem
		want  bool
	}{
		{
			name: "must_fix and suggestion",
			items: []ReviewItem{
				{Severity: SeverityMustFix, Description: "nil deref"},
				{Severity: SeveritySuggestion, Description: "rename var"},
			},
			want: true,
		},
		{
			name: "suggestions only",
			items: []ReviewItem{
				{Severity: SeveritySuggestion, Description: "rename var"},
				{Severity: SeveritySuggestion, Description: "add comment"},
			},
			want: false,
		},
		{
			name: "should_fix only",
			items: []ReviewItem{
				{Severity: SeverityShouldFix, Description: "duplicated logic"},
			},
			want: true,
		},
		{
			name:  "empty",
			items: nil,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ReviewAnalysis{IsClean: len(tt.items) == 0, Items: tt.items}
			if got := a.HasActionableItems(); got != tt.want {
				t.Errorf("HasActionableItems() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActionableItems_FiltersSuggestions(t *testing.T) {
	a := ReviewAnalysis{Items: []ReviewItem{
		{Severity: SeverityMustFix, Description: "a"},
		{Severity: SeveritySuggestion, Description: "b"},
		{Severity: SeverityShouldFix, Description: "c"},
	}}

	got := a.ActionableItems()
	if len(got) != 2 {
		t.Fatalf("expected 2 actionable items, got %d", len(got))
	}
	if got[0].Description != "a" || got[1].Description != "c" {
		t.Errorf("unexpected items: %+v", got)
	}
}

func TestMerge_CleanOnlyIfAllClean(t *testing.T) {
	clean := ReviewAnalysis{IsClean: true}
	dirty := ReviewAnalysis{Items: []ReviewItem{{Severity: SeverityMustFix, Description: "x"}}}

	if m := Merge(clean, clean); !m.IsClean {
		t.Error("merging clean analyses should stay clean")
	}
	if m := Merge(clean, dirty); m.IsClean {
		t.Error("one dirty analysis should make the merge dirty")
	}
	if m := Merge(clean, dirty); len(m.Items) != 1 {
		t.Errorf("expected 1 merged item, got %d", len(m.Items))
	}
}

func TestSeverity_Valid(t *testing.T) {
	for _, s := range []Severity{SeverityMustFix, SeverityShouldFix, SeveritySuggestion} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Severity("critical").Valid() {
		t.Error("unknown severity should be invalid")
	}
}
