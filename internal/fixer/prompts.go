package fixer

import (
	"fmt"
	"strings"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
)

const fixPromptHeader = `# Code Fix Agent

You are fixing a specific issue in this repository. Make the smallest
change that fully resolves the issue. Do not refactor unrelated code,
do not reformat files you are not changing, and do not add features
beyond what the issue requires.

THE ISSUE:

%s`

const fixPromptFindings = `

OUTSTANDING REVIEW FINDINGS from the previous attempt. Address each
one, or explain why no change is needed:

%s`

const fixPromptFooter = `

When you are done, summarize what you changed. If you believe any of
the outstanding findings require no code change, end your summary with
a JSON object of this exact shape:

{"resolved": [{"description": "<the finding>", "justification": "<why no change is needed>"}]}

Only include findings you deliberately left unchanged. Do not include
findings you fixed.`

// buildFixPrompt assembles the prompt for one fix attempt. The first
// attempt carries only the issue text; later attempts also carry the
// findings still open from the previous review.
func buildFixPrompt(issueText string, outstanding []domain.ReviewItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, fixPromptHeader, issueText)
	if len(outstanding) > 0 {
		var items strings.Builder
		for _, item := range outstanding {
			fmt.Fprintf(&items, "- [%s] %s", item.Severity, item.Description)
			if item.File != "" {
				fmt.Fprintf(&items, " (%s)", item.File)
			}
			items.WriteString("\n")
		}
		fmt.Fprintf(&b, fixPromptFindings, strings.TrimRight(items.String(), "\n"))
	}
	b.WriteString(fixPromptFooter)
	return b.String()
}
