package review

const architecturePassPrompt = `# Architecture Review

You are reviewing a code change for architectural problems. Focus on:
- Boundaries: does the change leak abstractions or couple unrelated parts?
- Consistency with the surrounding design
- Dependencies introduced in the wrong direction
- Interfaces that grew without need

Ignore style and formatting. Report only problems you can tie to the
diff below. If the change is architecturally sound, say "No issues found."`

const bugPassPrompt = `# Bug Hunt Review

You are reviewing a code change strictly for defects. Focus on:
- Logic errors and off-by-one mistakes
- Nil/empty handling, error paths that lose failures
- Race conditions and unsynchronized shared state
- Resource leaks
- Behavior changes the author probably did not intend

Ignore style and architecture opinion. Report only concrete defects you
can point to in the diff below. If you find none, say "No issues found."`

const performancePassPrompt = `# Performance Review

You are reviewing a code change for performance problems. Focus on:
- Accidental O(n^2) or worse over inputs that can grow
- Unbounded memory growth, missing pagination or limits
- Work repeated inside loops that belongs outside
- Blocking calls on hot paths

Only report problems with a plausible real-world impact; do not
micro-optimize. If there are none, say "No issues found."`

const completenessPassPrompt = `# Completeness Review

You are verifying that a code change fully addresses the issue below.
Check that:
- Every part of the issue is addressed, not just the headline symptom
- The fix handles the edge cases the issue implies
- Nothing in the issue was silently skipped

THE ISSUE:
%s

If the change fully addresses it, say "No issues found."`

const classifyPrompt = `# Review Classifier

You are given the raw text of a code review. Convert it into structured
findings.

Severity definitions:
- must_fix: bugs, security problems, breaking changes, critical design violations
- should_fix: significant design, complexity, or quality problems
- suggestion: optional or minor improvements

## Output Format

Return ONLY valid JSON:

{
  "is_clean": false,
  "items": [
    {"severity": "must_fix", "description": "...", "file": "path/if/known.go"}
  ]
}

If the review found no problems, return {"is_clean": true, "items": []}.

THE REVIEW:
`

const dismissalPrompt = `# Dismissal Verifier

A fix agent declined to address some review findings and justified each
dismissal. You are a skeptical second opinion: a dismissal stands only
if the justification genuinely resolves the finding, for example the
finding is factually wrong, already handled elsewhere, or out of scope
of the change by design. "It's hard" or "it works anyway" does not
stand.

## Input Format
JSON with a "dismissals" array, each containing:
- id: index of the finding
- finding: the review finding text
- justification: the fix agent's reason for dismissing it

## Output Format

Return ONLY valid JSON listing the ids whose dismissal you ACCEPT:

{"accept": [0, 2]}

When in doubt, do not accept: an unaccepted finding simply goes back to
the fix agent.`
