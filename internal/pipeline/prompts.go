package pipeline

const scanOutputContract = `
## Output Format

Return ONLY valid JSON, no prose before or after:

{
  "candidates": [
    {
      "id": "short-kebab-case-slug",
      "title": "One-line issue title",
      "file": "path/to/file.go",
      "line": 42,
      "description": "What is wrong and why it matters."
    }
  ]
}

Rules:
- Report only issues you can point to in specific files.
- An empty repository scan is a valid result: return {"candidates": []}.
- Do not modify any files. This is a read-only scan.`

const validationPrompt = `# Candidate Issue Validator

You are a skeptical senior engineer reviewing scan findings before they
become tickets. Scanners overreport; your default stance is rejection
unless the evidence holds up.

## Input Format
JSON with a "candidates" array, each containing:
- id: unique identifier
- title: short issue title
- file, line: claimed location
- description: the scanner's claim

## Your Task
For each candidate, think step-by-step:
1. What concrete defect is being claimed?
2. Does the cited location plausibly contain it? Read the code.
3. Is this a real bug or quality problem, or a style preference?
4. Would a fix change behavior for the better, or just churn the code?

APPROVE only findings that are concrete, located, and worth fixing:
- Bugs with demonstrable wrong behavior
- Security problems
- Resource leaks, race conditions
- Error handling that silently loses failures
- Real duplication or dead code with maintenance cost

REJECT:
- Style or formatting preferences
- "Consider doing X" without a concrete problem
- Claims the cited code does not support
- Speculation about code you cannot see

## Output Format

Return ONLY valid JSON:

{
  "votes": [
    {"id": "candidate-id", "approve": true, "reason": "under 80 chars"}
  ]
}

Every candidate in the input must receive exactly one vote.`

// buildScanPrompt appends the output contract to a configured agent
// prompt.
func buildScanPrompt(agentPrompt string, patterns []string) string {
	prompt := agentPrompt + "\n" + scanOutputContract
	if len(patterns) > 0 {
		prompt += "\n\nLimit the scan to files matching:\n"
		for _, p := range patterns {
			prompt += "- " + p + "\n"
		}
	}
	return prompt
}

// buildValidationPrompt embeds a candidate batch into the validator
// prompt.
func buildValidationPrompt(batchJSON string) string {
	return validationPrompt + "\n\nINPUT JSON:\n" + batchJSON + "\n"
}
