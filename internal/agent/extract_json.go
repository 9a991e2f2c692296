package agent

import (
	"fmt"
	"strings"
)

// StripMarkdownCodeFence removes a surrounding markdown code fence from s,
// including an optional language tag after the opening fence. Input that is
// not fenced is returned unchanged (apart from whitespace trimming).
func StripMarkdownCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence line (``` or ```json etc.)
	rest := trimmed[3:]
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		// Fence with no body
		return strings.TrimSpace(strings.TrimSuffix(rest, "```"))
	}

	// Drop the closing fence if present
	if idx := strings.LastIndex(rest, "```"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

// ExtractJSON locates the first complete JSON object or array embedded in s
// and returns it. Agents frequently wrap JSON output in prose or markdown
// fences; this scans for the first '{' or '[' and tracks nesting depth while
// respecting string literals and escape sequences, so braces inside strings
// do not terminate the scan early.
func ExtractJSON(s string) (string, error) {
	s = StripMarkdownCodeFence(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON object or array found in output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unterminated JSON value in output")
}
