// Package github provides GitHub PR operations via the gh CLI.
package github

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoPRFound indicates no pull request exists for the given branch.
var ErrNoPRFound = errors.New("no pull request found")

// ErrAuthFailed indicates GitHub authentication failed.
var ErrAuthFailed = errors.New("GitHub authentication failed")

// IsAvailable checks that the gh CLI is installed and accessible.
func IsAvailable() error {
	if _, err := exec.LookPath("gh"); err != nil {
		return fmt.Errorf("gh CLI not found in PATH: %w", err)
	}
	return nil
}

// CreatePR opens a pull request for the given head branch and returns
// its URL. The body is passed via stdin to avoid quoting trouble with
// markdown content.
func CreatePR(ctx context.Context, workDir, baseBranch, headBranch, title, body string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", "pr", "create",
		"--base", baseBranch,
		"--head", headBranch,
		"--title", title,
		"--body-file", "-")
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(body)

	out, err := cmd.Output()
	if err != nil {
		return "", classifyGHError(err)
	}

	// gh prints the PR URL as the last line of stdout.
	lines := strings.Fields(strings.TrimSpace(string(out)))
	if len(lines) == 0 {
		return "", fmt.Errorf("gh pr create returned no URL")
	}
	return lines[len(lines)-1], nil
}

// GetPRURL returns the URL of the PR for the given branch.
// Returns ErrNoPRFound if no PR exists, ErrAuthFailed if authentication
// failed, or another error for other failures.
func GetPRURL(ctx context.Context, workDir, branch string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", "pr", "view", branch, "--json", "url", "--jq", ".url")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return "", classifyGHError(err)
	}
	return strings.TrimSpace(string(out)), nil
}

// classifyGHError examines a gh CLI error and returns a typed error.
func classifyGHError(err error) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("gh command failed: %w", err)
	}

	stderr := strings.ToLower(string(exitErr.Stderr))

	if strings.Contains(stderr, "no pull request") {
		return ErrNoPRFound
	}

	if strings.Contains(stderr, "401") ||
		strings.Contains(stderr, "auth") ||
		strings.Contains(stderr, "credentials") ||
		strings.Contains(stderr, "login") {
		return ErrAuthFailed
	}

	errMsg := strings.TrimSpace(string(exitErr.Stderr))
	if errMsg != "" {
		return fmt.Errorf("gh command failed: %s", errMsg)
	}
	return fmt.Errorf("gh command failed: %w", err)
}
