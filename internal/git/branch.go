package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBranch returns the repository's default branch. It consults
// origin/HEAD first, then falls back to main or master, whichever exists
// locally.
func DefaultBranch(ctx context.Context, repoDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "symbolic-ref", "refs/remotes/origin/HEAD")
	cmd.Dir = repoDir
	if out, err := cmd.Output(); err == nil {
		ref := strings.TrimSpace(string(out))
		if name := strings.TrimPrefix(ref, "refs/remotes/origin/"); name != ref && name != "" {
			return name, nil
		}
	}

	for _, candidate := range []string{"main", "master"} {
		cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "--quiet", "refs/heads/"+candidate)
		cmd.Dir = repoDir
		if err := cmd.Run(); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("could not determine default branch in %s", repoDir)
}

// Diff returns the diff of the working tree against baseRef, including
// uncommitted changes.
func Diff(ctx context.Context, baseRef, workDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", baseRef)
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to diff against %s: %w", baseRef, err)
	}
	return string(out), nil
}

// HasChanges reports whether the working tree has uncommitted changes.
func HasChanges(ctx context.Context, workDir string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to check working tree status: %w", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// CommitAll stages everything and commits with the given message. Used
// when a fix agent modified files without committing them itself.
func CommitAll(ctx context.Context, workDir, message string) error {
	add := exec.CommandContext(ctx, "git", "add", "-A")
	add.Dir = workDir
	if out, err := add.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to stage changes (%s): %w", strings.TrimSpace(string(out)), err)
	}

	commit := exec.CommandContext(ctx, "git", "commit", "-m", message)
	commit.Dir = workDir
	if out, err := commit.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to commit changes (%s): %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Push pushes a branch to origin, creating the upstream on first push.
func Push(ctx context.Context, workDir, branch string) error {
	cmd := exec.CommandContext(ctx, "git", "push", "-u", "origin", branch)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		output := strings.TrimSpace(string(out))
		if output != "" {
			return fmt.Errorf("failed to push branch '%s' (%s): %w", branch, output, err)
		}
		return fmt.Errorf("failed to push branch '%s': %w", branch, err)
	}
	return nil
}
