// Package ticket persists approved issues as markdown ticket files.
package ticket

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
)

// Store is the ticket backend the pipeline and fixer write to and read
// from. The default implementation keeps one markdown file per issue;
// alternative backends (an issue tracker, say) implement the same surface.
type Store interface {
	// Create writes a ticket for the issue and returns its reference.
	Create(issue domain.CandidateIssue) (string, error)
	// Exists reports whether a ticket for the issue ID is present.
	Exists(issueID string) (bool, error)
	// Read returns the ticket body for the issue ID.
	Read(issueID string) (string, error)
	// Remove deletes the ticket for the issue ID.
	Remove(issueID string) error
	// Path returns the location of the ticket for display purposes.
	Path(issueID string) string
}

// Compile-time interface check
var _ Store = (*DirStore)(nil)

// DirStore stores tickets as markdown files in a flat directory, named
// by issue ID.
type DirStore struct {
	dir string
}

// NewDirStore creates a DirStore rooted at dir. The directory is created
// on first write.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeID maps an issue ID to a safe file name component.
func sanitizeID(id string) string {
	return unsafeIDChars.ReplaceAllString(id, "-")
}

// Create writes the ticket file and returns its path.
func (d *DirStore) Create(issue domain.CandidateIssue) (string, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create tickets directory %s: %w", d.dir, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", issue.Title)
	fmt.Fprintf(&b, "- **ID**: %s\n", issue.ID)
	fmt.Fprintf(&b, "- **Agent**: %s\n", issue.AgentID)
	if issue.File != "" {
		if issue.Line > 0 {
			fmt.Fprintf(&b, "- **Location**: %s:%d\n", issue.File, issue.Line)
		} else {
			fmt.Fprintf(&b, "- **Location**: %s\n", issue.File)
		}
	}
	fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(issue.Description))

	path := d.Path(issue.ID)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write ticket for %s: %w", issue.ID, err)
	}
	return path, nil
}

// Exists reports whether the ticket file is present.
func (d *DirStore) Exists(issueID string) (bool, error) {
	_, err := os.Stat(d.Path(issueID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat ticket for %s: %w", issueID, err)
	}
	return true, nil
}

// Read returns the ticket body.
func (d *DirStore) Read(issueID string) (string, error) {
	data, err := os.ReadFile(d.Path(issueID))
	if err != nil {
		return "", fmt.Errorf("failed to read ticket for %s: %w", issueID, err)
	}
	return string(data), nil
}

// Remove deletes the ticket file. Removing a missing ticket is an error;
// callers check Exists first when absence is acceptable.
func (d *DirStore) Remove(issueID string) error {
	if err := os.Remove(d.Path(issueID)); err != nil {
		return fmt.Errorf("failed to remove ticket for %s: %w", issueID, err)
	}
	return nil
}

// Path returns the ticket file path for an issue ID.
func (d *DirStore) Path(issueID string) string {
	return filepath.Join(d.dir, sanitizeID(issueID)+".md")
}
