package fixer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
)

var recordNameStrip = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// RecordStore persists one FixRecord per session as a JSON document
// under <dir>/fixes. Every write replaces the whole document
// atomically, so a crash never leaves a half-written record.
type RecordStore struct {
	dir string
}

func NewRecordStore(stateDir string) *RecordStore {
	return &RecordStore{dir: filepath.Join(stateDir, "fixes")}
}

func (s *RecordStore) path(issueID string) string {
	return filepath.Join(s.dir, recordNameStrip.ReplaceAllString(issueID, "-")+".json")
}

// Save writes the record to disk, creating the directory on first use.
func (s *RecordStore) Save(rec *domain.FixRecord) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating fix record dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding fix record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".fix-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing fix record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(rec.IssueID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing fix record: %w", err)
	}
	return nil
}

// Load reads the record for one issue. A missing record returns
// os.ErrNotExist wrapped.
func (s *RecordStore) Load(issueID string) (*domain.FixRecord, error) {
	data, err := os.ReadFile(s.path(issueID))
	if err != nil {
		return nil, fmt.Errorf("reading fix record: %w", err)
	}
	var rec domain.FixRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("fix record %s is corrupt: %w", s.path(issueID), err)
	}
	return &rec, nil
}
