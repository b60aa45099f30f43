package crawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FrontierLedgerName is the file, inside the staging directory, that holds
// URLs a run queued but never dispatched.
const FrontierLedgerName = ".frontier.json"

type ledgerFile struct {
	SavedAt time.Time `json:"saved_at"`
	RunID   string    `json:"run_id,omitempty"`
	URLs    []string  `json:"urls"`
}

// FrontierLedger carries the pending frontier of a run that stopped early
// (page budget or cancellation) over to the next run.
type FrontierLedger struct {
	path string
}

// NewFrontierLedger returns a ledger stored in dir.
func NewFrontierLedger(dir string) *FrontierLedger {
	return &FrontierLedger{path: filepath.Join(dir, FrontierLedgerName)}
}

// Path returns the ledger file location.
func (l *FrontierLedger) Path() string {
	return l.path
}

// Load returns the saved URLs. A missing ledger yields no URLs and no error.
func (l *FrontierLedger) Load() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read frontier ledger: %w", err)
	}
	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode frontier ledger: %w", err)
	}
	return file.URLs, nil
}

// Save replaces the ledger with urls. An empty list removes the ledger.
func (l *FrontierLedger) Save(runID string, urls []string, at time.Time) error {
	if len(urls) == 0 {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove frontier ledger: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(ledgerFile{SavedAt: at, RunID: runID, URLs: urls}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode frontier ledger: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".frontier-*.part")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write frontier ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close frontier ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename frontier ledger: %w", err)
	}
	return nil
}
