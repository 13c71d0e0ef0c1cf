package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists session state keyed by trading day.
type StateStore interface {
	// Load returns the saved state for date, or ok=false if none exists.
	Load(date time.Time) (st *State, ok bool, err error)
	Save(date time.Time, st *State) error
}

// FileStore keeps one JSON file per trading day under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (f *FileStore) path(date time.Time) string {
	return filepath.Join(f.Dir, "session-"+date.Format("2006-01-02")+".json")
}

func (f *FileStore) Load(date time.Time) (*State, bool, error) {
	data, err := os.ReadFile(f.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session state: %w", err)
	}
	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, false, fmt.Errorf("decode session state: %w", err)
	}
	if st.Fills == nil {
		st.Fills = make(map[string]Fill)
	}
	if st.Triggered == nil {
		st.Triggered = make(map[string]bool)
	}
	return st, true, nil
}

func (f *FileStore) Save(date time.Time, st *State) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	tmp := f.path(date) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	if err := os.Rename(tmp, f.path(date)); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}
