package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store reads and writes the persisted state file. Saves go through a
// temp file in the same directory followed by a rename, so a crash
// mid-write leaves the previous snapshot intact. The mutex serializes
// writers within the process; concurrent load-modify-store sequences
// (a command racing a poll cycle) are last-writer-wins.
type Store struct {
	Path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path, creating the parent directory.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir state dir: %w", err)
		}
	}
	return &Store{Path: path}, nil
}

// Load reads the state file. A missing file is a fresh install and a
// corrupt file is treated the same way after a warning; neither is an
// error, so a damaged snapshot never wedges the service.
func (s *Store) Load() (*State, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	st := Default()
	if err := json.Unmarshal(raw, st); err != nil {
		slog.Warn("state file corrupt, starting from empty state", slog.String("path", s.Path), slog.Any("err", err))
		return Default(), nil
	}
	if st.RecentScores == nil {
		st.RecentScores = []Announcement{}
	}
	if st.VideoQueue == nil {
		st.VideoQueue = []VideoQueueEntry{}
	}
	if st.Subscriptions == nil {
		st.Subscriptions = []SubscribedChannel{}
	}
	return st, nil
}

// Save atomically replaces the state file with st.
func (s *Store) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".herald-state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
