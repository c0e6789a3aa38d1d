package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the last loaded block.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, block uint64) error
}

// FileStateStore keeps progress for several named loaders in one JSON file.
type FileStateStore struct {
	Path string
	Name string
}

type stateEntry struct {
	LastProcessed uint64 `json:"last_processed_block"`
	UpdatedAt     string `json:"updated_at"`
}

type stateFile struct {
	States map[string]stateEntry `json:"states"`
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	file, err := s.read()
	if err != nil {
		return 0, false, err
	}
	entry, ok := file.States[s.Name]
	return entry.LastProcessed, ok, nil
}

func (s *FileStateStore) Save(ctx context.Context, block uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	file, err := s.read()
	if err != nil {
		return err
	}
	file.States[s.Name] = stateEntry{
		LastProcessed: block,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) read() (stateFile, error) {
	file := stateFile{States: make(map[string]stateEntry)}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse state %s: %w", s.Path, err)
	}
	if file.States == nil {
		file.States = make(map[string]stateEntry)
	}
	return file, nil
}
