package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"protocolScope/internal/model"
)

// Checkpoint tracks the last block whose changes reached the sink.
type Checkpoint struct {
	Protocol           string `json:"protocol"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	LastBlockHash      string `json:"last_block_hash,omitempty"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path     string
	enabled  bool
	protocol string
}

func NewCheckpointStore(path string, enabled bool, protocol string) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled, protocol: protocol}
}

// Load returns the stored checkpoint. A checkpoint written for another
// protocol is a config error.
func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Protocol != "" && cp.Protocol != c.protocol {
		return Checkpoint{}, false, fmt.Errorf("%w: checkpoint %s belongs to protocol %q", model.ErrConfig, c.path, cp.Protocol)
	}

	return cp, true, nil
}

func (c *CheckpointStore) Save(block model.BlockRef) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		Protocol:           c.protocol,
		LastProcessedBlock: block.Number,
		LastBlockHash:      block.Hash.Hex(),
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
