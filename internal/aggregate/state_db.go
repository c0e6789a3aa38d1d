package aggregate

import (
	"context"
	"fmt"

	"protocolScope/internal/storage/postgres"
)

// DBStateStore keeps progress in the indexer_state row called Name.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	last, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil {
		return 0, false, fmt.Errorf("load state %s: %w", s.Name, err)
	}
	return last, ok, nil
}

func (s *DBStateStore) Save(ctx context.Context, block uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	if err := s.Store.SaveState(ctx, s.Name, block); err != nil {
		return fmt.Errorf("save state %s: %w", s.Name, err)
	}
	return nil
}
