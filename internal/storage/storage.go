package storage

import (
	"context"

	"go.uber.org/multierr"

	"protocolScope/internal/model"
)

// Storage is a sink for per-block change sets.
type Storage interface {
	PutBlockChanges(ctx context.Context, changes []model.BlockChanges) error
}

// Multi writes to every sink in order and reports all failures.
type Multi []Storage

func (m Multi) PutBlockChanges(ctx context.Context, changes []model.BlockChanges) error {
	var errs error
	for _, sink := range m {
		errs = multierr.Append(errs, sink.PutBlockChanges(ctx, changes))
	}
	return errs
}
