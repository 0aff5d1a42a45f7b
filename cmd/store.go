package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fairclaim/fos-cli/internal/store"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
