package repository

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// OpenDB opens the embedded metadata store at path. Badger's own logger is
// disabled; the repositories log through zap instead.
func OpenDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}
