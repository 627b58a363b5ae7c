// Package store adapts vector databases to the collection interface used by
// ingestion and retrieval.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/xhad/hybridrag/internal/types"
)

const (
	DefaultCollection = "default_collection"
	DefaultTopK       = 3

	DriverPGVector = "pgvector"
	DriverMemory   = "memory"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrInvalidName        = errors.New("invalid collection name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,62}$`)

func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Open returns the store for the configured driver.
func Open(ctx context.Context, driver, url string) (types.VectorStore, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPGVector, "":
		return NewPGVectorStore(ctx, PGVectorStoreConfig{ConnString: url})
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
