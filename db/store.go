package db

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key holds no value
var ErrNotFound = errors.New("key not found")

// Store is the key-value contract both persistence backends implement.
// Values are opaque serialized payloads; decoding happens one layer up.
//
// Failures to reach the underlying store are returned as errors and are never
// folded into ErrNotFound, so callers can tell "empty" from "unavailable".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by the store
	Clear(ctx context.Context) error
	Close() error
}

// Driver identifies a concrete local store implementation
type Driver string

const (
	DriverMemory Driver = "memory" // in-process map (tests / ephemeral)
	DriverSQLite Driver = "sqlite" // embedded sqlite file
	DriverBolt   Driver = "bolt"   // embedded bbolt file
)
