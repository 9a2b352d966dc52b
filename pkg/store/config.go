package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Config holds the configuration for the BadgerDB-backed store.
type Config struct {
	// DataDir is the directory where BadgerDB will store its data.
	DataDir string

	// InMemory enables in-memory mode (useful for testing).
	InMemory bool

	// SyncWrites enables synchronous writes.
	// Disabled for performance, but may lose recent writes on crash.
	SyncWrites bool

	// Compression enables ZSTD compression.
	Compression bool

	// ReadOnly opens the store in read-only mode.
	ReadOnly bool
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.DataDir == "" && !c.InMemory {
		return fmt.Errorf("DataDir must be specified when InMemory is false")
	}
	return nil
}

// DefaultConfig returns a configuration suitable for serving on small
// instances (Cloud Run class machines).
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:     dataDir,
		Compression: true,
		SyncWrites:  true,
	}
}

func buildBadgerOptions(cfg Config) badger.Options {
	if cfg.InMemory {
		opts := badger.DefaultOptions("")
		opts.InMemory = true
		return opts
	}

	opts := badger.DefaultOptions(cfg.DataDir)

	// Conflict detection stays ON: list appends (user.contractSpace,
	// space.contracts) rely on transaction conflicts plus retry to avoid
	// lost updates under concurrent writers.
	opts.DetectConflicts = true

	opts.SyncWrites = cfg.SyncWrites
	opts.ReadOnly = cfg.ReadOnly
	opts.BloomFalsePositive = 0.01
	opts.Logger = nil // badger's own INFO chatter drowns application logs

	if cfg.Compression {
		opts.Compression = options.ZSTD
	} else {
		opts.Compression = options.None
	}

	// Entity documents are tiny; keep the value log small to minimize mmap
	// overhead on shared/emulated drives.
	opts.ValueLogFileSize = 64 << 20 // 64MB
	opts.NumCompactors = 2

	return opts
}
