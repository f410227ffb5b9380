// Package store implements the transactional entity store (spec.md §4.4):
// an embedded, memory-mapped, ordered-key engine (github.com/erigontech/mdbx-go)
// holding the six logical keyspaces — credentials, users, access rules,
// entities, references and secrets — and the group_create/storage_put/
// storage_query/access_get transactions that mediate every write and read
// through a group-based access rule.
//
// Grounded on original_source/parts/core/src/lib.rs's Core struct (env +
// six database handles, opened once at startup) and
// original_source/system/core/src/ops/*.rs's per-operation transaction
// bodies, with the transitive group-hierarchy cursor walk from the earlier
// parts/core draft deliberately not reintroduced — spec.md §9 calls that out
// as the chief correctness hazard in the source and mandates the flat,
// single-probe design instead.
package store

import (
	"fmt"
	"os"

	"github.com/erigontech/mdbx-go/mdbx"
	"go.uber.org/zap"
)

// Keyspace names. Unlike the Rust original's numeric table names ("0".."5"),
// mdbx-go opens named sub-databases inside one environment, so these are
// descriptive; the layout they hold is unchanged from spec.md §3.
const (
	dbCredentials = "credentials"
	dbUsers       = "users"
	dbAccess      = "access"
	dbEntities    = "entities"
	dbReferences  = "references"
	dbSecrets     = "secrets"
)

// Config configures the environment. Defaults mirror the original's
// development footprint (spec.md §6 "defaults used by tests may assume a
// small development footprint"), not a production sizing.
type Config struct {
	// Dir is the directory the environment's data and lock files live in.
	// It is created if missing.
	Dir string

	// MapSizeBytes bounds the memory-mapped region and therefore the total
	// size the environment can grow to without a remap. Zero selects a
	// small development default.
	MapSizeBytes int64

	// MaxReaders bounds concurrent read transactions. Zero selects mdbx's
	// built-in default.
	MaxReaders int
}

const defaultMapSize = 64 << 20 // 64MiB, a development footprint

// Store owns the mdbx environment and the six keyspace handles.
type Store struct {
	env *mdbx.Env

	credentials mdbx.DBI
	users       mdbx.DBI
	access      mdbx.DBI
	entities    mdbx.DBI
	references  mdbx.DBI
	secrets     mdbx.DBI

	log *zap.Logger
}

// Open creates cfg.Dir if needed, opens the mdbx environment and all six
// keyspaces, creating them on first use.
func Open(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("store: dir must not be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", cfg.Dir, err)
	}

	mapSize := cfg.MapSizeBytes
	if mapSize <= 0 {
		mapSize = defaultMapSize
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("store: new env: %w", err)
	}
	if err := env.SetGeometry(-1, int(mapSize), int(mapSize), -1, -1, -1); err != nil {
		env.Close()
		return nil, fmt.Errorf("store: set geometry: %w", err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, 6); err != nil {
		env.Close()
		return nil, fmt.Errorf("store: set max dbs: %w", err)
	}
	if cfg.MaxReaders > 0 {
		if err := env.SetOption(mdbx.OptMaxReaders, uint64(cfg.MaxReaders)); err != nil {
			env.Close()
			return nil, fmt.Errorf("store: set max readers: %w", err)
		}
	}
	if err := env.Open(cfg.Dir, 0, 0o600); err != nil {
		env.Close()
		return nil, fmt.Errorf("store: open %s: %w", cfg.Dir, err)
	}

	s := &Store{env: env, log: log}
	if err := env.Update(func(txn *mdbx.Txn) error {
		var err error
		if s.credentials, err = txn.OpenDBI(dbCredentials, mdbx.Create, nil, nil); err != nil {
			return err
		}
		if s.users, err = txn.OpenDBI(dbUsers, mdbx.Create, nil, nil); err != nil {
			return err
		}
		if s.access, err = txn.OpenDBI(dbAccess, mdbx.Create|mdbx.DupSort|mdbx.DupFixed, nil, nil); err != nil {
			return err
		}
		if s.entities, err = txn.OpenDBI(dbEntities, mdbx.Create, nil, nil); err != nil {
			return err
		}
		if s.references, err = txn.OpenDBI(dbReferences, mdbx.Create|mdbx.DupSort|mdbx.DupFixed, nil, nil); err != nil {
			return err
		}
		if s.secrets, err = txn.OpenDBI(dbSecrets, mdbx.Create, nil, nil); err != nil {
			return err
		}
		return nil
	}); err != nil {
		env.Close()
		return nil, fmt.Errorf("store: opening keyspaces: %w", err)
	}

	return s, nil
}

// Close releases the environment. It is not safe to call concurrently with
// any in-flight transaction.
func (s *Store) Close() {
	s.env.Close()
}

// Stats reports environment-wide statistics: page count, tree depth and
// entry counts per keyspace. It is operational introspection, not part of
// the action table (SPEC_FULL.md §C).
type Stats struct {
	Credentials mdbx.Stat
	Users       mdbx.Stat
	Access      mdbx.Stat
	Entities    mdbx.Stat
	References  mdbx.Stat
	Secrets     mdbx.Stat
}

// Stat returns a Stats snapshot under a read transaction.
func (s *Store) Stat() (Stats, error) {
	var out Stats
	err := s.env.View(func(txn *mdbx.Txn) error {
		var err error
		if out.Credentials, err = txn.StatDBI(s.credentials); err != nil {
			return err
		}
		if out.Users, err = txn.StatDBI(s.users); err != nil {
			return err
		}
		if out.Access, err = txn.StatDBI(s.access); err != nil {
			return err
		}
		if out.Entities, err = txn.StatDBI(s.entities); err != nil {
			return err
		}
		if out.References, err = txn.StatDBI(s.references); err != nil {
			return err
		}
		if out.Secrets, err = txn.StatDBI(s.secrets); err != nil {
			return err
		}
		return nil
	})
	return out, err
}
