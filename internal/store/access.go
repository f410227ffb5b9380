package store

import (
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/wire"
)

// HasAccessRule probes the Access keyspace for the exact-match
// (subject, group, permission) grant (spec.md §3 keyspace 3). The value is
// always empty; only the key's presence matters. This is a single exact-key
// lookup, never a range scan or a DUPSORT chain walk — spec.md §9 forbids
// reintroducing the transitive-membership cursor walk from the source's
// earlier draft.
func (s *Store) HasAccessRule(subject, group [wire.UUIDLen]byte, permission byte) (bool, error) {
	var found bool
	err := s.env.View(func(txn *mdbx.Txn) error {
		_, getErr := txn.Get(s.access, accessKey(subject, group, permission))
		switch {
		case getErr == nil:
			found = true
			return nil
		case mdbx.IsNotFound(getErr):
			found = false
			return nil
		default:
			return fmt.Errorf("%w: %v", errs.ErrStore, getErr)
		}
	})
	return found, err
}

// putAccessRule writes the access-rule key within an already-open write
// transaction. The value is always empty (spec.md §3): presence of the key
// is the grant.
func putAccessRule(txn *mdbx.Txn, dbi mdbx.DBI, subject, group [wire.UUIDLen]byte, permission byte) error {
	return txn.Put(dbi, accessKey(subject, group, permission), []byte{}, 0)
}

// hasAccessRule probes the Access keyspace within an already-open
// transaction (read or write), for use inside a larger atomic operation
// such as storage_put's parent-grant check.
func hasAccessRule(txn *mdbx.Txn, dbi mdbx.DBI, subject, group [wire.UUIDLen]byte, permission byte) (bool, error) {
	_, err := txn.Get(dbi, accessKey(subject, group, permission))
	switch {
	case err == nil:
		return true, nil
	case mdbx.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", errs.ErrStore, err)
	}
}
