package store

import (
	"bytes"
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/gofrs/uuid/v5"

	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/wire"
)

// StoragePut implements storage_put (spec.md §4.4.3): mint a time-ordered
// entity id, check the caller's group holds a read/write grant on parent,
// and atomically write both the entity record and the read-grant rule on
// the new entity. Steps 4-6 of spec.md §4.4.3 are one write transaction;
// failure at the parent-grant check aborts both writes.
func (s *Store) StoragePut(user, group, parent [wire.UUIDLen]byte, kind byte, grandparent [wire.UUIDLen]byte, parentKind byte, payload []byte) (id [wire.UUIDLen]byte, err error) {
	generated, err := uuid.NewV7()
	if err != nil {
		return id, fmt.Errorf("store: generating entity id: %w", err)
	}
	id = [wire.UUIDLen]byte(generated)

	entityValue := wire.EncodeEntity(wire.Entity{
		Grandparent: grandparent,
		ParentKind:  parentKind,
		User:        user,
		Payload:     payload,
	})

	err = s.env.Update(func(txn *mdbx.Txn) error {
		granted, grantErr := hasAccessRule(txn, s.access, parent, group, wire.PermissionReadWrite)
		if grantErr != nil {
			return grantErr
		}
		if !granted {
			return errs.ErrUnauthorized
		}

		if putErr := txn.Put(s.entities, entityKey(parent, kind, id), entityValue, 0); putErr != nil {
			return fmt.Errorf("%w: %v", errs.ErrStore, putErr)
		}
		if grantErr := putAccessRule(txn, s.access, id, group, wire.PermissionRead); grantErr != nil {
			return fmt.Errorf("%w: %v", errs.ErrStore, grantErr)
		}
		return nil
	})
	if err != nil {
		return [wire.UUIDLen]byte{}, err
	}
	return id, nil
}

// StorageQuery implements storage_query (spec.md §4.4.4): for every
// (parent, kind) pair named by a triple's Parent field and Kinds list, scan
// the Entities keyspace's parent||kind prefix (spec.md §3's keyspace 4
// description: "a prefix scan on parent_uuid ∥ kind returns all children of
// one entity under a given relation"), keep only children the caller's
// group holds a read grant on, and group survivors by parent then kind.
//
// A triple's Entity field is decoded and round-tripped by internal/wire but
// not used as a second scan key here: spec.md §3's own prefix-scan
// description and scenario S3 both key the scan on Parent, and using Entity
// as an independent filter would make every ordinary multi-child query
// return at most one row regardless of how many children actually matched.
func (s *Store) StorageQuery(group [wire.UUIDLen]byte, triples []wire.QueryTriple) (wire.QueryResult, error) {
	var result wire.QueryResult

	err := s.env.View(func(txn *mdbx.Txn) error {
		cur, curErr := txn.OpenCursor(s.entities)
		if curErr != nil {
			return fmt.Errorf("%w: %v", errs.ErrStore, curErr)
		}
		defer cur.Close()

		for _, triple := range triples {
			grp := wire.QueryGroup{Parent: triple.Parent}

			for _, kind := range triple.Kinds {
				entries, scanErr := s.scanKind(txn, cur, triple.Parent, kind, group)
				if scanErr != nil {
					return scanErr
				}
				grp.Kinds = append(grp.Kinds, wire.KindEntities{Kind: kind, Entries: entries})
			}

			result.Groups = append(result.Groups, grp)
		}
		return nil
	})
	if err != nil {
		return wire.QueryResult{}, err
	}
	return result, nil
}

// scanKind walks every entity key sharing the parent||kind prefix in
// ascending order (ascending by entity_uuid, per spec.md §4.4.4, since
// entity ids are v7 and therefore time-ordered), keeping only rows the
// caller's group can read.
func (s *Store) scanKind(txn *mdbx.Txn, cur *mdbx.Cursor, parent [wire.UUIDLen]byte, kind byte, group [wire.UUIDLen]byte) ([]wire.ResultEntity, error) {
	prefix := entityPrefix(parent, kind)

	var entries []wire.ResultEntity
	k, v, err := cur.Get(prefix, nil, mdbx.SetRange)
	for {
		if err != nil {
			if mdbx.IsNotFound(err) {
				break
			}
			return nil, fmt.Errorf("%w: %v", errs.ErrStore, err)
		}
		if len(k) != entityKeyLen || !bytes.HasPrefix(k, prefix) {
			break
		}

		var childID [wire.UUIDLen]byte
		copy(childID[:], k[wire.UUIDLen+1:])

		readable, grantErr := hasAccessRule(txn, s.access, childID, group, wire.PermissionRead)
		if grantErr != nil {
			return nil, grantErr
		}
		if readable {
			ent, decErr := wire.DecodeEntity(v)
			if decErr != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrStore, decErr)
			}
			entries = append(entries, wire.ResultEntity{ID: childID, User: ent.User, Value: ent.Payload})
		}

		k, v, err = cur.Get(nil, nil, mdbx.Next)
	}
	return entries, nil
}
