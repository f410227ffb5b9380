package store

import (
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/gofrs/uuid/v5"

	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/wire"
)

// GroupCreate implements group_create (spec.md §4.4.2): mint a fresh random
// group id and seed it with the creator's own read/write grant, atomically.
func (s *Store) GroupCreate(user [wire.UUIDLen]byte) (group [wire.UUIDLen]byte, err error) {
	id, err := uuid.NewV4()
	if err != nil {
		return group, fmt.Errorf("store: generating group id: %w", err)
	}
	group = [wire.UUIDLen]byte(id)

	err = s.env.Update(func(txn *mdbx.Txn) error {
		if putErr := putAccessRule(txn, s.access, user, group, wire.PermissionReadWrite); putErr != nil {
			return fmt.Errorf("%w: %v", errs.ErrStore, putErr)
		}
		return nil
	})
	if err != nil {
		return [wire.UUIDLen]byte{}, err
	}
	return group, nil
}
