package store

import (
	"errors"
	"fmt"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/wire"
)

// Credentials keyspace value layout: user_uuid(16) || password_file(...).
const credentialValueHeaderLen = wire.UUIDLen

// CreateCredential persists a newly registered user atomically: the
// Credentials row (spec.md §3 keyspace 1) and a Users row (keyspace 2,
// opaque per spec §9(b) — here just the originating username). A username
// row is written once; a second registration_finish for the same username
// fails here without touching either keyspace, matching the "write once,
// never updated" lifecycle in spec.md §3.
func (s *Store) CreateCredential(username string, userID [wire.UUIDLen]byte, passwordFile []byte) error {
	return s.env.Update(func(txn *mdbx.Txn) error {
		if _, err := txn.Get(s.credentials, []byte(username)); err == nil {
			return errs.ErrAlreadyExists
		} else if !mdbx.IsNotFound(err) {
			return fmt.Errorf("%w: %v", errs.ErrStore, err)
		}

		value := make([]byte, 0, credentialValueHeaderLen+len(passwordFile))
		value = append(value, userID[:]...)
		value = append(value, passwordFile...)
		if err := txn.Put(s.credentials, []byte(username), value, 0); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrStore, err)
		}

		userRecord := []byte(username)
		if err := txn.Put(s.users, userID[:], userRecord, 0); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrStore, err)
		}
		return nil
	})
}

// GetCredential loads the user id and password file stored for username.
func (s *Store) GetCredential(username string) (userID [wire.UUIDLen]byte, passwordFile []byte, err error) {
	err = s.env.View(func(txn *mdbx.Txn) error {
		v, getErr := txn.Get(s.credentials, []byte(username))
		if getErr != nil {
			if mdbx.IsNotFound(getErr) {
				return errs.ErrNotFound
			}
			return fmt.Errorf("%w: %v", errs.ErrStore, getErr)
		}
		if len(v) < credentialValueHeaderLen {
			return fmt.Errorf("%w: corrupt credential row for %q", errs.ErrStore, username)
		}
		copy(userID[:], v[:credentialValueHeaderLen])
		passwordFile = append([]byte(nil), v[credentialValueHeaderLen:]...)
		return nil
	})
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return userID, nil, err
	}
	return userID, passwordFile, err
}
