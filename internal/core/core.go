// Package core wires internal/token, internal/auth and internal/store
// behind the eleven action-coded operations spec.md §4 and §6 define,
// grounded on original_source/parts/core/src/lib.rs's Core struct — one
// method per dispatcher action, each decoding its own frame via
// internal/wire, doing whatever token/auth/store work the operation needs,
// and encoding a response frame. internal/dispatch is the only caller;
// Core never touches the transport.
package core

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/grovedb/grove/internal/auth"
	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/store"
	"github.com/grovedb/grove/internal/token"
	"github.com/grovedb/grove/internal/wire"
)

// Core is the server-side implementation of every operation in the action
// table (spec.md §6). One Core is shared across every connection; it holds
// no per-request state of its own beyond what internal/auth.Engine and
// internal/store.Store already protect with their own locks/transactions.
type Core struct {
	tokens *token.Service
	auth   *auth.Engine
	store  *store.Store
	log    *zap.Logger
}

// New constructs a Core from its three collaborators.
func New(tokens *token.Service, authEngine *auth.Engine, st *store.Store, log *zap.Logger) *Core {
	if log == nil {
		log = zap.NewNop()
	}
	return &Core{tokens: tokens, auth: authEngine, store: st, log: log}
}

// RegistrationStart implements action 7 (spec.md §6). The request is
// username-prefixed (spec.md §4.1); the response is the raw PAKE server
// message, per spec.md §6's action table.
func (c *Core) RegistrationStart(body []byte) ([]byte, error) {
	username, _, err := wire.DecodeUsernameFrame(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}
	return c.auth.RegistrationStart(username), nil
}

// RegistrationFinish implements action 6 (spec.md §6). The response is
// empty on success, per spec.md's action table.
func (c *Core) RegistrationFinish(body []byte) ([]byte, error) {
	username, clientFinish, err := wire.DecodeUsernameFrame(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}
	if _, err := c.auth.RegistrationFinish(username, clientFinish); err != nil {
		return nil, err
	}
	return []byte{}, nil
}

// LoginStart implements action 5 (spec.md §6). The response is the raw PAKE
// server message, per spec.md §6's action table.
func (c *Core) LoginStart(body []byte) ([]byte, error) {
	username, clientStart, err := wire.DecodeUsernameFrame(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}
	return c.auth.LoginStart(username, clientStart)
}

// LoginFinish implements action 4 (spec.md §6): the response is the sealed
// refresh token.
func (c *Core) LoginFinish(body []byte) ([]byte, error) {
	username, clientFinish, err := wire.DecodeUsernameFrame(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}
	return c.auth.LoginFinish(username, clientFinish)
}

// AccessGet implements action 0 (spec.md §4.4.1): downgrade a refresh token
// into a narrowly-scoped, short-lived access token. When a group is
// requested the downgrade is gated by an exact-match access-rule probe;
// without a group only the refresh token itself is verified.
func (c *Core) AccessGet(body []byte) ([]byte, error) {
	refresh, action, group, err := wire.DecodeAccessGetRequest(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}

	user, err := c.tokens.VerifyRefresh(refresh, wire.TokenActionRefresh)
	if err != nil {
		return nil, err
	}

	// The group-scoped probe checks the same (subject, group, permission)
	// rule group_create seeds: a refresh token only downgrades into a
	// group-bound access token if its owner actually holds the group's
	// read/write grant. With no group requested there is nothing to check
	// membership against yet (scenario S2 mints an ungrouped access token
	// for group_create before any group exists), so the refresh token's own
	// verification above is the only gate.
	if group != nil {
		granted, grantErr := c.store.HasAccessRule(user, *group, wire.PermissionReadWrite)
		if grantErr != nil {
			return nil, grantErr
		}
		if !granted {
			return nil, errs.ErrUnauthorized
		}
	}

	if group != nil {
		return c.tokens.MintAccess(action, user, *group)
	}
	return c.tokens.MintRefresh(action, user)
}

// GroupCreate implements action 2 (spec.md §4.4.2).
func (c *Core) GroupCreate(body []byte) ([]byte, error) {
	if len(body) != wire.RefreshTokenLen {
		return nil, fmt.Errorf("%w: group_create request must be %d bytes", errs.ErrFraming, wire.RefreshTokenLen)
	}
	user, err := c.tokens.VerifyRefresh(body, wire.TokenActionGroupCreate)
	if err != nil {
		return nil, err
	}
	group, err := c.store.GroupCreate(user)
	if err != nil {
		return nil, err
	}
	return group[:], nil
}

// StoragePut implements action 10 (spec.md §4.4.3).
func (c *Core) StoragePut(body []byte) ([]byte, error) {
	req, err := wire.DecodeStoragePutRequest(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}
	user, group, err := c.tokens.VerifyAccess(req.Token, wire.TokenActionStoragePut)
	if err != nil {
		return nil, err
	}
	id, err := c.store.StoragePut(user, group, req.Parent, req.Kind, req.Grandparent, req.ParentKind, req.Payload)
	if err != nil {
		return nil, err
	}
	return id[:], nil
}

// StorageQuery implements action 11 (spec.md §4.4.4).
func (c *Core) StorageQuery(body []byte) ([]byte, error) {
	tokenBytes, triples, err := wire.DecodeStorageQueryRequest(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}
	_, group, err := c.tokens.VerifyAccess(tokenBytes, wire.TokenActionStorageQuery)
	if err != nil {
		return nil, err
	}
	result, err := c.store.StorageQuery(group, triples)
	if err != nil {
		return nil, err
	}
	return result.Encode()
}

// Reserved implements the reserved action codes (group_assign, group_drop,
// secret_get, secret_put): present in the action table, no defined wire
// shape or effect (spec.md §9(a)/(d)).
func (c *Core) Reserved(_ []byte) ([]byte, error) {
	return nil, errs.ErrReserved
}

// Stat exposes internal/store's environment introspection (SPEC_FULL.md §C),
// outside the action table.
func (c *Core) Stat() (store.Stats, error) {
	return c.store.Stat()
}
