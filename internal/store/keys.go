package store

import "github.com/grovedb/grove/internal/wire"

// accessKeyLen is the 33-byte access-rule key (spec.md §3):
// subject_uuid(16) || group_uuid(16) || permission(1).
const accessKeyLen = wire.UUIDLen + wire.UUIDLen + 1

func accessKey(subject, group [wire.UUIDLen]byte, permission byte) []byte {
	k := make([]byte, accessKeyLen)
	copy(k[0:16], subject[:])
	copy(k[16:32], group[:])
	k[32] = permission
	return k
}

// entityKeyLen is the 33-byte entity key (spec.md §3):
// parent_uuid(16) || kind(1) || entity_uuid(16).
const entityKeyLen = wire.UUIDLen + 1 + wire.UUIDLen

func entityKey(parent [wire.UUIDLen]byte, kind byte, id [wire.UUIDLen]byte) []byte {
	k := make([]byte, entityKeyLen)
	copy(k[0:16], parent[:])
	k[16] = kind
	copy(k[17:33], id[:])
	return k
}

// entityPrefix composes the parent||kind scan prefix storage_query seeks to
// (spec.md §4.4.4): all children sharing one (parent, kind) sort together
// and immediately after this prefix.
func entityPrefix(parent [wire.UUIDLen]byte, kind byte) []byte {
	k := make([]byte, wire.UUIDLen+1)
	copy(k[0:16], parent[:])
	k[16] = kind
	return k
}
