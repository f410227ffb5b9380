package wire

import (
	"encoding/binary"
	"fmt"
)

// Entity is the decoded value half of an entity_db record. The key half
// (parent || kind || id) is addressed separately by internal/store; Entity
// only covers what storage_put writes as the value:
// grandparent(16) || parent_kind(1) || user(16) || payload.
type Entity struct {
	Grandparent [UUIDLen]byte
	ParentKind  byte
	User        [UUIDLen]byte
	Payload     []byte
}

const entityHeaderLen = UUIDLen + 1 + UUIDLen

// EncodeEntity lays out an entity_db value.
func EncodeEntity(e Entity) []byte {
	buf := make([]byte, 0, entityHeaderLen+len(e.Payload))
	buf = append(buf, e.Grandparent[:]...)
	buf = append(buf, e.ParentKind)
	buf = append(buf, e.User[:]...)
	buf = append(buf, e.Payload...)
	return buf
}

// DecodeEntity parses an entity_db value.
func DecodeEntity(b []byte) (Entity, error) {
	if len(b) < entityHeaderLen {
		return Entity{}, fmt.Errorf("wire: entity value shorter than header (%d)", entityHeaderLen)
	}
	var e Entity
	off := 0
	copy(e.Grandparent[:], b[off:off+UUIDLen])
	off += UUIDLen
	e.ParentKind = b[off]
	off++
	copy(e.User[:], b[off:off+UUIDLen])
	off += UUIDLen
	e.Payload = append([]byte(nil), b[off:]...)
	return e, nil
}

// ResultEntity is one row of a storage_query response: spec.md §4.4.4 point
// 4 appends `{ uuid: child_uuid, user: owner_user, value: payload }` per
// matching, access-granted child — the entity's grandparent and parent_kind
// are internal bookkeeping for storage_put/storage_query's own traversal and
// are not part of what a caller gets back.
type ResultEntity struct {
	ID    [UUIDLen]byte
	User  [UUIDLen]byte
	Value []byte
}

const resultEntityHeaderLen = UUIDLen + UUIDLen

// EncodeResultEntity lays out a storage_query response row: id(16) ||
// user(16) || value.
func EncodeResultEntity(e ResultEntity) []byte {
	buf := make([]byte, 0, resultEntityHeaderLen+len(e.Value))
	buf = append(buf, e.ID[:]...)
	buf = append(buf, e.User[:]...)
	buf = append(buf, e.Value...)
	return buf
}

// DecodeResultEntity parses a storage_query response row.
func DecodeResultEntity(b []byte) (ResultEntity, error) {
	if len(b) < resultEntityHeaderLen {
		return ResultEntity{}, fmt.Errorf("wire: result entity shorter than header (%d)", resultEntityHeaderLen)
	}
	var e ResultEntity
	off := 0
	copy(e.ID[:], b[off:off+UUIDLen])
	off += UUIDLen
	copy(e.User[:], b[off:off+UUIDLen])
	off += UUIDLen
	e.Value = append([]byte(nil), b[off:]...)
	return e, nil
}

// KindEntities groups every entity of one kind found for a given parent in
// ascending key order, the traversal order storage_query walks in.
type KindEntities struct {
	Kind    byte
	Entries []ResultEntity
}

// QueryGroup is everything found under one parent uuid, keyed by kind.
type QueryGroup struct {
	Parent [UUIDLen]byte
	Kinds  []KindEntities
}

// QueryResult is the self-describing storage_query response shape: a
// mapping from parent uuid to a mapping from kind to the sequence of
// entities found, in the order the request's triples and the store's
// ascending key scan produced them.
//
//	group_count(2) ||
//	repeat( parent(16) || kind_count(1) ||
//	  repeat( kind(1) || entry_count(2) ||
//	    repeat( entry_len(4) || entry_bytes ) ) )
type QueryResult struct {
	Groups []QueryGroup
}

// Encode lays out the self-describing query result. Unlike the request
// frames, this response has no fixed shape: the number of groups, kinds per
// group and entities per kind all vary with what the store found, so every
// repeated section is explicitly length-prefixed.
func (r QueryResult) Encode() ([]byte, error) {
	if len(r.Groups) > 0xFFFF {
		return nil, fmt.Errorf("wire: query result has too many groups (%d)", len(r.Groups))
	}
	var buf []byte
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Groups)))
	for _, g := range r.Groups {
		if len(g.Kinds) > 0xFF {
			return nil, fmt.Errorf("wire: query result group has too many kinds (%d)", len(g.Kinds))
		}
		buf = append(buf, g.Parent[:]...)
		buf = append(buf, byte(len(g.Kinds)))
		for _, k := range g.Kinds {
			if len(k.Entries) > 0xFFFF {
				return nil, fmt.Errorf("wire: query result kind has too many entries (%d)", len(k.Entries))
			}
			buf = append(buf, k.Kind)
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(k.Entries)))
			for _, e := range k.Entries {
				enc := EncodeResultEntity(e)
				buf = binary.BigEndian.AppendUint32(buf, uint32(len(enc)))
				buf = append(buf, enc...)
			}
		}
	}
	return buf, nil
}

// DecodeQueryResult parses a self-describing query result produced by Encode.
func DecodeQueryResult(b []byte) (QueryResult, error) {
	var r QueryResult
	if len(b) < 2 {
		return r, fmt.Errorf("wire: query result shorter than group count")
	}
	groupCount := binary.BigEndian.Uint16(b[:2])
	rest := b[2:]

	for i := 0; i < int(groupCount); i++ {
		if len(rest) < UUIDLen+1 {
			return QueryResult{}, fmt.Errorf("wire: truncated query result group header")
		}
		var g QueryGroup
		copy(g.Parent[:], rest[:UUIDLen])
		kindCount := int(rest[UUIDLen])
		rest = rest[UUIDLen+1:]

		for j := 0; j < kindCount; j++ {
			if len(rest) < 3 {
				return QueryResult{}, fmt.Errorf("wire: truncated query result kind header")
			}
			var k KindEntities
			k.Kind = rest[0]
			entryCount := binary.BigEndian.Uint16(rest[1:3])
			rest = rest[3:]

			for e := 0; e < int(entryCount); e++ {
				if len(rest) < 4 {
					return QueryResult{}, fmt.Errorf("wire: truncated query result entry length")
				}
				entryLen := binary.BigEndian.Uint32(rest[:4])
				rest = rest[4:]
				if uint32(len(rest)) < entryLen {
					return QueryResult{}, fmt.Errorf("wire: truncated query result entry body")
				}
				entity, err := DecodeResultEntity(rest[:entryLen])
				if err != nil {
					return QueryResult{}, err
				}
				k.Entries = append(k.Entries, entity)
				rest = rest[entryLen:]
			}
			g.Kinds = append(g.Kinds, k)
		}
		r.Groups = append(r.Groups, g)
	}
	return r, nil
}
