// Package wire implements the fixed-layout binary encode/decode routines
// shared by every operation: tokens, registration/login frames, and the
// access_get/group_create/storage_put/storage_query request/response
// shapes. All multi-byte integers are big-endian. Fields are positionally
// addressed; there is no separator between them. Every decode routine
// validates bounds on its length-prefixed fields before slicing, so a
// malformed frame fails before any byte of it is trusted.
package wire

// Dispatcher action codes: the first byte of every request body, and the
// closed set of operations this system exposes. Codes 1, 3, 8 and 9 are
// reserved — present in the table, no defined wire shape or effect.
const (
	ActionAccessGet          byte = 0
	ActionGroupAssign        byte = 1
	ActionGroupCreate        byte = 2
	ActionGroupDrop          byte = 3
	ActionLoginFinish        byte = 4
	ActionLoginStart         byte = 5
	ActionRegistrationFinish byte = 6
	ActionRegistrationStart  byte = 7
	ActionSecretGet          byte = 8
	ActionSecretPut          byte = 9
	ActionStoragePut         byte = 10
	ActionStorageQuery       byte = 11
)

// Token-bound action codes. These are a distinct namespace from the
// dispatcher action codes above: a token's action byte restricts what the
// token may be used for, not which dispatcher entry produced it.
const (
	TokenActionRefresh      byte = 0
	TokenActionGroupCreate  byte = 3
	TokenActionStoragePut   byte = 12
	TokenActionStorageQuery byte = 13
)

// Permission values stored in an access-rule key's trailing byte.
const (
	PermissionReadWrite byte = 0
	PermissionRead      byte = 1
)
