package models

import (
	"encoding/json"
	"fmt"
)

// Permission is the current user's access tier on a note.
// The zero value is not a valid tier.
type Permission uint8

const (
	PermissionOwner Permission = iota + 1
	PermissionWrite
	PermissionRead
	PermissionShare
)

// ParsePermission parses the single letter code used by the backend
func ParsePermission(code string) (Permission, error) {
	switch code {
	case "O":
		return PermissionOwner, nil
	case "W":
		return PermissionWrite, nil
	case "R":
		return PermissionRead, nil
	case "S":
		return PermissionShare, nil
	}
	return 0, fmt.Errorf("unknown permission tier %q", code)
}

// MatchPermission calls the case matching p and returns its result.
// Every tier needs its own case, so adding a tier breaks every call site at
// compile time. It panics on the zero value.
func MatchPermission[T any](p Permission, owner, write, read, share func() T) T {
	switch p {
	case PermissionOwner:
		return owner()
	case PermissionWrite:
		return write()
	case PermissionRead:
		return read()
	case PermissionShare:
		return share()
	}
	panic(fmt.Sprintf("models: invalid permission %d", uint8(p)))
}

// Valid reports whether p is one of the four tiers
func (p Permission) Valid() bool {
	return p >= PermissionOwner && p <= PermissionShare
}

// Code returns the single letter code
func (p Permission) Code() string {
	switch p {
	case PermissionOwner:
		return "O"
	case PermissionWrite:
		return "W"
	case PermissionRead:
		return "R"
	case PermissionShare:
		return "S"
	}
	return ""
}

func (p Permission) String() string {
	switch p {
	case PermissionOwner:
		return "owner"
	case PermissionWrite:
		return "write"
	case PermissionRead:
		return "read"
	case PermissionShare:
		return "share"
	}
	return "invalid"
}

// CanWrite reports whether the tier allows saving the body or changing
// encryption. Share is assumed to include write. Invalid tiers allow nothing.
func (p Permission) CanWrite() bool {
	if !p.Valid() {
		return false
	}
	return MatchPermission(p,
		func() bool { return true },
		func() bool { return true },
		func() bool { return false },
		func() bool { return true },
	)
}

// CanShare reports whether the tier allows granting access to others.
// Invalid tiers allow nothing.
func (p Permission) CanShare() bool {
	if !p.Valid() {
		return false
	}
	return MatchPermission(p,
		func() bool { return true },
		func() bool { return false },
		func() bool { return false },
		func() bool { return true },
	)
}

// CanDelete reports whether the tier allows deleting the note
func (p Permission) CanDelete() bool {
	return p == PermissionOwner
}

// Grantable reports whether the tier may be handed to another user.
// Ownership is never granted.
func (p Permission) Grantable() bool {
	return p.Valid() && p != PermissionOwner
}

// MarshalJSON encodes the tier as its letter code, null when unset
func (p Permission) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(p.Code())
}

// UnmarshalJSON decodes a letter code. An empty string or null leaves the
// tier unset; the create endpoint does not report one.
func (p *Permission) UnmarshalJSON(data []byte) error {
	var code *string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	if code == nil || *code == "" {
		*p = 0
		return nil
	}
	parsed, err := ParsePermission(*code)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
