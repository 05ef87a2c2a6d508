// Package iam implements the identity data model described in spec.md §3:
// users, subusers, access keys, and capability sets, plus the Identity
// Store operations of §4.3. Grounded in the teacher's iam.Credential usage
// (signature/v2.go, api/bucket-handlers.go) and Ceph's rgw_admin.cc user
// model.
package iam

import "strings"

// Perm is a bitfield over READ/WRITE/READ_ACP/WRITE_ACP.
type Perm int

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermReadACP
	PermWriteACP

	PermFullControl = PermRead | PermWrite | PermReadACP | PermWriteACP
)

// String renders perm using the greedy match over
// {FULL_CONTROL, READ|WRITE, READ, WRITE, READ_ACP, WRITE_ACP} that
// spec.md §4.7 calls for, including the documented quirk from §9: both
// READ_ACP and WRITE_ACP render distinctly here (the bug the original
// source has — mapping both to "read-acp" — is NOT reproduced; per the
// spec's Open Questions this is treated as a bug to fix).
func (p Perm) String() string {
	switch {
	case p&PermFullControl == PermFullControl:
		return "FULL_CONTROL"
	case p&(PermRead|PermWrite) == (PermRead | PermWrite):
		return "READ|WRITE"
	case p&PermRead != 0:
		return "READ"
	case p&PermWrite != 0:
		return "WRITE"
	case p&PermReadACP != 0:
		return "READ_ACP"
	case p&PermWriteACP != 0:
		return "WRITE_ACP"
	default:
		return ""
	}
}

// KeyType distinguishes S3 keys (id+secret) from Swift keys (secret only).
type KeyType int

const (
	KeyTypeS3 KeyType = iota
	KeyTypeSwift
)

// AccessKey is a single credential, optionally scoped to a subuser.
type AccessKey struct {
	ID      string
	Secret  string
	Subuser string // empty for a user-level (non-subuser) key
	Type    KeyType
}

// Subuser is a named permission grant scoped to a user.
type Subuser struct {
	Name     string
	PermMask Perm
}

// Resource is an admin-capability resource name.
type Resource string

const (
	ResourceUsers    Resource = "users"
	ResourceBuckets  Resource = "buckets"
	ResourceMetadata Resource = "metadata"
	ResourceUsage    Resource = "usage"
	ResourceZone     Resource = "zone"
)

// CapPerm is the admin-capability permission bitfield: READ and/or WRITE.
type CapPerm int

const (
	CapRead CapPerm = 1 << iota
	CapWrite
)

// CapSet is a set of (resource, perm) pairs granting admin-API access.
type CapSet map[Resource]CapPerm

// Allows reports whether the set grants perm on resource.
func (c CapSet) Allows(resource Resource, perm CapPerm) bool {
	return c[resource]&perm == perm
}

// Add unions perm into the set's grant for resource.
func (c CapSet) Add(resource Resource, perm CapPerm) {
	c[resource] |= perm
}

// Remove clears perm from the set's grant for resource.
func (c CapSet) Remove(resource Resource, perm CapPerm) {
	c[resource] &^= perm
}

// ParseCaps parses the textual form "res=read,write; res2=read" described
// in spec.md §3, unioning into (or creating) a CapSet.
func ParseCaps(text string) (CapSet, error) {
	caps := CapSet{}
	text = strings.TrimSpace(text)
	if text == "" {
		return caps, nil
	}
	for _, clause := range strings.Split(text, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return nil, errInvalidCaps(clause)
		}
		resource := Resource(strings.TrimSpace(parts[0]))
		var perm CapPerm
		for _, p := range strings.Split(parts[1], ",") {
			switch strings.TrimSpace(p) {
			case "read":
				perm |= CapRead
			case "write":
				perm |= CapWrite
			case "*", "read,write", "readwrite":
				perm |= CapRead | CapWrite
			default:
				return nil, errInvalidCaps(clause)
			}
		}
		caps.Add(resource, perm)
	}
	return caps, nil
}

// String renders the CapSet back to its textual form, in the fixed
// resource order users, buckets, metadata, usage, zone for deterministic
// output (used by admin rendering).
func (c CapSet) String() string {
	order := []Resource{ResourceUsers, ResourceBuckets, ResourceMetadata, ResourceUsage, ResourceZone}
	var clauses []string
	for _, r := range order {
		perm, ok := c[r]
		if !ok || perm == 0 {
			continue
		}
		var ps []string
		if perm&CapRead != 0 {
			ps = append(ps, "read")
		}
		if perm&CapWrite != 0 {
			ps = append(ps, "write")
		}
		clauses = append(clauses, string(r)+"="+strings.Join(ps, ","))
	}
	return strings.Join(clauses, "; ")
}

type capsError string

func (e capsError) Error() string { return string(e) }

func errInvalidCaps(clause string) error {
	return capsError("invalid caps clause: " + clause)
}

// User is the top-level identity record of spec.md §3.
type User struct {
	UserID      string
	DisplayName string
	Email       string
	Suspended   bool
	MaxBuckets  int

	Subusers   map[string]Subuser
	AccessKeys map[string]AccessKey // keyed by AccessKey.ID, Type == KeyTypeS3
	SwiftKeys  map[string]AccessKey // keyed by AccessKey.ID, Type == KeyTypeSwift

	Caps CapSet
}

// Credential is the resolved identity bound to an authenticated (or
// anonymous) request: the owning user plus the effective permission mask
// for this session, matching the teacher's iam.Credential.
type Credential struct {
	UserID      string
	DisplayName string
	PermMask    Perm
	Anonymous   bool
}

// NewUser returns a User with empty index maps ready for population.
func NewUser(userID, displayName string) *User {
	return &User{
		UserID:      userID,
		DisplayName: displayName,
		MaxBuckets:  100,
		Subusers:    map[string]Subuser{},
		AccessKeys:  map[string]AccessKey{},
		SwiftKeys:   map[string]AccessKey{},
		Caps:        CapSet{},
	}
}
