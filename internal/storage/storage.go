// Package storage is the S3 Op Layer of spec.md §4.6: the per-operation
// business logic (GetObject, PutObject, CopyObject, multipart lifecycle,
// bucket CRUD, ACL evaluation) sitting between the HTTP handlers in
// package api and the opaque meta.Backend. Grounded in the teacher's
// storage.YigStorage, generalized from a single hardcoded HBase client
// onto the Backend interface so the same op layer runs against either
// backend implementation.
package storage

import (
	"strings"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/cache"
	"github.com/cloudgate/s3gw/internal/helper"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
)

// Gateway is the op layer, equivalent to the teacher's YigStorage: it
// holds the collaborators every op needs and exposes one method per S3 or
// admin-facing operation.
type Gateway struct {
	Backend meta.Backend
	IAM     *iam.Store
	Cache   *cache.MetaCache // nil disables caching entirely
}

// New builds a Gateway over backend and iamStore. metaCache may be nil.
func New(backend meta.Backend, iamStore *iam.Store, metaCache *cache.MetaCache) *Gateway {
	return &Gateway{Backend: backend, IAM: iamStore, Cache: metaCache}
}

// validBucketNameChars is the character class spec.md §8 names for
// bucket-name validation.
func validBucketNameChars(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}

// ValidateBucketName implements spec.md §8's boundary behaviors: rejects
// empty names, names starting with a non-alphanumeric, IPv4-shaped names,
// and any character outside [A-Za-z0-9._-].
func ValidateBucketName(name string) error {
	if name == "" {
		return apierrors.New(apierrors.ErrInvalidBucketName, "bucket name must not be empty")
	}
	first := rune(name[0])
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || (first >= '0' && first <= '9')) {
		return apierrors.New(apierrors.ErrInvalidBucketName, "bucket name must start with an alphanumeric character")
	}
	for _, r := range name {
		if !validBucketNameChars(r) {
			return apierrors.New(apierrors.ErrInvalidBucketName, "bucket name contains an invalid character")
		}
	}
	if looksLikeIPv4(name) {
		return apierrors.New(apierrors.ErrInvalidBucketName, "bucket name must not be formatted as an IP address")
	}
	return nil
}

func looksLikeIPv4(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// permissionFor resolves what Perm a credential effectively holds over
// policy, combining explicit grants with canned-ACL semantics and the
// owner's implicit FULL_CONTROL.
func permissionFor(policy meta.ACLPolicy, credential iam.Credential) iam.Perm {
	if credential.UserID != "" && credential.UserID == policy.OwnerID {
		// A subuser's session perm_mask still bounds what its owning
		// user's resources grant it, per spec.md §4.2.
		return iam.PermFullControl & credential.PermMask
	}
	var perm iam.Perm
	switch policy.CannedACL {
	case "public-read":
		perm |= iam.PermRead
	case "public-read-write":
		perm |= iam.PermRead | iam.PermWrite
	case "authenticated-read":
		if !credential.Anonymous {
			perm |= iam.PermRead
		}
	}
	for _, g := range policy.Grants {
		matches := g.Grantee == credential.UserID ||
			(g.GranteeURI == "AllUsers") ||
			(g.GranteeURI == "AuthenticatedUsers" && !credential.Anonymous)
		if !matches {
			continue
		}
		switch g.Permission {
		case "FULL_CONTROL":
			perm |= iam.PermFullControl
		case "READ":
			perm |= iam.PermRead
		case "WRITE":
			perm |= iam.PermWrite
		case "READ_ACP":
			perm |= iam.PermReadACP
		case "WRITE_ACP":
			perm |= iam.PermWriteACP
		}
	}
	return perm
}

// authorize fails the op with ErrAccessDenied unless credential holds at
// least one of the required bits over policy.
func authorize(policy meta.ACLPolicy, credential iam.Credential, required iam.Perm) error {
	have := permissionFor(policy, credential)
	if have&required == 0 && have != iam.PermFullControl {
		return apierrors.New(apierrors.ErrAccessDenied, "")
	}
	return nil
}

func logf(args ...interface{}) {
	helper.Logln(args...)
}
