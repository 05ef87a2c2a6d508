package storage

import (
	"testing"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
)

func TestValidateBucketNameValid(t *testing.T) {
	for _, name := range []string{"photos", "my-bucket.2024", "a", "Bucket_Name"} {
		if err := ValidateBucketName(name); err != nil {
			t.Errorf("ValidateBucketName(%q): %v", name, err)
		}
	}
}

func TestValidateBucketNameEmpty(t *testing.T) {
	if err := ValidateBucketName(""); !apierrors.Is(err, apierrors.ErrInvalidBucketName) {
		t.Errorf("ValidateBucketName(\"\") = %v, want ErrInvalidBucketName", err)
	}
}

func TestValidateBucketNameBadFirstChar(t *testing.T) {
	if err := ValidateBucketName("-bucket"); !apierrors.Is(err, apierrors.ErrInvalidBucketName) {
		t.Errorf("ValidateBucketName(\"-bucket\") = %v, want ErrInvalidBucketName", err)
	}
}

func TestValidateBucketNameInvalidChar(t *testing.T) {
	if err := ValidateBucketName("my bucket"); !apierrors.Is(err, apierrors.ErrInvalidBucketName) {
		t.Errorf("ValidateBucketName with a space = %v, want ErrInvalidBucketName", err)
	}
	if err := ValidateBucketName("bucket/name"); !apierrors.Is(err, apierrors.ErrInvalidBucketName) {
		t.Errorf("ValidateBucketName with a slash = %v, want ErrInvalidBucketName", err)
	}
}

func TestValidateBucketNameIPv4Rejected(t *testing.T) {
	if err := ValidateBucketName("192.168.1.1"); !apierrors.Is(err, apierrors.ErrInvalidBucketName) {
		t.Errorf("ValidateBucketName(IPv4) = %v, want ErrInvalidBucketName", err)
	}
}

func TestValidateBucketNameDottedButNotIPv4(t *testing.T) {
	if err := ValidateBucketName("192.168.1.bucket"); err != nil {
		t.Errorf("ValidateBucketName(dotted-but-not-IPv4): %v", err)
	}
}

func TestPermissionForOwnerBoundedBySessionMask(t *testing.T) {
	policy := meta.PrivateACL("alice", "Alice")

	full := iam.Credential{UserID: "alice", PermMask: iam.PermFullControl}
	if got := permissionFor(policy, full); got != iam.PermFullControl {
		t.Errorf("owner with full session mask = %v, want PermFullControl", got)
	}

	readOnlySubuser := iam.Credential{UserID: "alice", PermMask: iam.PermRead}
	if got := permissionFor(policy, readOnlySubuser); got != iam.PermRead {
		t.Errorf("owner via read-only subuser session = %v, want PermRead only", got)
	}
}

func TestPermissionForPublicReadGrant(t *testing.T) {
	policy := meta.ACLPolicy{OwnerID: "alice", CannedACL: "public-read"}
	anon := iam.Credential{Anonymous: true}
	if got := permissionFor(policy, anon); got != iam.PermRead {
		t.Errorf("public-read for anonymous = %v, want PermRead", got)
	}
}

func TestPermissionForExplicitGrant(t *testing.T) {
	policy := meta.ACLPolicy{
		OwnerID: "alice",
		Grants: []meta.Grant{
			{Grantee: "bob", Permission: "READ"},
		},
	}
	bob := iam.Credential{UserID: "bob"}
	if got := permissionFor(policy, bob); got != iam.PermRead {
		t.Errorf("explicit grant to bob = %v, want PermRead", got)
	}
	carol := iam.Credential{UserID: "carol"}
	if got := permissionFor(policy, carol); got != 0 {
		t.Errorf("no grant to carol = %v, want 0", got)
	}
}

func TestAuthorizeDeniesWithoutRequiredBit(t *testing.T) {
	policy := meta.PrivateACL("alice", "Alice")
	bob := iam.Credential{UserID: "bob"}
	if err := authorize(policy, bob, iam.PermRead); !apierrors.Is(err, apierrors.ErrAccessDenied) {
		t.Errorf("authorize(bob, private bucket) = %v, want ErrAccessDenied", err)
	}
}

func TestAuthorizeAllowsOwner(t *testing.T) {
	policy := meta.PrivateACL("alice", "Alice")
	owner := iam.Credential{UserID: "alice", PermMask: iam.PermFullControl}
	if err := authorize(policy, owner, iam.PermWrite); err != nil {
		t.Errorf("authorize(owner): %v", err)
	}
}
