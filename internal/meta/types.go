// Package meta holds the backend-facing data model of spec.md §3 (Bucket,
// Object, MultipartUpload, UsageRecord, GarbageCollection) and the Backend
// contract those records cross. Grounded in the teacher's meta package
// (meta/bucket.go, meta/object.go, meta/multipart.go) — field shapes kept,
// persistence mechanism (HBase row/column-family encoding) pushed behind
// the Backend interface in backend.go instead of hardcoded here, since the
// storage wire protocol is out of scope per spec.md §1.
package meta

import "time"

// Grant is one entry of an ACLPolicy: a grantee (a user id, or one of the
// special group URIs "AllUsers"/"AuthenticatedUsers") and the permission
// granted.
type Grant struct {
	Grantee    string
	GranteeURI string // set instead of Grantee for group grants
	Permission string // READ | WRITE | READ_ACP | WRITE_ACP | FULL_CONTROL
}

// ACLPolicy is the owner + grant list described in spec.md §3. CannedACL,
// when non-empty, is the name the policy was last set from ("private",
// "public-read", "public-read-write", "authenticated-read") and is kept so
// PutACLs/canned-ACL round-trips are exact; Grants always reflects the
// logical policy regardless of how it was set.
type ACLPolicy struct {
	OwnerID         string
	OwnerDisplay    string
	CannedACL       string
	Grants          []Grant
}

// PrivateACL returns the default "private" policy for owner.
func PrivateACL(ownerID, ownerDisplay string) ACLPolicy {
	return ACLPolicy{OwnerID: ownerID, OwnerDisplay: ownerDisplay, CannedACL: "private"}
}

// Bucket is the bucket record of spec.md §3.
type Bucket struct {
	Name         string
	Pool         string
	BucketID     string
	Marker       string
	OwnerID      string
	CreationTime time.Time

	ACL        ACLPolicy
	CORS       CORSConfiguration
	Versioning string // "Disabled" | "Enabled" | "Suspended"
}

// CORSRule is one rule of a bucket's CORS configuration (supplemented
// feature, see SPEC_FULL.md §3).
type CORSRule struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposeHeaders  []string
	MaxAgeSeconds  int
}

// CORSConfiguration is an ordered list of CORSRule, stored and returned as
// given; nothing in the gateway evaluates it against requests.
type CORSConfiguration struct {
	Rules []CORSRule
}

// Part is one uploaded part of a MultipartUpload.
type Part struct {
	Number       int
	ETag         string
	Size         int64
	LastModified time.Time
}

// MultipartUpload is the in-progress upload record of spec.md §3.
type MultipartUpload struct {
	Bucket      string
	Key         string
	UploadID    string
	Initiator   string
	Owner       string
	InitialTime time.Time
	Metadata    map[string]string
	ACL         ACLPolicy
	Parts       map[int]Part // keyed by part number, 1-based ascending
}

// Object is the object record of spec.md §3.
type Object struct {
	Bucket      string
	Key         string
	ETag        string
	Size        int64
	MTime       time.Time
	ContentType string
	Attrs       map[string][]byte // user metadata attrs, spec.md "reserved prefix" stripped
	ACL         ACLPolicy
	VersionID   string // "null" when the bucket has never had versioning enabled
}

// GarbageCollection is a pending-delete log entry (SPEC_FULL.md §3),
// grounded in the teacher's tools/delete.go meta.GarbageCollection usage.
type GarbageCollection struct {
	Rowkey     string
	Tag        string
	Time       time.Time
	Bucket     string
	Object     string
	Location   string
	Pool       string
	ObjectID   string
	Parts      []Part
}

// UsageCategory buckets usage records by operation family, e.g. "get_obj",
// "put_obj", "list_bucket" — matching the categories in Ceph's usage log.
type UsageCategory string

// UsageRecord is the per-user, per-epoch-bucket, per-category usage record
// of spec.md §3.
type UsageRecord struct {
	UserID        string
	EpochBucket   int64 // usage log bucket, e.g. hour-aligned unix epoch
	Category      UsageCategory
	BytesSent     int64
	BytesReceived int64
	Ops           int64
	SuccessfulOps int64
}

// CategoryStats is the per-category object-count/size summary returned by
// Bucket Admin's stats() and check_index() operations.
type CategoryStats struct {
	Category     string
	NumKB        int64
	NumKBRounded int64
	NumObjects   int64
}
