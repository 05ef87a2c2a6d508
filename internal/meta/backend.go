package meta

import (
	"context"
	"io"
)

// ListObjectsResult is the backend's answer to a bucket listing primitive.
type ListObjectsResult struct {
	Objects        []Object
	CommonPrefixes []string
	NextMarker     string
	IsTruncated    bool
}

// ListMultipartUploadsResult is the backend's answer to a multipart-upload
// listing primitive.
type ListMultipartUploadsResult struct {
	Uploads            []MultipartUpload
	CommonPrefixes     []string
	NextKeyMarker      string
	NextUploadIDMarker string
	IsTruncated        bool
}

// Backend is the opaque distributed-object-store contract spec.md §1 puts
// out of scope: "addressed as an opaque backend exposing bucket/object/
// attr/log/gc/usage primitives". Every S3 and admin op in this repo talks
// to storage only through this interface; nothing in this repo encodes a
// storage wire protocol of its own. Two implementations live in
// internal/backend: "memory" (in-process maps, used by tests and as the
// zero-config default) and "hbase" (a thin adapter over an already-complete
// third-party HBase client).
type Backend interface {
	// Bucket primitives.
	CreateBucket(ctx context.Context, b Bucket) error
	GetBucket(ctx context.Context, name string) (Bucket, error)
	DeleteBucket(ctx context.Context, name string) error
	ListBucketsByOwner(ctx context.Context, ownerID string) ([]Bucket, error)
	SetBucketACL(ctx context.Context, name string, acl ACLPolicy) error
	SetBucketCORS(ctx context.Context, name string, cors CORSConfiguration) error
	SetBucketVersioning(ctx context.Context, name string, state string) error

	// Object primitives.
	PutObject(ctx context.Context, o Object, data io.Reader) error
	GetObject(ctx context.Context, bucket, key string) (Object, error)
	GetObjectData(ctx context.Context, bucket, key string, offset, length int64, w io.Writer) error
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix, marker, delimiter string, maxKeys int) (ListObjectsResult, error)
	SetObjectACL(ctx context.Context, bucket, key string, acl ACLPolicy) error

	// Multipart-upload primitives.
	InitMultipart(ctx context.Context, m MultipartUpload) error
	GetMultipart(ctx context.Context, bucket, key, uploadID string) (MultipartUpload, error)
	PutObjectPart(ctx context.Context, bucket, key, uploadID string, p Part, data io.Reader) error
	CompleteMultipart(ctx context.Context, bucket, key, uploadID string, o Object) error
	AbortMultipart(ctx context.Context, bucket, key, uploadID string) error
	ListMultipartUploads(ctx context.Context, bucket, prefix, keyMarker, uploadIDMarker, delimiter string, maxUploads int) (ListMultipartUploadsResult, error)

	// Attr primitive: arbitrary bucket/object-scoped attribute storage used
	// by bucket policy (raw bytes) attachment, separate from the typed
	// ACL/CORS primitives above.
	GetAttr(ctx context.Context, bucket, key, name string) ([]byte, error)
	SetAttr(ctx context.Context, bucket, key, name string, value []byte) error
	DeleteAttr(ctx context.Context, bucket, key, name string) error

	// Garbage-collection log primitives.
	PushGC(ctx context.Context, g GarbageCollection) error
	ScanGC(ctx context.Context, limit int, startRowkey string) ([]GarbageCollection, error)
	RemoveGC(ctx context.Context, g GarbageCollection) error
	RemoveObjectData(ctx context.Context, location, pool, objectID string) error

	// Usage-log primitives.
	RecordUsage(ctx context.Context, r UsageRecord) error
	QueryUsage(ctx context.Context, userID string, startEpoch, endEpoch int64) ([]UsageRecord, error)
	TrimUsage(ctx context.Context, userID string, startEpoch, endEpoch int64) error

	// Bucket index primitives — only the contract is specified (spec.md
	// §1 Non-goals excludes the index engine itself).
	CheckBucketIndex(ctx context.Context, bucket string, fix bool) (existing, calculated []CategoryStats, err error)
	BucketStats(ctx context.Context, bucket string) ([]CategoryStats, error)
}

// ErrNotFound-shaped sentinels are intentionally NOT defined here: backend
// implementations return *apierrors.Error values (ErrNoSuchBucket,
// ErrNoSuchKey, ErrNoSuchUpload, ...) directly, so callers never need to
// translate a backend-private error type.
