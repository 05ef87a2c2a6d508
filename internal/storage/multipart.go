package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
	"github.com/xxtea/xxtea-go/xxtea"
)

// multipartUploadIDKey is the xxtea key opaque upload ids are encrypted
// under, grounded in the teacher's use of xxtea to obscure internal
// identifiers (object version ids) behind an opaque wire token rather
// than exposing raw backend state to clients.
var multipartUploadIDKey = []byte("s3gw-multipart-upload-id-key")

// SetMultipartUploadIDKey overrides the xxtea key used to mint/validate
// upload ids; call once at process startup from configuration.
func SetMultipartUploadIDKey(key []byte) { multipartUploadIDKey = key }

func newUploadID(bucket, key string) string {
	plain := fmt.Sprintf("%s/%s/%d", bucket, key, time.Now().UnixNano())
	return hex.EncodeToString(xxtea.Encrypt([]byte(plain), multipartUploadIDKey))
}

// InitMultipart implements POST ?uploads, minting a new opaque upload id
// per spec.md §4.6 ("upload_id is opaque and globally unique").
func (g *Gateway) InitMultipart(ctx context.Context, bucket, key, contentType string, cannedACL string, credential iam.Credential) (string, error) {
	b, err := g.GetBucketInfo(ctx, bucket)
	if err != nil {
		return "", err
	}
	if err := authorize(b.ACL, credential, iam.PermWrite); err != nil {
		return "", err
	}
	policy, err := cannedACLPolicy(cannedACL, credential)
	if err != nil {
		return "", err
	}

	uploadID := newUploadID(bucket, key)
	upload := meta.MultipartUpload{
		Bucket:      bucket,
		Key:         key,
		UploadID:    uploadID,
		Initiator:   credential.UserID,
		Owner:       credential.UserID,
		InitialTime: time.Now(),
		Metadata:    map[string]string{"Content-Type": contentType},
		ACL:         policy,
		Parts:       map[int]meta.Part{},
	}
	if err := g.Backend.InitMultipart(ctx, upload); err != nil {
		return "", err
	}
	return uploadID, nil
}

// UploadPart implements PUT ?partNumber=&uploadId=.
func (g *Gateway) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data []byte, credential iam.Credential) (meta.Part, error) {
	upload, err := g.Backend.GetMultipart(ctx, bucket, key, uploadID)
	if err != nil {
		return meta.Part{}, err
	}
	if err := authorize(upload.ACL, credential, iam.PermWrite); err != nil {
		return meta.Part{}, err
	}
	sum := md5.Sum(data)
	part := meta.Part{
		Number:       partNumber,
		ETag:         hex.EncodeToString(sum[:]),
		Size:         int64(len(data)),
		LastModified: time.Now(),
	}
	if err := g.Backend.PutObjectPart(ctx, bucket, key, uploadID, part, bytesReader(data)); err != nil {
		return meta.Part{}, err
	}
	return part, nil
}

// CompletedPart is one entry of the caller-supplied ordered part list for
// CompleteMultipart.
type CompletedPart struct {
	Number int
	ETag   string
}

// CompleteMultipart implements POST ?uploadId=. The resulting object's
// ETag is derived from the concatenated part-ETag binary digests,
// matching S3's own "<hash>-<n>" convention closely enough to satisfy
// spec.md §4.6's "implementation-defined, but deterministic" requirement.
func (g *Gateway) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart, credential iam.Credential) (meta.Object, error) {
	upload, err := g.Backend.GetMultipart(ctx, bucket, key, uploadID)
	if err != nil {
		return meta.Object{}, err
	}
	if err := authorize(upload.ACL, credential, iam.PermWrite); err != nil {
		return meta.Object{}, err
	}

	digest := md5.New()
	var totalSize int64
	for _, p := range parts {
		stored, ok := upload.Parts[p.Number]
		if !ok || stored.ETag != p.ETag {
			return meta.Object{}, apierrors.New(apierrors.ErrInvalidArgument, "part mismatch at number "+fmt.Sprint(p.Number))
		}
		raw, err := hex.DecodeString(stored.ETag)
		if err != nil {
			return meta.Object{}, apierrors.New(apierrors.ErrInternalError, err.Error())
		}
		digest.Write(raw)
		totalSize += stored.Size
	}
	etag := hex.EncodeToString(digest.Sum(nil)) + "-" + fmt.Sprint(len(parts))

	o := meta.Object{
		Bucket:      bucket,
		Key:         key,
		ETag:        etag,
		Size:        totalSize,
		MTime:       time.Now(),
		ContentType: upload.Metadata["Content-Type"],
		ACL:         upload.ACL,
		VersionID:   "null",
	}
	if err := g.Backend.CompleteMultipart(ctx, bucket, key, uploadID, o); err != nil {
		return meta.Object{}, err
	}
	return o, nil
}

// AbortMultipart implements DELETE ?uploadId=.
func (g *Gateway) AbortMultipart(ctx context.Context, bucket, key, uploadID string, credential iam.Credential) error {
	upload, err := g.Backend.GetMultipart(ctx, bucket, key, uploadID)
	if err != nil {
		return err
	}
	if err := authorize(upload.ACL, credential, iam.PermWrite); err != nil {
		return err
	}
	return g.Backend.AbortMultipart(ctx, bucket, key, uploadID)
}

// ListParts implements GET ?uploadId=.
func (g *Gateway) ListParts(ctx context.Context, bucket, key, uploadID string, credential iam.Credential) (meta.MultipartUpload, error) {
	upload, err := g.Backend.GetMultipart(ctx, bucket, key, uploadID)
	if err != nil {
		return meta.MultipartUpload{}, err
	}
	if err := authorize(upload.ACL, credential, iam.PermRead); err != nil {
		return meta.MultipartUpload{}, err
	}
	return upload, nil
}

// ListMultipartUploads implements GET ?uploadId for a bucket.
func (g *Gateway) ListMultipartUploads(ctx context.Context, bucket, prefix, keyMarker, uploadIDMarker, delimiter string, maxUploads int) (meta.ListMultipartUploadsResult, error) {
	if maxUploads <= 0 {
		maxUploads = 1000
	}
	return g.Backend.ListMultipartUploads(ctx, bucket, prefix, keyMarker, uploadIDMarker, delimiter, maxUploads)
}

// bytesReader avoids importing bytes in callers that only need this one
// conversion.
func bytesReader(b []byte) *bytesBuffer {
	buf := &bytesBuffer{}
	buf.Write(b)
	return buf
}
