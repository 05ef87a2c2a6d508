package storage

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
)

// Range is a parsed `Range: bytes=a-b` header, spec.md §4.6.
type Range struct {
	Set   bool
	Start int64
	End   int64 // inclusive; -1 means "to end of object"
}

// ParseRange parses the raw Range header value (including its "bytes="
// prefix, which is required) into a Range.
func ParseRange(header string) (Range, error) {
	if header == "" {
		return Range{}, nil
	}
	if !strings.HasPrefix(header, "bytes=") {
		return Range{}, apierrors.New(apierrors.ErrInvalidRange, "")
	}
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return Range{}, apierrors.New(apierrors.ErrInvalidRange, "")
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return Range{}, apierrors.New(apierrors.ErrInvalidRange, "")
	}
	if parts[1] == "" {
		return Range{Set: true, Start: start, End: -1}, nil
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return Range{}, apierrors.New(apierrors.ErrInvalidRange, "")
	}
	return Range{Set: true, Start: start, End: end}, nil
}

// resolve checks r against an object of the given size, per spec.md §8:
// "for Range: bytes=a-b with 0 ≤ a ≤ b < size, returned length = b-a+1;
// otherwise InvalidRange". An open-ended range (End -1) runs to the last
// byte.
func (r Range) resolve(size int64) (offset, length int64, err error) {
	if !r.Set {
		return 0, size, nil
	}
	if r.Start >= size {
		return 0, 0, apierrors.New(apierrors.ErrInvalidRange, "")
	}
	end := r.End
	if end >= size {
		return 0, 0, apierrors.New(apierrors.ErrInvalidRange, "")
	}
	if end < 0 {
		end = size - 1
	}
	if end < r.Start {
		return 0, 0, apierrors.New(apierrors.ErrInvalidRange, "")
	}
	return r.Start, end - r.Start + 1, nil
}

// GetObjectRequest carries the conditional-header and range inputs of a
// GetObject call.
type GetObjectRequest struct {
	Bucket           string
	Key              string
	Range            Range
	IfMatch          string
	IfNoneMatch      string
	IfModifiedSince  *time.Time
	IfUnmodifiedSince *time.Time
}

// GetObjectResult is what GetObject resolves down to: the object's
// metadata, the byte range actually served, and whether that range is a
// partial (206) response.
type GetObjectResult struct {
	Object      meta.Object
	Offset      int64
	Length      int64
	Partial     bool
}

// checkConditionals implements spec.md §4.6's GetObject evaluation order:
// if-match/if-none-match first (ETag equality), then modified-since
// conditions.
func checkConditionals(o meta.Object, req GetObjectRequest) error {
	if req.IfMatch != "" && req.IfMatch != o.ETag {
		return apierrors.New(apierrors.ErrPreconditionFailed, "")
	}
	if req.IfNoneMatch != "" && req.IfNoneMatch == o.ETag {
		return apierrors.New(apierrors.ErrPreconditionFailed, "")
	}
	if req.IfModifiedSince != nil && !o.MTime.After(*req.IfModifiedSince) {
		return apierrors.New(apierrors.ErrPreconditionFailed, "")
	}
	if req.IfUnmodifiedSince != nil && o.MTime.After(*req.IfUnmodifiedSince) {
		return apierrors.New(apierrors.ErrPreconditionFailed, "")
	}
	return nil
}

// GetObject implements spec.md §4.6's GetObject contract up to but not
// including writing the body out (callers stream via GetObjectData once
// GetObject has resolved the range and passed conditional checks).
func (g *Gateway) GetObject(ctx context.Context, req GetObjectRequest, credential iam.Credential) (GetObjectResult, error) {
	o, err := g.Backend.GetObject(ctx, req.Bucket, req.Key)
	if err != nil {
		return GetObjectResult{}, err
	}
	if err := authorize(o.ACL, credential, iam.PermRead); err != nil {
		return GetObjectResult{}, err
	}
	if err := checkConditionals(o, req); err != nil {
		return GetObjectResult{}, err
	}
	offset, length, err := req.Range.resolve(o.Size)
	if err != nil {
		return GetObjectResult{}, err
	}
	return GetObjectResult{Object: o, Offset: offset, Length: length, Partial: req.Range.Set}, nil
}

// WriteObjectData streams result's resolved byte range to w.
func (g *Gateway) WriteObjectData(ctx context.Context, result GetObjectResult, w io.Writer) error {
	return g.Backend.GetObjectData(ctx, result.Object.Bucket, result.Object.Key, result.Offset, result.Length, w)
}

// PutObjectRequest carries the inputs of a PUT Object call.
type PutObjectRequest struct {
	Bucket      string
	Key         string
	ContentType string
	CannedACL   string
	Attrs       map[string][]byte
	Data        io.Reader
}

// PutObject implements spec.md §4.6's PutObject contract: the canned ACL
// from x-amz-acl becomes the object's ACL (default private), and the
// computed ETag is returned on success.
func (g *Gateway) PutObject(ctx context.Context, req PutObjectRequest, credential iam.Credential) (meta.Object, error) {
	bucket, err := g.GetBucketInfo(ctx, req.Bucket)
	if err != nil {
		return meta.Object{}, err
	}
	if err := authorize(bucket.ACL, credential, iam.PermWrite); err != nil {
		return meta.Object{}, err
	}
	policy, err := cannedACLPolicy(req.CannedACL, credential)
	if err != nil {
		return meta.Object{}, err
	}

	hashing := newETagReader(req.Data)
	o := meta.Object{
		Bucket:      req.Bucket,
		Key:         req.Key,
		ContentType: req.ContentType,
		Attrs:       req.Attrs,
		ACL:         policy,
		MTime:       time.Now(),
		VersionID:   "null",
	}
	if err := g.Backend.PutObject(ctx, o, hashing); err != nil {
		return meta.Object{}, err
	}
	o.ETag = hashing.Sum()
	o.Size = hashing.Size()
	return o, nil
}

// DeleteObject implements DELETE Object.
func (g *Gateway) DeleteObject(ctx context.Context, bucket, key string, credential iam.Credential) error {
	o, err := g.Backend.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := authorize(o.ACL, credential, iam.PermWrite); err != nil {
		return err
	}
	return g.Backend.DeleteObject(ctx, bucket, key)
}

// CopyObjectRequest carries the inputs of a PUT Object Copy call.
type CopyObjectRequest struct {
	SourceBucket, SourceKey string
	DestBucket, DestKey     string
	MetadataDirective       string // "COPY" or "REPLACE"
	NewContentType          string
	NewAttrs                map[string][]byte
	IfMatch                 string
	IfNoneMatch             string
	IfModifiedSince         *time.Time
	IfUnmodifiedSince       *time.Time
}

// CopyObject implements spec.md §4.6's CopyObject contract: same-source
// and same-dest is allowed only when the metadata directive is REPLACE.
func (g *Gateway) CopyObject(ctx context.Context, req CopyObjectRequest, credential iam.Credential) (meta.Object, error) {
	if req.SourceBucket == req.DestBucket && req.SourceKey == req.DestKey && req.MetadataDirective != "REPLACE" {
		return meta.Object{}, apierrors.New(apierrors.ErrInvalidArgument, "copying an object onto itself requires x-amz-metadata-directive: REPLACE")
	}

	src, err := g.Backend.GetObject(ctx, req.SourceBucket, req.SourceKey)
	if err != nil {
		return meta.Object{}, err
	}
	if err := authorize(src.ACL, credential, iam.PermRead); err != nil {
		return meta.Object{}, err
	}
	if err := checkConditionals(src, GetObjectRequest{
		IfMatch: req.IfMatch, IfNoneMatch: req.IfNoneMatch,
		IfModifiedSince: req.IfModifiedSince, IfUnmodifiedSince: req.IfUnmodifiedSince,
	}); err != nil {
		return meta.Object{}, err
	}

	destBucket, err := g.GetBucketInfo(ctx, req.DestBucket)
	if err != nil {
		return meta.Object{}, err
	}
	if err := authorize(destBucket.ACL, credential, iam.PermWrite); err != nil {
		return meta.Object{}, err
	}

	contentType := src.ContentType
	attrs := src.Attrs
	if req.MetadataDirective == "REPLACE" {
		contentType = req.NewContentType
		attrs = req.NewAttrs
	}

	var payload bytesBuffer
	if err := g.Backend.GetObjectData(ctx, req.SourceBucket, req.SourceKey, 0, src.Size, &payload); err != nil {
		return meta.Object{}, err
	}

	dest := meta.Object{
		Bucket:      req.DestBucket,
		Key:         req.DestKey,
		ContentType: contentType,
		Attrs:       attrs,
		ACL:         meta.PrivateACL(credential.UserID, credential.DisplayName),
		MTime:       time.Now(),
		VersionID:   "null",
	}
	hashing := newETagReader(&payload)
	if err := g.Backend.PutObject(ctx, dest, hashing); err != nil {
		return meta.Object{}, err
	}
	dest.ETag = hashing.Sum()
	dest.Size = hashing.Size()
	return dest, nil
}

// DeleteObjectsResult is one entry of a multi-object delete's outcome.
type DeleteObjectsResult struct {
	Key     string
	Deleted bool
	Code    string
	Message string
}

// DeleteMultipleObjects implements spec.md §4.6's DeleteMultipleObjects:
// per-key results are produced incrementally so the caller can stream
// them rather than buffering the whole response.
func (g *Gateway) DeleteMultipleObjects(ctx context.Context, bucket string, keys []string, credential iam.Credential, yield func(DeleteObjectsResult)) {
	for _, key := range keys {
		if err := g.DeleteObject(ctx, bucket, key, credential); err != nil {
			code := "InternalError"
			if apiErr, ok := err.(*apierrors.Error); ok {
				code = apierrors.AwsCode(apiErr)
			}
			yield(DeleteObjectsResult{Key: key, Deleted: false, Code: code, Message: err.Error()})
			continue
		}
		yield(DeleteObjectsResult{Key: key, Deleted: true})
	}
}
