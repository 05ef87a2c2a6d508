package storage

import (
	"context"
	"time"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/cache"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
)

// MakeBucket implements spec.md §4.3's bucket-admin link semantics for the
// S3 PUT Bucket op: create-if-absent, owned by credential, rejecting a
// name already owned by someone else. Grounded in the teacher's
// storage.MakeBucket CheckAndPut pattern, generalized onto meta.Backend.
func (g *Gateway) MakeBucket(ctx context.Context, name string, credential iam.Credential) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}
	bucket := meta.Bucket{
		Name:         name,
		OwnerID:      credential.UserID,
		CreationTime: time.Now(),
		ACL:          meta.PrivateACL(credential.UserID, credential.DisplayName),
		Versioning:   "Disabled",
	}
	err := g.Backend.CreateBucket(ctx, bucket)
	if err != nil {
		if apierrors.Is(err, apierrors.ErrBucketAlreadyExists) {
			existing, getErr := g.Backend.GetBucket(ctx, name)
			if getErr == nil && existing.OwnerID == credential.UserID {
				return apierrors.New(apierrors.ErrBucketAlreadyOwnedByYou, "")
			}
		}
		return err
	}
	g.IAM.LinkBucket(name, credential.UserID)
	if g.Cache != nil {
		g.Cache.Remove(cache.TableUserBuckets, credential.UserID)
	}
	return nil
}

// GetBucketInfo resolves bucket metadata, consulting the cache layer
// first.
func (g *Gateway) GetBucketInfo(ctx context.Context, name string) (meta.Bucket, error) {
	if g.Cache == nil {
		return g.Backend.GetBucket(ctx, name)
	}
	value, err := g.Cache.Get(cache.TableBucket, name, func() (interface{}, error) {
		return g.Backend.GetBucket(ctx, name)
	})
	if err != nil {
		return meta.Bucket{}, err
	}
	return value.(meta.Bucket), nil
}

// ListBuckets returns every bucket owned by credential, per GET / (List
// Buckets).
func (g *Gateway) ListBuckets(ctx context.Context, credential iam.Credential) ([]meta.Bucket, error) {
	return g.Backend.ListBucketsByOwner(ctx, credential.UserID)
}

// DeleteBucket implements the `remove(bucket, purge_children)` contract
// of spec.md §4.3: without purge, fails with BucketNotEmpty on any
// residual object; with purge, stream-deletes every object first.
func (g *Gateway) DeleteBucket(ctx context.Context, name string, credential iam.Credential, purge bool) error {
	bucket, err := g.GetBucketInfo(ctx, name)
	if err != nil {
		return err
	}
	if err := authorize(bucket.ACL, credential, iam.PermFullControl); err != nil {
		return err
	}

	result, err := g.Backend.ListObjects(ctx, name, "", "", "", 1)
	if err != nil {
		return err
	}
	if len(result.Objects) > 0 {
		if !purge {
			return apierrors.New(apierrors.ErrBucketNotEmpty, "")
		}
		if err := g.purgeAllObjects(ctx, name); err != nil {
			return err
		}
	}

	if err := g.Backend.DeleteBucket(ctx, name); err != nil {
		return err
	}
	g.IAM.UnlinkBucket(name)
	if g.Cache != nil {
		g.Cache.Remove(cache.TableBucket, name)
		g.Cache.Remove(cache.TableUserBuckets, credential.UserID)
	}
	return nil
}

// purgeAllObjects repeatedly lists and deletes every object in bucket,
// following the backend's truncation markers until the listing is empty.
func (g *Gateway) purgeAllObjects(ctx context.Context, bucket string) error {
	marker := ""
	for {
		result, err := g.Backend.ListObjects(ctx, bucket, "", marker, "", 1000)
		if err != nil {
			return err
		}
		for _, o := range result.Objects {
			if err := g.Backend.DeleteObject(ctx, bucket, o.Key); err != nil {
				return err
			}
		}
		if !result.IsTruncated {
			return nil
		}
		marker = result.NextMarker
	}
}

// ListObjects implements GET Bucket (List Objects), both v1 and v2
// callers share this by pre-resolving the v2 continuation-token/
// start-after pair onto a single marker before calling in.
func (g *Gateway) ListObjects(ctx context.Context, bucket, prefix, marker, delimiter string, maxKeys int, credential iam.Credential) (meta.ListObjectsResult, error) {
	b, err := g.GetBucketInfo(ctx, bucket)
	if err != nil {
		return meta.ListObjectsResult{}, err
	}
	if err := authorize(b.ACL, credential, iam.PermRead); err != nil {
		return meta.ListObjectsResult{}, err
	}
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	return g.Backend.ListObjects(ctx, bucket, prefix, marker, delimiter, maxKeys)
}

// GetBucketLogging implements GET ?logging. Bucket logging has no backing
// store in meta.Backend, so this only resolves the bucket and checks read
// permission; the handler always renders the empty response body.
func (g *Gateway) GetBucketLogging(ctx context.Context, name string, credential iam.Credential) error {
	bucket, err := g.GetBucketInfo(ctx, name)
	if err != nil {
		return err
	}
	return authorize(bucket.ACL, credential, iam.PermRead)
}

// GetBucketVersioning implements GET ?versioning.
func (g *Gateway) GetBucketVersioning(ctx context.Context, name string, credential iam.Credential) (string, error) {
	bucket, err := g.GetBucketInfo(ctx, name)
	if err != nil {
		return "", err
	}
	if err := authorize(bucket.ACL, credential, iam.PermRead); err != nil {
		return "", err
	}
	return bucket.Versioning, nil
}

// SetBucketVersioning implements PUT ?versioning.
func (g *Gateway) SetBucketVersioning(ctx context.Context, name, state string, credential iam.Credential) error {
	bucket, err := g.GetBucketInfo(ctx, name)
	if err != nil {
		return err
	}
	if err := authorize(bucket.ACL, credential, iam.PermWrite); err != nil {
		return err
	}
	if state != "Enabled" && state != "Suspended" {
		return apierrors.New(apierrors.ErrInvalidVersioning, "")
	}
	if err := g.Backend.SetBucketVersioning(ctx, name, state); err != nil {
		return err
	}
	if g.Cache != nil {
		g.Cache.Remove(cache.TableBucket, name)
	}
	return nil
}

// CheckBucketIndex implements the Admin Bucket `check_index` operation.
func (g *Gateway) CheckBucketIndex(ctx context.Context, bucket string, fix bool) (existing, calculated []meta.CategoryStats, err error) {
	return g.Backend.CheckBucketIndex(ctx, bucket, fix)
}

// BucketStats implements the Admin Bucket `stats` operation.
func (g *Gateway) BucketStats(ctx context.Context, bucket string) ([]meta.CategoryStats, error) {
	return g.Backend.BucketStats(ctx, bucket)
}
