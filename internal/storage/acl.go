package storage

import (
	"context"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/cache"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
)

// cannedACLPolicy builds the ACLPolicy for one of the canned names S3
// accepts on the x-amz-acl header: private, public-read,
// public-read-write, authenticated-read.
func cannedACLPolicy(canned string, owner iam.Credential) (meta.ACLPolicy, error) {
	switch canned {
	case "", "private", "public-read", "public-read-write", "authenticated-read":
		if canned == "" {
			canned = "private"
		}
		return meta.ACLPolicy{OwnerID: owner.UserID, OwnerDisplay: owner.DisplayName, CannedACL: canned}, nil
	default:
		return meta.ACLPolicy{}, apierrors.New(apierrors.ErrInvalidArgument, "unknown canned ACL "+canned)
	}
}

// GetBucketACL implements GET ?acl for a bucket.
func (g *Gateway) GetBucketACL(ctx context.Context, bucket string, credential iam.Credential) (meta.ACLPolicy, error) {
	b, err := g.GetBucketInfo(ctx, bucket)
	if err != nil {
		return meta.ACLPolicy{}, err
	}
	if err := authorize(b.ACL, credential, iam.PermReadACP); err != nil {
		return meta.ACLPolicy{}, err
	}
	return b.ACL, nil
}

// SetBucketACL implements PUT ?acl for a bucket, either from a canned-ACL
// header or an explicit AccessControlPolicy document (policy, when
// non-nil, wins over canned).
func (g *Gateway) SetBucketACL(ctx context.Context, bucket, canned string, policy *meta.ACLPolicy, credential iam.Credential) error {
	b, err := g.GetBucketInfo(ctx, bucket)
	if err != nil {
		return err
	}
	if err := authorize(b.ACL, credential, iam.PermWriteACP); err != nil {
		return err
	}

	var newPolicy meta.ACLPolicy
	if policy != nil {
		newPolicy = *policy
		newPolicy.OwnerID = b.ACL.OwnerID
		newPolicy.OwnerDisplay = b.ACL.OwnerDisplay
	} else {
		newPolicy, err = cannedACLPolicy(canned, credential)
		if err != nil {
			return err
		}
		newPolicy.OwnerID = b.ACL.OwnerID
		newPolicy.OwnerDisplay = b.ACL.OwnerDisplay
	}

	if err := g.Backend.SetBucketACL(ctx, bucket, newPolicy); err != nil {
		return err
	}
	if g.Cache != nil {
		g.Cache.Remove(cache.TableBucket, bucket)
	}
	return nil
}

// GetObjectACL implements GET ?acl for an object.
func (g *Gateway) GetObjectACL(ctx context.Context, bucket, key string, credential iam.Credential) (meta.ACLPolicy, error) {
	o, err := g.Backend.GetObject(ctx, bucket, key)
	if err != nil {
		return meta.ACLPolicy{}, err
	}
	if err := authorize(o.ACL, credential, iam.PermReadACP); err != nil {
		return meta.ACLPolicy{}, err
	}
	return o.ACL, nil
}

// SetObjectACL implements PUT ?acl for an object.
func (g *Gateway) SetObjectACL(ctx context.Context, bucket, key, canned string, policy *meta.ACLPolicy, credential iam.Credential) error {
	o, err := g.Backend.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := authorize(o.ACL, credential, iam.PermWriteACP); err != nil {
		return err
	}

	var newPolicy meta.ACLPolicy
	if policy != nil {
		newPolicy = *policy
		newPolicy.OwnerID = o.ACL.OwnerID
		newPolicy.OwnerDisplay = o.ACL.OwnerDisplay
	} else {
		newPolicy, err = cannedACLPolicy(canned, credential)
		if err != nil {
			return err
		}
		newPolicy.OwnerID = o.ACL.OwnerID
		newPolicy.OwnerDisplay = o.ACL.OwnerDisplay
	}
	return g.Backend.SetObjectACL(ctx, bucket, key, newPolicy)
}

// GetBucketCORS implements GET ?cors.
func (g *Gateway) GetBucketCORS(ctx context.Context, bucket string) (meta.CORSConfiguration, error) {
	b, err := g.GetBucketInfo(ctx, bucket)
	if err != nil {
		return meta.CORSConfiguration{}, err
	}
	if len(b.CORS.Rules) == 0 {
		return meta.CORSConfiguration{}, apierrors.New(apierrors.ErrNoSuchCORSConfiguration, "")
	}
	return b.CORS, nil
}

// SetBucketCORS implements PUT ?cors.
func (g *Gateway) SetBucketCORS(ctx context.Context, bucket string, cors meta.CORSConfiguration, credential iam.Credential) error {
	b, err := g.GetBucketInfo(ctx, bucket)
	if err != nil {
		return err
	}
	if err := authorize(b.ACL, credential, iam.PermWrite); err != nil {
		return err
	}
	if err := g.Backend.SetBucketCORS(ctx, bucket, cors); err != nil {
		return err
	}
	if g.Cache != nil {
		g.Cache.Remove(cache.TableBucket, bucket)
	}
	return nil
}

// DeleteBucketCORS implements DELETE ?cors.
func (g *Gateway) DeleteBucketCORS(ctx context.Context, bucket string, credential iam.Credential) error {
	return g.SetBucketCORS(ctx, bucket, meta.CORSConfiguration{}, credential)
}
