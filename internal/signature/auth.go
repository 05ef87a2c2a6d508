package signature

import (
	"net/http"
	"strings"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/iam"
)

// AuthType classifies how a request carries its credentials, mirroring the
// teacher's signature.AuthType. AWS v4 variants are recognized (so a v4
// client gets ErrSignatureVersionNotSupported rather than a confusing
// generic failure) but are never verified — v4 signing is a spec.md
// Non-goal.
type AuthType int

const (
	AuthTypeUnknown AuthType = iota
	AuthTypeAnonymous
	AuthTypePresignedV4
	AuthTypePresignedV2
	AuthTypePostPolicy
	AuthTypeSignedV4
	AuthTypeSignedV2
)

const (
	signV2Algorithm = "AWS"
	signV4Algorithm = "AWS4-HMAC-SHA256"
)

func isRequestSignature(r *http.Request) (bool, AuthType) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return false, AuthTypeUnknown
	}
	switch {
	case strings.HasPrefix(header, signV4Algorithm+" "):
		return true, AuthTypeSignedV4
	case strings.HasPrefix(header, signV2Algorithm+" "):
		return true, AuthTypeSignedV2
	}
	return false, AuthTypeUnknown
}

func isRequestPresigned(r *http.Request) (bool, AuthType) {
	q := r.URL.Query()
	if _, ok := q["X-Amz-Credential"]; ok {
		return true, AuthTypePresignedV4
	}
	if _, ok := q["AWSAccessKeyId"]; ok {
		return true, AuthTypePresignedV2
	}
	return false, AuthTypeUnknown
}

func isRequestPostPolicySignature(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data")
}

// GetRequestAuthType classifies r per spec.md §4.2.
func GetRequestAuthType(r *http.Request) AuthType {
	if isSigned, version := isRequestSignature(r); isSigned {
		return version
	}
	if isPresigned, version := isRequestPresigned(r); isPresigned {
		return version
	}
	if isRequestPostPolicySignature(r) {
		return AuthTypePostPolicy
	}
	if _, ok := r.Header["Authorization"]; !ok {
		return AuthTypeAnonymous
	}
	return AuthTypeUnknown
}

// Authenticate resolves the http.Request down to an iam.Credential,
// running the v2 header or query-string signature check as appropriate.
// Anonymous requests succeed with a zero-valued anonymous credential; the
// caller (the per-op handler) is responsible for rejecting anonymous
// access where the operation or bucket ACL requires it.
func Authenticate(r *http.Request, store *iam.Store) (iam.Credential, error) {
	resolver := NewStoreResolver(store)
	switch GetRequestAuthType(r) {
	case AuthTypeAnonymous:
		return iam.Credential{Anonymous: true, PermMask: iam.PermFullControl}, nil
	case AuthTypeSignedV2:
		accessKeyID, err := VerifyHeaderAuth(r, resolver)
		if err != nil {
			return iam.Credential{}, err
		}
		return credentialForAccessKey(store, accessKeyID)
	case AuthTypePresignedV2:
		accessKeyID, err := VerifyQueryAuth(r, resolver)
		if err != nil {
			return iam.Credential{}, err
		}
		return credentialForAccessKey(store, accessKeyID)
	case AuthTypeSignedV4, AuthTypePresignedV4:
		return iam.Credential{}, apierrors.New(apierrors.ErrSignatureVersionNotSupported, "AWS v4 signing is not supported")
	case AuthTypePostPolicy:
		// The multipart-form POST-object path authenticates against the
		// embedded policy document, not the request itself; handled by
		// the object-POST handler via VerifyPolicySignature directly.
		return iam.Credential{}, nil
	}
	return iam.Credential{}, apierrors.New(apierrors.ErrSignatureVersionNotSupported, "")
}

// credentialForAccessKey resolves the session perm_mask per spec.md §4.2:
// a subuser key's mask is the subuser's own perm_mask; any other key
// grants FULL_CONTROL.
func credentialForAccessKey(store *iam.Store, accessKeyID string) (iam.Credential, error) {
	user, err := store.UserByAccessKey(accessKeyID)
	if err != nil {
		return iam.Credential{}, err
	}
	if user.Suspended {
		return iam.Credential{}, apierrors.New(apierrors.ErrAccessDenied, "user "+user.UserID+" is suspended")
	}
	mask := iam.PermFullControl
	if key, ok := user.AccessKeys[accessKeyID]; ok && key.Subuser != "" {
		if sub, ok := user.Subusers[key.Subuser]; ok {
			mask = sub.PermMask
		}
	}
	return iam.Credential{UserID: user.UserID, DisplayName: user.DisplayName, PermMask: mask}, nil
}
