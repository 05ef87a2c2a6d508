// Package signature implements the AWS v2 request-signing scheme described
// in spec.md §4.2: HMAC-SHA1 over a canonical string built from the verb,
// a handful of headers, and the canonicalized resource path. Grounded
// directly in the teacher's signature/v2.go; AWS v4 signing is named a
// Non-goal by spec.md and is not implemented here.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/iam"
)

// virtualHostSuffix is the ".<host>" suffix stripped off Host to recover a
// virtual-hosted bucket name, mirroring the teacher's HOST_URL constant.
// Left as a var, not a const, so a server can set it from its own config
// at startup rather than hardcoding a single domain.
var virtualHostSuffix = ".s3.amazonaws.com"

// SetVirtualHostSuffix overrides the domain used to recognize
// virtual-hosted-style bucket addressing ("bucket.<suffix>").
func SetVirtualHostSuffix(suffix string) {
	virtualHostSuffix = suffix
}

const maxClockSkew = 15 * time.Minute

func verifyDate(dateString string) (bool, error) {
	date, err := ParseAmzDate(dateString)
	if err != nil {
		return false, err
	}
	diff := time.Now().Sub(date)
	if diff > maxClockSkew || diff < -maxClockSkew {
		return false, nil
	}
	return true, nil
}

func verifyNotExpired(expiresString string) (bool, error) {
	t, err := strconv.ParseInt(expiresString, 10, 64)
	if err != nil {
		return false, err
	}
	return !time.Now().After(time.Unix(t, 0)), nil
}

func buildCanonicalizedAmzHeaders(headers http.Header) string {
	var amzHeaders []string
	for k := range headers {
		if strings.HasPrefix(strings.ToLower(k), "x-amz-") {
			amzHeaders = append(amzHeaders, k)
		}
	}
	sort.Strings(amzHeaders)
	var sb strings.Builder
	for _, h := range amzHeaders {
		values := headers[h]
		sb.WriteString(strings.ToLower(h))
		sb.WriteByte(':')
		sb.WriteString(strings.Join(values, ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// subresourcesToSign is the fixed set of query parameters that, when
// present, must be folded into the canonicalized resource string. Order
// matters for neither signing nor verification since url.Values.Encode
// sorts by key.
var subresourcesToSign = []string{
	"acl", "cors", "delete", "lifecycle", "location",
	"logging", "notification", "partNumber",
	"policy", "requestPayment",
	"response-cache-control",
	"response-content-disposition",
	"response-content-encoding",
	"response-content-language",
	"response-content-type",
	"response-expires",
	"torrent", "uploadId", "uploads", "versionId",
	"versioning", "versions", "website",
}

// BucketFromHost recovers a virtual-hosted-style bucket name from the
// request Host header, or "" if the request is path-style.
func BucketFromHost(host string) string {
	if strings.HasSuffix(host, virtualHostSuffix) {
		return strings.TrimSuffix(host, virtualHostSuffix)
	}
	return ""
}

func buildCanonicalizedResource(r *http.Request) string {
	var sb strings.Builder
	if bucket := BucketFromHost(r.Host); bucket != "" {
		sb.WriteString("/" + bucket)
	}
	sb.WriteString(r.URL.Path)

	requestQuery := r.URL.Query()
	queryToSign := url.Values{}
	for _, q := range subresourcesToSign {
		if v, ok := requestQuery[q]; ok {
			queryToSign[q] = v
		}
	}
	if encoded := queryToSign.Encode(); encoded != "" {
		sb.WriteString("?" + encoded)
	}
	return sb.String()
}

func hmacSHA1(secret, stringToSign string) []byte {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return mac.Sum(nil)
}

func checkSignature(secretKey, stringToSign string, signature []byte) error {
	if !hmac.Equal(hmacSHA1(secretKey, stringToSign), signature) {
		return apierrors.New(apierrors.ErrSignatureDoesNotMatch, "")
	}
	return nil
}

// KeyResolver looks up the secret for an access key id, the only piece of
// identity state the signature package needs from internal/iam — kept as
// an interface so this package never imports the concrete Store type.
type KeyResolver interface {
	SecretForAccessKey(accessKeyID string) (secret string, err error)
}

// storeResolver adapts *iam.Store to KeyResolver.
type storeResolver struct{ store *iam.Store }

func (s storeResolver) SecretForAccessKey(accessKeyID string) (string, error) {
	user, err := s.store.UserByAccessKey(accessKeyID)
	if err != nil {
		return "", err
	}
	key, ok := user.AccessKeys[accessKeyID]
	if !ok {
		return "", apierrors.New(apierrors.ErrInvalidAccessKeyID, "")
	}
	return key.Secret, nil
}

// NewStoreResolver wraps store as a KeyResolver.
func NewStoreResolver(store *iam.Store) KeyResolver { return storeResolver{store} }

// VerifyHeaderAuth implements the "Authorization: AWS <id>:<sig>" path of
// spec.md §4.2, returning the resolved access key id on success.
func VerifyHeaderAuth(r *http.Request, resolver KeyResolver) (accessKeyID string, err error) {
	authHeader := r.Header.Get("Authorization")
	fields := strings.SplitN(authHeader, " ", 2)
	if len(fields) != 2 || fields[0] != "AWS" {
		return "", apierrors.New(apierrors.ErrMissingSignTag, "")
	}
	idAndSig := strings.SplitN(fields[1], ":", 2)
	if len(idAndSig) != 2 {
		return "", apierrors.New(apierrors.ErrMissingSignTag, "")
	}
	accessKeyID, sigB64 := idAndSig[0], idAndSig[1]

	secretKey, err := resolver.SecretForAccessKey(accessKeyID)
	if err != nil {
		return "", err
	}
	signature, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return "", apierrors.New(apierrors.ErrAuthorizationHeaderMalformed, "")
	}

	date := r.Header.Get("x-amz-date")
	if date == "" {
		date = r.Header.Get("Date")
	}
	if date == "" {
		return "", apierrors.New(apierrors.ErrMissingDateHeader, "")
	}
	verified, err := verifyDate(date)
	if err != nil {
		return "", apierrors.New(apierrors.ErrMalformedDate, "")
	}
	if !verified {
		return "", apierrors.New(apierrors.ErrRequestTimeTooSkewed, "")
	}

	var stringToSign strings.Builder
	stringToSign.WriteString(r.Method + "\n")
	stringToSign.WriteString(r.Header.Get("Content-Md5") + "\n")
	stringToSign.WriteString(r.Header.Get("Content-Type") + "\n")
	stringToSign.WriteString(date + "\n")
	stringToSign.WriteString(buildCanonicalizedAmzHeaders(r.Header))
	stringToSign.WriteString(buildCanonicalizedResource(r))

	if err := checkSignature(secretKey, stringToSign.String(), signature); err != nil {
		return "", err
	}
	return accessKeyID, nil
}

// VerifyQueryAuth implements the presigned-URL path of spec.md §4.2
// ("?AWSAccessKeyId=...&Expires=...&Signature=...").
func VerifyQueryAuth(r *http.Request, resolver KeyResolver) (accessKeyID string, err error) {
	query := r.URL.Query()
	accessKeyID = query.Get("AWSAccessKeyId")
	expires := query.Get("Expires")
	sigB64 := query.Get("Signature")

	secretKey, err := resolver.SecretForAccessKey(accessKeyID)
	if err != nil {
		return "", err
	}
	signature, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return "", apierrors.New(apierrors.ErrAuthorizationHeaderMalformed, "")
	}
	verified, err := verifyNotExpired(expires)
	if err != nil {
		return "", apierrors.New(apierrors.ErrMalformedDate, "")
	}
	if !verified {
		return "", apierrors.New(apierrors.ErrExpiredPresignRequest, "")
	}

	var stringToSign strings.Builder
	stringToSign.WriteString(r.Method + "\n")
	stringToSign.WriteString(r.Header.Get("Content-Md5") + "\n")
	stringToSign.WriteString(r.Header.Get("Content-Type") + "\n")
	stringToSign.WriteString(expires + "\n")
	stringToSign.WriteString(buildCanonicalizedAmzHeaders(r.Header))
	stringToSign.WriteString(buildCanonicalizedResource(r))

	if err := checkSignature(secretKey, stringToSign.String(), signature); err != nil {
		return "", err
	}
	return accessKeyID, nil
}

// VerifyPolicySignature implements the "POST object" browser-upload
// signing path of spec.md §4.5: the signature covers the base64-encoded
// policy document directly rather than a derived canonical string.
func VerifyPolicySignature(formValues map[string]string, resolver KeyResolver) error {
	accessKeyID, ok := formValues["awsaccesskeyid"]
	if !ok {
		return apierrors.New(apierrors.ErrMissingFields, "AWSAccessKeyId")
	}
	secretKey, err := resolver.SecretForAccessKey(accessKeyID)
	if err != nil {
		return err
	}
	sigB64, ok := formValues["signature"]
	if !ok {
		return apierrors.New(apierrors.ErrMissingFields, "Signature")
	}
	signature, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return apierrors.New(apierrors.ErrMalformedPOSTRequest, "")
	}
	policy, ok := formValues["policy"]
	if !ok {
		return apierrors.New(apierrors.ErrMissingFields, "Policy")
	}
	return checkSignature(secretKey, policy, signature)
}
