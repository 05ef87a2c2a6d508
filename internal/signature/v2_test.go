package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudgate/s3gw/internal/apierrors"
)

type fakeResolver map[string]string

func (f fakeResolver) SecretForAccessKey(accessKeyID string) (string, error) {
	secret, ok := f[accessKeyID]
	if !ok {
		return "", apierrors.New(apierrors.ErrInvalidAccessKeyID, "")
	}
	return secret, nil
}

func sign(secret, stringToSign string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyHeaderAuthRoundTrip(t *testing.T) {
	resolver := fakeResolver{"AKIDEXAMPLE": "secretkey"}
	date := time.Now().Format(time.RFC1123)

	req := httptest.NewRequest(http.MethodGet, "/mybucket/mykey", nil)
	req.Header.Set("Date", date)

	stringToSign := strings.Join([]string{
		req.Method,
		"",
		"",
		date,
		"/mybucket/mykey",
	}, "\n")
	sig := sign("secretkey", stringToSign)
	req.Header.Set("Authorization", "AWS AKIDEXAMPLE:"+sig)

	accessKeyID, err := VerifyHeaderAuth(req, resolver)
	if err != nil {
		t.Fatalf("VerifyHeaderAuth: %v", err)
	}
	if accessKeyID != "AKIDEXAMPLE" {
		t.Errorf("accessKeyID = %q, want AKIDEXAMPLE", accessKeyID)
	}
}

func TestVerifyHeaderAuthWrongSignature(t *testing.T) {
	resolver := fakeResolver{"AKIDEXAMPLE": "secretkey"}
	req := httptest.NewRequest(http.MethodGet, "/mybucket/mykey", nil)
	req.Header.Set("Date", time.Now().Format(time.RFC1123))
	req.Header.Set("Authorization", "AWS AKIDEXAMPLE:"+base64.StdEncoding.EncodeToString([]byte("garbage-signature")))

	if _, err := VerifyHeaderAuth(req, resolver); !apierrors.Is(err, apierrors.ErrSignatureDoesNotMatch) {
		t.Errorf("expected ErrSignatureDoesNotMatch, got %v", err)
	}
}

func TestVerifyHeaderAuthStaleDateRejected(t *testing.T) {
	resolver := fakeResolver{"AKIDEXAMPLE": "secretkey"}
	date := time.Now().Add(-16 * time.Minute).Format(time.RFC1123)

	req := httptest.NewRequest(http.MethodGet, "/mybucket/mykey", nil)
	req.Header.Set("Date", date)
	stringToSign := strings.Join([]string{req.Method, "", "", date, "/mybucket/mykey"}, "\n")
	req.Header.Set("Authorization", "AWS AKIDEXAMPLE:"+sign("secretkey", stringToSign))

	if _, err := VerifyHeaderAuth(req, resolver); !apierrors.Is(err, apierrors.ErrRequestTimeTooSkewed) {
		t.Errorf("expected ErrRequestTimeTooSkewed, got %v", err)
	}
}

func TestVerifyQueryAuthExpiresOneSecondAhead(t *testing.T) {
	resolver := fakeResolver{"AKIDEXAMPLE": "secretkey"}
	expires := formatUnix(time.Now().Truncate(time.Second).Add(time.Second))

	req := httptest.NewRequest(http.MethodGet, "/mybucket/mykey", nil)
	stringToSign := strings.Join([]string{req.Method, "", "", expires, "/mybucket/mykey"}, "\n")
	sig := sign("secretkey", stringToSign)

	q := req.URL.Query()
	q.Set("AWSAccessKeyId", "AKIDEXAMPLE")
	q.Set("Expires", expires)
	q.Set("Signature", sig)
	req.URL.RawQuery = q.Encode()

	accessKeyID, err := VerifyQueryAuth(req, resolver)
	if err != nil {
		t.Fatalf("VerifyQueryAuth: %v", err)
	}
	if accessKeyID != "AKIDEXAMPLE" {
		t.Errorf("accessKeyID = %q, want AKIDEXAMPLE", accessKeyID)
	}
}

func TestVerifyQueryAuthExpired(t *testing.T) {
	resolver := fakeResolver{"AKIDEXAMPLE": "secretkey"}
	expires := formatUnix(time.Now().Add(-time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/mybucket/mykey", nil)
	stringToSign := strings.Join([]string{req.Method, "", "", expires, "/mybucket/mykey"}, "\n")
	sig := sign("secretkey", stringToSign)

	q := req.URL.Query()
	q.Set("AWSAccessKeyId", "AKIDEXAMPLE")
	q.Set("Expires", expires)
	q.Set("Signature", sig)
	req.URL.RawQuery = q.Encode()

	if _, err := VerifyQueryAuth(req, resolver); !apierrors.Is(err, apierrors.ErrExpiredPresignRequest) {
		t.Errorf("expected ErrExpiredPresignRequest, got %v", err)
	}
}

func TestBucketFromHost(t *testing.T) {
	SetVirtualHostSuffix(".s3.example.com")
	defer SetVirtualHostSuffix(".s3.amazonaws.com")

	if got := BucketFromHost("photos.s3.example.com"); got != "photos" {
		t.Errorf("BucketFromHost = %q, want photos", got)
	}
	if got := BucketFromHost("s3.example.com"); got != "" {
		t.Errorf("BucketFromHost(path-style host) = %q, want empty", got)
	}
}

func TestGetRequestAuthTypeClassification(t *testing.T) {
	cases := []struct {
		name string
		req  func() *http.Request
		want AuthType
	}{
		{"anonymous", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/", nil)
		}, AuthTypeAnonymous},
		{"signed_v2", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "AWS id:sig")
			return r
		}, AuthTypeSignedV2},
		{"signed_v4", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=...")
			return r
		}, AuthTypeSignedV4},
		{"presigned_v2", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/?AWSAccessKeyId=id&Expires=1&Signature=sig", nil)
			return r
		}, AuthTypePresignedV2},
		{"post_policy", func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/bucket", nil)
			r.Header.Set("Content-Type", "multipart/form-data; boundary=X")
			return r
		}, AuthTypePostPolicy},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := GetRequestAuthType(c.req()); got != c.want {
				t.Errorf("GetRequestAuthType = %v, want %v", got, c.want)
			}
		})
	}
}
