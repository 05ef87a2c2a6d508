package signature

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/iam"
)

func signedGetRequest(accessKeyID, secretKey, path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	date := time.Now().Format(time.RFC1123)
	req.Header.Set("Date", date)
	stringToSign := strings.Join([]string{req.Method, "", "", date, req.URL.Path}, "\n")
	req.Header.Set("Authorization", "AWS "+accessKeyID+":"+sign(secretKey, stringToSign))
	return req
}

func TestAuthenticateAnonymous(t *testing.T) {
	store := iam.NewStore()
	req := httptest.NewRequest(http.MethodGet, "/bucket", nil)

	cred, err := Authenticate(req, store)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !cred.Anonymous {
		t.Error("expected an anonymous credential")
	}
	if cred.PermMask != iam.PermFullControl {
		t.Errorf("anonymous PermMask = %v, want PermFullControl", cred.PermMask)
	}
}

func TestAuthenticateOwnerKeyGrantsFullControl(t *testing.T) {
	store := iam.NewStore()
	if _, err := store.AddUser(iam.AddUserParams{
		UserID: "alice", DisplayName: "Alice",
		AccessKeyID: "AKIDEXAMPLE", SecretKey: "secretkey",
	}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	req := signedGetRequest("AKIDEXAMPLE", "secretkey", "/bucket")
	cred, err := Authenticate(req, store)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if cred.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", cred.UserID)
	}
	if cred.PermMask != iam.PermFullControl {
		t.Errorf("PermMask = %v, want PermFullControl for an owner key", cred.PermMask)
	}
}

func TestAuthenticateSubuserKeyUsesSubuserPermMask(t *testing.T) {
	store := iam.NewStore()
	if _, err := store.AddUser(iam.AddUserParams{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := store.AddSubuser("alice", "readonly", iam.PermRead); err != nil {
		t.Fatalf("AddSubuser: %v", err)
	}
	key, err := store.AddKey(iam.AddKeyParams{
		UserID: "alice", Subuser: "readonly", Type: iam.KeyTypeS3,
		AccessKeyID: "SUBKEY", SecretKey: "subsecret",
	})
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	req := signedGetRequest(key.ID, "subsecret", "/bucket")
	cred, err := Authenticate(req, store)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if cred.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", cred.UserID)
	}
	if cred.PermMask != iam.PermRead {
		t.Errorf("PermMask = %v, want PermRead (subuser mask), not an owner bypass", cred.PermMask)
	}
}

func TestAuthenticateSuspendedUserRejected(t *testing.T) {
	store := iam.NewStore()
	if _, err := store.AddUser(iam.AddUserParams{
		UserID: "alice", DisplayName: "Alice",
		AccessKeyID: "AKIDEXAMPLE", SecretKey: "secretkey",
	}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if _, err := store.ModifyUser(iam.ModifyUserParams{UserID: "alice", Suspended: true, SetSuspended: true}); err != nil {
		t.Fatalf("ModifyUser: %v", err)
	}

	req := signedGetRequest("AKIDEXAMPLE", "secretkey", "/bucket")
	_, err := Authenticate(req, store)
	if !apierrors.Is(err, apierrors.ErrAccessDenied) {
		t.Errorf("Authenticate(suspended user) = %v, want ErrAccessDenied", err)
	}
}

func TestAuthenticateUnknownAccessKeyRejected(t *testing.T) {
	store := iam.NewStore()
	req := signedGetRequest("NOBODY", "whatever", "/bucket")
	if _, err := Authenticate(req, store); err == nil {
		t.Error("expected an error authenticating an unknown access key")
	}
}

func TestAuthenticateV4Rejected(t *testing.T) {
	store := iam.NewStore()
	req := httptest.NewRequest(http.MethodGet, "/bucket", nil)
	req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20060102/us-east-1/s3/aws4_request")

	_, err := Authenticate(req, store)
	if !apierrors.Is(err, apierrors.ErrSignatureVersionNotSupported) {
		t.Errorf("expected ErrSignatureVersionNotSupported, got %v", err)
	}
}
