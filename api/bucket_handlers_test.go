package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cloudgate/s3gw/internal/backend/memory"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/storage"
)

func newTestHandlers() (*Handlers, http.Handler) {
	iamStore := iam.NewStore()
	gateway := storage.New(memory.New(), iamStore, nil)
	h := &Handlers{Gateway: gateway, IAM: iamStore}
	return h, NewRouter(h)
}

// signRequest v2-signs req for accessKeyID/secretKey, only covering the
// subset of the canonical string relevant to these tests (no Content-Md5,
// no amz headers, query subresources limited to what buildCanonicalizedResource
// in internal/signature actually folds in).
func signRequest(req *http.Request, accessKeyID, secretKey string) {
	date := time.Now().Format(time.RFC1123)
	req.Header.Set("Date", date)

	resource := req.URL.Path
	signedSubresources := url.Values{}
	for _, q := range []string{"acl", "cors", "uploads", "uploadId", "partNumber", "versioning", "delete", "logging"} {
		if v := req.URL.Query(); v.Has(q) {
			signedSubresources.Set(q, v.Get(q))
		}
	}
	if encoded := signedSubresources.Encode(); encoded != "" {
		resource += "?" + encoded
	}

	stringToSign := strings.Join([]string{req.Method, "", "", date, resource}, "\n")
	mac := hmac.New(sha1.New, []byte(secretKey))
	mac.Write([]byte(stringToSign))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	req.Header.Set("Authorization", "AWS "+accessKeyID+":"+sig)
}

func newOwnerCredential(t *testing.T, iamStore *iam.Store) (userID, accessKeyID, secretKey string) {
	t.Helper()
	u, err := iamStore.AddUser(iam.AddUserParams{
		UserID: "alice", DisplayName: "Alice",
		AccessKeyID: "AKIDEXAMPLE", SecretKey: "secretkey",
	})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	return u.UserID, "AKIDEXAMPLE", "secretkey"
}

func TestCreateAndHeadBucketRoundTrip(t *testing.T) {
	h, router := newTestHandlers()
	_, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	createReq := httptest.NewRequest(http.MethodPut, "/mybucket", nil)
	signRequest(createReq, accessKeyID, secretKey)
	createRec := httptest.NewRecorder()
	router.ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusNoContent {
		t.Fatalf("CreateBucket status = %d, body = %s", createRec.Code, createRec.Body.String())
	}
	if loc := createRec.Header().Get("Location"); loc != "/mybucket" {
		t.Errorf("Location header = %q, want /mybucket", loc)
	}

	headReq := httptest.NewRequest(http.MethodHead, "/mybucket", nil)
	signRequest(headReq, accessKeyID, secretKey)
	headRec := httptest.NewRecorder()
	router.ServeHTTP(headRec, headReq)
	if headRec.Code != http.StatusNoContent {
		t.Fatalf("HeadBucket status = %d, body = %s", headRec.Code, headRec.Body.String())
	}
}

func TestHeadMissingBucketNotFound(t *testing.T) {
	h, router := newTestHandlers()
	_, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	req := httptest.NewRequest(http.MethodHead, "/does-not-exist", nil)
	signRequest(req, accessKeyID, secretKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("HeadBucket(missing) status = %d, want 404", rec.Code)
	}
}

func TestCreateBucketRejectsInvalidName(t *testing.T) {
	h, router := newTestHandlers()
	_, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	req := httptest.NewRequest(http.MethodPut, "/-bad-name", nil)
	signRequest(req, accessKeyID, secretKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("CreateBucket(invalid name) status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHeadBucketAnonymousDeniedOnPrivateBucket(t *testing.T) {
	h, router := newTestHandlers()
	_, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	createReq := httptest.NewRequest(http.MethodPut, "/mybucket", nil)
	signRequest(createReq, accessKeyID, secretKey)
	router.ServeHTTP(httptest.NewRecorder(), createReq)

	anonReq := httptest.NewRequest(http.MethodHead, "/mybucket", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, anonReq)
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous HeadBucket(private) status = %d, want 403", rec.Code)
	}
}

func TestGetBucketLoggingReturnsEmptyStatus(t *testing.T) {
	h, router := newTestHandlers()
	_, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	createReq := httptest.NewRequest(http.MethodPut, "/mybucket", nil)
	signRequest(createReq, accessKeyID, secretKey)
	router.ServeHTTP(httptest.NewRecorder(), createReq)

	req := httptest.NewRequest(http.MethodGet, "/mybucket?logging", nil)
	signRequest(req, accessKeyID, secretKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GetBucketLogging status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "BucketLoggingStatus") {
		t.Errorf("GetBucketLogging body = %s, want a BucketLoggingStatus element", rec.Body.String())
	}
}

func TestGetBucketLoggingAnonymousDeniedOnPrivateBucket(t *testing.T) {
	h, router := newTestHandlers()
	_, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	createReq := httptest.NewRequest(http.MethodPut, "/mybucket", nil)
	signRequest(createReq, accessKeyID, secretKey)
	router.ServeHTTP(httptest.NewRecorder(), createReq)

	anonReq := httptest.NewRequest(http.MethodGet, "/mybucket?logging", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, anonReq)
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous GetBucketLogging(private) status = %d, want 403", rec.Code)
	}
}

func TestGetBucketVersioningRoundTrip(t *testing.T) {
	h, router := newTestHandlers()
	_, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	createReq := httptest.NewRequest(http.MethodPut, "/mybucket", nil)
	signRequest(createReq, accessKeyID, secretKey)
	router.ServeHTTP(httptest.NewRecorder(), createReq)

	getReq := httptest.NewRequest(http.MethodGet, "/mybucket?versioning", nil)
	signRequest(getReq, accessKeyID, secretKey)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("GetBucketVersioning status = %d, want 200, body=%s", getRec.Code, getRec.Body.String())
	}
	if strings.Contains(getRec.Body.String(), "<Status>") {
		t.Errorf("GetBucketVersioning(never set) body = %s, want no Status element", getRec.Body.String())
	}

	putReq := httptest.NewRequest(http.MethodPut, "/mybucket?versioning", strings.NewReader(`<VersioningConfiguration><Status>Enabled</Status></VersioningConfiguration>`))
	signRequest(putReq, accessKeyID, secretKey)
	putRec := httptest.NewRecorder()
	router.ServeHTTP(putRec, putReq)
	if putRec.Code != http.StatusNoContent {
		t.Fatalf("PutBucketVersioning status = %d, want 204, body=%s", putRec.Code, putRec.Body.String())
	}

	getReq2 := httptest.NewRequest(http.MethodGet, "/mybucket?versioning", nil)
	signRequest(getReq2, accessKeyID, secretKey)
	getRec2 := httptest.NewRecorder()
	router.ServeHTTP(getRec2, getReq2)
	if !strings.Contains(getRec2.Body.String(), "<Status>Enabled</Status>") {
		t.Errorf("GetBucketVersioning(after enable) body = %s, want Status=Enabled", getRec2.Body.String())
	}
}

func TestDeleteBucketNotEmptyWithoutPurge(t *testing.T) {
	h, router := newTestHandlers()
	userID, accessKeyID, secretKey := newOwnerCredential(t, h.IAM)

	createReq := httptest.NewRequest(http.MethodPut, "/mybucket", nil)
	signRequest(createReq, accessKeyID, secretKey)
	router.ServeHTTP(httptest.NewRecorder(), createReq)

	if _, err := h.Gateway.PutObject(createReq.Context(), storage.PutObjectRequest{
		Bucket: "mybucket",
		Key:    "key.txt",
		Data:   byteSliceReader([]byte("hello")),
	}, iam.Credential{UserID: userID, PermMask: iam.PermFullControl}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	deleteReq := httptest.NewRequest(http.MethodDelete, "/mybucket", nil)
	signRequest(deleteReq, accessKeyID, secretKey)
	deleteRec := httptest.NewRecorder()
	router.ServeHTTP(deleteRec, deleteReq)
	if deleteRec.Code != http.StatusConflict {
		t.Errorf("DeleteBucket(not empty) status = %d, want 409, body=%s", deleteRec.Code, deleteRec.Body.String())
	}

	purgeReq := httptest.NewRequest(http.MethodDelete, "/mybucket?purge-objects=true", nil)
	signRequest(purgeReq, accessKeyID, secretKey)
	purgeRec := httptest.NewRecorder()
	router.ServeHTTP(purgeRec, purgeReq)
	if purgeRec.Code != http.StatusNoContent {
		t.Errorf("DeleteBucket(purge) status = %d, want 204, body=%s", purgeRec.Code, purgeRec.Body.String())
	}
}
