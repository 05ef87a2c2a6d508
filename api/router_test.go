package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func matches(t *testing.T, router *mux.Router, method, target string, headers map[string]string) bool {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	var match mux.RouteMatch
	return router.Match(req, &match)
}

func TestRouterDispatchTable(t *testing.T) {
	router := NewRouter(&Handlers{})

	cases := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		want    bool
	}{
		{"list_buckets", http.MethodGet, "/", nil, true},
		{"list_objects", http.MethodGet, "/mybucket", nil, true},
		{"head_bucket", http.MethodHead, "/mybucket", nil, true},
		{"create_bucket", http.MethodPut, "/mybucket", nil, true},
		{"delete_bucket", http.MethodDelete, "/mybucket", nil, true},
		{"get_bucket_acl", http.MethodGet, "/mybucket?acl", nil, true},
		{"put_bucket_acl", http.MethodPut, "/mybucket?acl", nil, true},
		{"list_multipart_uploads", http.MethodGet, "/mybucket?uploadId=abc", nil, true},
		{"head_list_multipart_uploads", http.MethodHead, "/mybucket?uploadId=abc", nil, true},
		{"get_bucket_logging", http.MethodGet, "/mybucket?logging", nil, true},
		{"get_bucket_versioning", http.MethodGet, "/mybucket?versioning", nil, true},
		{"delete_multiple_objects", http.MethodPost, "/mybucket?delete", nil, true},
		{"post_object", http.MethodPost, "/mybucket", nil, true},
		{"get_object", http.MethodGet, "/mybucket/my/key.txt", nil, true},
		{"head_object", http.MethodHead, "/mybucket/my/key.txt", nil, true},
		{"put_object", http.MethodPut, "/mybucket/my/key.txt", nil, true},
		{"delete_object", http.MethodDelete, "/mybucket/my/key.txt", nil, true},
		{"init_multipart", http.MethodPost, "/mybucket/my/key.txt?uploads", nil, true},
		{"complete_multipart", http.MethodPost, "/mybucket/my/key.txt?uploadId=abc", nil, true},
		{"abort_multipart", http.MethodDelete, "/mybucket/my/key.txt?uploadId=abc", nil, true},
		{"upload_part", http.MethodPut, "/mybucket/my/key.txt?partNumber=1&uploadId=abc", nil, true},
		{"copy_object", http.MethodPut, "/mybucket/my/key.txt", map[string]string{"X-Amz-Copy-Source": "/src/key"}, true},
		{"patch_on_service_rejected", http.MethodPatch, "/", nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := matches(t, router, c.method, c.target, c.headers); got != c.want {
				t.Errorf("%s %s matched = %v, want %v", c.method, c.target, got, c.want)
			}
		})
	}
}

func TestStripVirtualHostMiddlewareRewritesPath(t *testing.T) {
	var gotPath string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	})
	wrapped := stripVirtualHostMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/my/key.txt", nil)
	req.Host = "photos.s3.amazonaws.com"
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	if gotPath != "/photos/my/key.txt" {
		t.Errorf("rewritten path = %q, want /photos/my/key.txt", gotPath)
	}
}

func TestStripVirtualHostMiddlewareLeavesPathStyleAlone(t *testing.T) {
	var gotPath string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	})
	wrapped := stripVirtualHostMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/mybucket/key.txt", nil)
	req.Host = "s3.amazonaws.com"
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	if gotPath != "/mybucket/key.txt" {
		t.Errorf("path-style request path changed to %q", gotPath)
	}
}
