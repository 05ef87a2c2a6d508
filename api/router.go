// Package api is the S3 HTTP surface of spec.md §4.1: gorilla/mux-based
// URL/host dispatch onto one handler per (method, sub-resource) cell of
// the router table, grounded in the teacher's api package layout
// (bucket-handlers.go, log-handler.go, server.go) generalized from a
// single hardcoded YigStorage onto the storage.Gateway op layer.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/signature"
	"github.com/cloudgate/s3gw/internal/storage"
)

// Handlers bundles the Gateway + IAM Store every HTTP handler closes
// over.
type Handlers struct {
	Gateway *storage.Gateway
	IAM     *iam.Store
}

// NewRouter builds the full S3 API mux.Router per spec.md §4.1's
// dispatch table. Virtual-hosted-style requests are rewritten onto the
// same bucket/object route variables by stripVirtualHostMiddleware before mux
// matching runs.
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.Use(stripVirtualHostMiddleware)

	// service (no bucket)
	router.Methods(http.MethodGet, http.MethodHead).Path("/").HandlerFunc(h.ListBuckets)

	bucket := router.PathPrefix("/{bucket}").Subrouter()

	// bucket, GET family
	bucket.Methods(http.MethodGet).Queries("acl", "").HandlerFunc(h.GetBucketACL)
	bucket.Methods(http.MethodGet).Queries("cors", "").HandlerFunc(h.GetBucketCORS)
	bucket.Methods(http.MethodGet).Queries("logging", "").HandlerFunc(h.GetBucketLogging)
	bucket.Methods(http.MethodGet).Queries("versioning", "").HandlerFunc(h.GetBucketVersioning)
	bucket.Methods(http.MethodGet).Queries("uploadId", "").HandlerFunc(h.ListMultipartUploads)
	bucket.Methods(http.MethodGet).Path("").HandlerFunc(h.ListObjects)
	bucket.Methods(http.MethodHead).Queries("uploadId", "").HandlerFunc(h.ListMultipartUploads)
	bucket.Methods(http.MethodHead).Path("").HandlerFunc(h.HeadBucket)

	// bucket, PUT family
	bucket.Methods(http.MethodPut).Queries("acl", "").HandlerFunc(h.PutBucketACL)
	bucket.Methods(http.MethodPut).Queries("cors", "").HandlerFunc(h.PutBucketCORS)
	bucket.Methods(http.MethodPut).Queries("versioning", "").HandlerFunc(h.PutBucketVersioning)
	bucket.Methods(http.MethodPut).Path("").HandlerFunc(h.CreateBucket)

	// bucket, DELETE/POST
	bucket.Methods(http.MethodDelete).Queries("cors", "").HandlerFunc(h.DeleteBucketCORS)
	bucket.Methods(http.MethodDelete).Path("").HandlerFunc(h.DeleteBucket)
	bucket.Methods(http.MethodPost).Queries("delete", "").HandlerFunc(h.DeleteMultipleObjects)
	bucket.Methods(http.MethodPost).Path("").HandlerFunc(h.PostObject)

	object := router.PathPrefix("/{bucket}/{object:.+}").Subrouter()

	// object, GET family
	object.Methods(http.MethodGet).Queries("acl", "").HandlerFunc(h.GetObjectACL)
	object.Methods(http.MethodGet).Queries("uploadId", "").HandlerFunc(h.ListParts)
	object.Methods(http.MethodGet).Path("").HandlerFunc(h.GetObject)
	object.Methods(http.MethodHead).Path("").HandlerFunc(h.HeadObject)

	// object, PUT family
	object.Methods(http.MethodPut).Queries("acl", "").HandlerFunc(h.PutObjectACL)
	object.Methods(http.MethodPut).Queries("partNumber", "", "uploadId", "").HandlerFunc(h.UploadPart)
	object.Methods(http.MethodPut).HeadersRegexp("X-Amz-Copy-Source", ".+").HandlerFunc(h.CopyObject)
	object.Methods(http.MethodPut).Path("").HandlerFunc(h.PutObject)

	// object, POST family
	object.Methods(http.MethodPost).Queries("uploadId", "").HandlerFunc(h.CompleteMultipart)
	object.Methods(http.MethodPost).Queries("uploads", "").HandlerFunc(h.InitMultipart)

	// object, DELETE family
	object.Methods(http.MethodDelete).Queries("uploadId", "").HandlerFunc(h.AbortMultipart)
	object.Methods(http.MethodDelete).Path("").HandlerFunc(h.DeleteObject)

	return router
}

// stripVirtualHostMiddleware rewrites a virtual-hosted-style request
// ("bucket.s3.example.com" Host header) onto an equivalent path-style URL
// before the router's path-based routes run, per spec.md §4.1's
// "decompose URI into (bucket?, object?) in virtual-host or path style".
func stripVirtualHostMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bucket := signature.BucketFromHost(r.Host); bucket != "" {
			r.URL.Path = "/" + bucket + r.URL.Path
		}
		next.ServeHTTP(w, r)
	})
}
