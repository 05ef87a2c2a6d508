package api

import (
	"encoding/xml"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/datatype"
	"github.com/cloudgate/s3gw/internal/formatter"
	"github.com/cloudgate/s3gw/internal/meta"
	"github.com/cloudgate/s3gw/internal/storage"
)

// CreateBucket implements PUT Bucket.
func (h *Handlers) CreateBucket(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	if err := h.Gateway.MakeBucket(r.Context(), bucket, credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	w.Header().Set("Location", "/"+bucket)
	formatter.WriteSuccessNoContent(w, requestID)
}

// HeadBucket implements HEAD Bucket: existence + read-permission check,
// no body either way.
func (h *Handlers) HeadBucket(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	if _, err := h.Gateway.GetBucketACL(r.Context(), bucket, credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// DeleteBucket implements DELETE Bucket; ?purge-objects=true extends the
// default strict (BucketNotEmpty-on-residue) behavior to a recursive
// purge, matching the Admin CLI's bucket rm --purge-objects verb.
func (h *Handlers) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	purge := r.URL.Query().Get("purge-objects") == "true"
	if err := h.Gateway.DeleteBucket(r.Context(), bucket, credential, purge); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// ListObjects implements GET Bucket, dispatching on list-type=2 for the v2
// continuation-token flavor.
func (h *Handlers) ListObjects(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := datatype.ListObjectsRequest{
		Prefix:            q.Get("prefix"),
		Delimiter:         q.Get("delimiter"),
		Marker:            q.Get("marker"),
		ContinuationToken: q.Get("continuation-token"),
		StartAfter:        q.Get("start-after"),
		MaxKeys:           queryInt(r, "max-keys", 1000),
		EncodingType:      q.Get("encoding-type"),
	}

	marker := req.Marker
	isV2 := q.Get("list-type") == "2"
	if isV2 {
		marker = req.ContinuationToken
		if marker == "" {
			marker = req.StartAfter
		}
	}

	result, err := h.Gateway.ListObjects(r.Context(), bucket, req.Prefix, marker, req.Delimiter, req.MaxKeys, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	if isV2 {
		writeXML(w, requestID, datatype.GenerateListObjectsV2Response(bucket, req, result))
		return
	}
	writeXML(w, requestID, datatype.GenerateListObjectsResponse(bucket, req, result))
}

// GetBucketACL implements GET ?acl for a bucket.
func (h *Handlers) GetBucketACL(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	policy, err := h.Gateway.GetBucketACL(r.Context(), bucket, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateAccessControlPolicy(policy))
}

// PutBucketACL implements PUT ?acl for a bucket: a canned ACL from the
// x-amz-acl header, or an explicit AccessControlPolicy document body.
func (h *Handlers) PutBucketACL(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	canned := r.Header.Get("X-Amz-Acl")
	policy, err := decodeACLBody(r)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	if err := h.Gateway.SetBucketACL(r.Context(), bucket, canned, policy, credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// decodeACLBody reads an explicit AccessControlPolicy XML body when
// present (canned-ACL PUTs carry an empty body and rely on the header
// instead).
func decodeACLBody(r *http.Request) (*meta.ACLPolicy, error) {
	if r.ContentLength <= 0 {
		return nil, nil
	}
	var doc datatype.AccessControlPolicy
	if err := xml.NewDecoder(r.Body).Decode(&doc); err != nil {
		return nil, apierrors.New(apierrors.ErrMalformedXML, err.Error())
	}
	policy := meta.ACLPolicy{OwnerID: doc.Owner.ID, OwnerDisplay: doc.Owner.DisplayName}
	for _, g := range doc.AccessControlList.Grants {
		grant := meta.Grant{Permission: g.Permission}
		if g.Grantee.Type == "Group" {
			grant.GranteeURI = lastPathSegment(g.Grantee.URI)
		} else {
			grant.Grantee = g.Grantee.ID
		}
		policy.Grants = append(policy.Grants, grant)
	}
	return &policy, nil
}

// lastPathSegment extracts e.g. "AllUsers" out of the AWS group URI
// "http://acs.amazonaws.com/groups/global/AllUsers".
func lastPathSegment(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' {
			return uri[i+1:]
		}
	}
	return uri
}

// GetBucketCORS implements GET ?cors.
func (h *Handlers) GetBucketCORS(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	cors, err := h.Gateway.GetBucketCORS(r.Context(), bucket)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.FromMeta(cors))
}

// PutBucketCORS implements PUT ?cors.
func (h *Handlers) PutBucketCORS(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	var doc datatype.CORSConfiguration
	if err := xml.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, r, apierrors.New(apierrors.ErrMalformedXML, err.Error()), requestID)
		return
	}
	if err := h.Gateway.SetBucketCORS(r.Context(), bucket, doc.ToMeta(), credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// DeleteBucketCORS implements DELETE ?cors.
func (h *Handlers) DeleteBucketCORS(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	if err := h.Gateway.DeleteBucketCORS(r.Context(), bucket, credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// GetBucketLogging implements GET ?logging. Logging is never actually
// persisted, so the response is always the empty BucketLoggingStatus
// element once the permission check passes.
func (h *Handlers) GetBucketLogging(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	if err := h.Gateway.GetBucketLogging(r.Context(), bucket, credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.BucketLoggingStatus{})
}

// GetBucketVersioning implements GET ?versioning.
func (h *Handlers) GetBucketVersioning(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	state, err := h.Gateway.GetBucketVersioning(r.Context(), bucket, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateVersioningConfiguration(state))
}

// PutBucketVersioning implements PUT ?versioning.
func (h *Handlers) PutBucketVersioning(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	var doc struct {
		XMLName xml.Name `xml:"VersioningConfiguration"`
		Status  string   `xml:"Status"`
	}
	if err := xml.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, r, apierrors.New(apierrors.ErrMalformedXML, err.Error()), requestID)
		return
	}
	if err := h.Gateway.SetBucketVersioning(r.Context(), bucket, doc.Status, credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// ListMultipartUploads implements GET/HEAD ?uploadId for a bucket.
func (h *Handlers) ListMultipartUploads(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	if _, ok := authenticate(w, r, h.IAM, requestID); !ok {
		return
	}
	q := r.URL.Query()
	result, err := h.Gateway.ListMultipartUploads(r.Context(), bucket, q.Get("prefix"), q.Get("key-marker"), q.Get("upload-id-marker"), q.Get("delimiter"), queryInt(r, "max-uploads", 1000))
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateListMultipartUploadsResponse(bucket, result))
}

// DeleteMultipleObjects implements POST ?delete. Per-key results are
// collected as each delete completes and written as a single
// DeleteResult document after the last key; the response is not
// streamed.
func (h *Handlers) DeleteMultipleObjects(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	bucket := mux.Vars(r)["bucket"]
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	var doc datatype.DeleteObjectsRequest
	if err := xml.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, r, apierrors.New(apierrors.ErrMalformedXML, err.Error()), requestID)
		return
	}
	keys := make([]string, 0, len(doc.Objects))
	for _, o := range doc.Objects {
		keys = append(keys, o.Key)
	}

	var deleted []datatype.ObjectIdentifier
	var errs []datatype.DeleteError
	h.Gateway.DeleteMultipleObjects(r.Context(), bucket, keys, credential, func(result storage.DeleteObjectsResult) {
		if result.Deleted {
			deleted = append(deleted, datatype.ObjectIdentifier{Key: result.Key})
			return
		}
		errs = append(errs, datatype.DeleteError{Key: result.Key, Code: result.Code, Message: result.Message})
	})
	writeXML(w, requestID, datatype.GenerateMultiDeleteResponse(doc.Quiet, deleted, errs))
}
