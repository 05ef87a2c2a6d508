package api

import (
	"encoding/xml"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/datatype"
	"github.com/cloudgate/s3gw/internal/formatter"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/multipartform"
	"github.com/cloudgate/s3gw/internal/signature"
	"github.com/cloudgate/s3gw/internal/storage"
)

// GetObject implements GET Object: conditional headers and Range are
// evaluated before any bytes are written, per spec.md §4.6's evaluation
// order (If-Match/If-None-Match, then modified-since, then Range).
func (h *Handlers) GetObject(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	rng, err := storage.ParseRange(r.Header.Get("Range"))
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	req := storage.GetObjectRequest{
		Bucket:            vars["bucket"],
		Key:               vars["object"],
		Range:             rng,
		IfMatch:           strings.Trim(r.Header.Get("If-Match"), `"`),
		IfNoneMatch:       strings.Trim(r.Header.Get("If-None-Match"), `"`),
		IfModifiedSince:   parseTimeHeader(r, "If-Modified-Since"),
		IfUnmodifiedSince: parseTimeHeader(r, "If-Unmodified-Since"),
	}
	result, err := h.Gateway.GetObject(r.Context(), req, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}

	setObjectHeaders(w, result, requestID)
	if result.Partial {
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	h.Gateway.WriteObjectData(r.Context(), result, w)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// HeadObject implements HEAD Object: identical to GetObject except the
// body is never written.
func (h *Handlers) HeadObject(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	rng, err := storage.ParseRange(r.Header.Get("Range"))
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	req := storage.GetObjectRequest{
		Bucket: vars["bucket"], Key: vars["object"], Range: rng,
		IfMatch:           strings.Trim(r.Header.Get("If-Match"), `"`),
		IfNoneMatch:       strings.Trim(r.Header.Get("If-None-Match"), `"`),
		IfModifiedSince:   parseTimeHeader(r, "If-Modified-Since"),
		IfUnmodifiedSince: parseTimeHeader(r, "If-Unmodified-Since"),
	}
	result, err := h.Gateway.GetObject(r.Context(), req, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	setObjectHeaders(w, result, requestID)
	if result.Partial {
		w.WriteHeader(http.StatusPartialContent)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func setObjectHeaders(w http.ResponseWriter, result storage.GetObjectResult, requestID string) {
	formatter.SetCommonHeaders(w, requestID)
	o := result.Object
	w.Header().Set("Content-Type", o.ContentType)
	w.Header().Set("ETag", `"`+o.ETag+`"`)
	w.Header().Set("Last-Modified", o.MTime.UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.FormatInt(result.Length, 10))
	for k, v := range o.Attrs {
		w.Header().Set("x-amz-meta-"+k, string(v))
	}
	if result.Partial {
		w.Header().Set("Content-Range", contentRangeHeader(result.Offset, result.Length, o.Size))
	}
}

func contentRangeHeader(offset, length, size int64) string {
	return "bytes " + strconv.FormatInt(offset, 10) + "-" + strconv.FormatInt(offset+length-1, 10) + "/" + strconv.FormatInt(size, 10)
}

// PutObject implements PUT Object (and, via the X-Amz-Copy-Source router
// match, is never reached for copies — those go through CopyObject).
func (h *Handlers) PutObject(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	req := storage.PutObjectRequest{
		Bucket:      vars["bucket"],
		Key:         vars["object"],
		ContentType: r.Header.Get("Content-Type"),
		CannedACL:   r.Header.Get("X-Amz-Acl"),
		Attrs:       userMetadata(r.Header),
		Data:        r.Body,
	}
	o, err := h.Gateway.PutObject(r.Context(), req, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.SetCommonHeaders(w, requestID)
	w.Header().Set("ETag", `"`+o.ETag+`"`)
	w.WriteHeader(http.StatusOK)
}

func userMetadata(header http.Header) map[string][]byte {
	attrs := map[string][]byte{}
	for k, v := range header {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, "x-amz-meta-") && len(v) > 0 {
			attrs[strings.TrimPrefix(lower, "x-amz-meta-")] = []byte(v[0])
		}
	}
	return attrs
}

// CopyObject implements PUT Object Copy (matched by the router when
// X-Amz-Copy-Source is present).
func (h *Handlers) CopyObject(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	srcBucket, srcKey, err := splitCopySource(r.Header.Get("X-Amz-Copy-Source"))
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	req := storage.CopyObjectRequest{
		SourceBucket:      srcBucket,
		SourceKey:         srcKey,
		DestBucket:        vars["bucket"],
		DestKey:           vars["object"],
		MetadataDirective: r.Header.Get("X-Amz-Metadata-Directive"),
		NewContentType:    r.Header.Get("Content-Type"),
		NewAttrs:          userMetadata(r.Header),
		IfMatch:           strings.Trim(r.Header.Get("X-Amz-Copy-Source-If-Match"), `"`),
		IfNoneMatch:       strings.Trim(r.Header.Get("X-Amz-Copy-Source-If-None-Match"), `"`),
		IfModifiedSince:   parseTimeHeader(r, "X-Amz-Copy-Source-If-Modified-Since"),
		IfUnmodifiedSince: parseTimeHeader(r, "X-Amz-Copy-Source-If-Unmodified-Since"),
	}
	o, err := h.Gateway.CopyObject(r.Context(), req, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateCopyObjectResponse(o.ETag, o.MTime))
}

func splitCopySource(header string) (bucket, key string, err error) {
	header = strings.TrimPrefix(header, "/")
	parts := strings.SplitN(header, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apierrors.New(apierrors.ErrInvalidArgument, "malformed x-amz-copy-source")
	}
	return parts[0], parts[1], nil
}

// DeleteObject implements DELETE Object.
func (h *Handlers) DeleteObject(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	if err := h.Gateway.DeleteObject(r.Context(), vars["bucket"], vars["object"], credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// GetObjectACL implements GET ?acl for an object.
func (h *Handlers) GetObjectACL(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	policy, err := h.Gateway.GetObjectACL(r.Context(), vars["bucket"], vars["object"], credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateAccessControlPolicy(policy))
}

// PutObjectACL implements PUT ?acl for an object.
func (h *Handlers) PutObjectACL(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
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
	if err := h.Gateway.SetObjectACL(r.Context(), vars["bucket"], vars["object"], canned, policy, credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// InitMultipart implements POST ?uploads.
func (h *Handlers) InitMultipart(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	uploadID, err := h.Gateway.InitMultipart(r.Context(), vars["bucket"], vars["object"], r.Header.Get("Content-Type"), r.Header.Get("X-Amz-Acl"), credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateInitiateMultipartUploadResponse(vars["bucket"], vars["object"], uploadID))
}

// UploadPart implements PUT ?partNumber=&uploadId=. The router matches
// this route ahead of the plain PutObject route whenever both query
// parameters are present.
func (h *Handlers) UploadPart(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	partNumber := queryInt(r, "partNumber", 0)
	if partNumber < 1 || partNumber > 10000 {
		writeError(w, r, apierrors.New(apierrors.ErrInvalidArgument, "partNumber must be between 1 and 10000"), requestID)
		return
	}
	data, err := readAllLimited(r)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	part, err := h.Gateway.UploadPart(r.Context(), vars["bucket"], vars["object"], r.URL.Query().Get("uploadId"), partNumber, data, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.SetCommonHeaders(w, requestID)
	w.Header().Set("ETag", `"`+part.ETag+`"`)
	w.WriteHeader(http.StatusOK)
}

// CompleteMultipart implements POST ?uploadId=.
func (h *Handlers) CompleteMultipart(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	var doc struct {
		XMLName xml.Name `xml:"CompleteMultipartUpload"`
		Parts   []struct {
			PartNumber int    `xml:"PartNumber"`
			ETag       string `xml:"ETag"`
		} `xml:"Part"`
	}
	if err := xml.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, r, apierrors.New(apierrors.ErrMalformedXML, err.Error()), requestID)
		return
	}
	parts := make([]storage.CompletedPart, 0, len(doc.Parts))
	for _, p := range doc.Parts {
		parts = append(parts, storage.CompletedPart{Number: p.PartNumber, ETag: strings.Trim(p.ETag, `"`)})
	}
	o, err := h.Gateway.CompleteMultipart(r.Context(), vars["bucket"], vars["object"], r.URL.Query().Get("uploadId"), parts, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	location := "/" + vars["bucket"] + "/" + vars["object"]
	writeXML(w, requestID, datatype.GenerateCompleteMultipartUploadResponse(vars["bucket"], vars["object"], location, o.ETag))
}

// AbortMultipart implements DELETE ?uploadId=.
func (h *Handlers) AbortMultipart(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	if err := h.Gateway.AbortMultipart(r.Context(), vars["bucket"], vars["object"], r.URL.Query().Get("uploadId"), credential); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	formatter.WriteSuccessNoContent(w, requestID)
}

// ListParts implements GET ?uploadId=.
func (h *Handlers) ListParts(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	upload, err := h.Gateway.ListParts(r.Context(), vars["bucket"], vars["object"], r.URL.Query().Get("uploadId"), credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateListPartsResponse(upload))
}

// PostObject implements the browser-based POST Object upload path of
// spec.md §4.5: the multipart/form-data body is parsed by
// internal/multipartform and authenticated against its embedded policy
// document rather than a request signature.
func (h *Handlers) PostObject(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	vars := mux.Vars(r)
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || params["boundary"] == "" {
		writeError(w, r, apierrors.New(apierrors.ErrMalformedPOSTRequest, "missing multipart boundary"), requestID)
		return
	}
	form, err := multipartform.Parse(r.Body, params["boundary"])
	if err != nil {
		writeError(w, r, apierrors.New(apierrors.ErrMalformedPOSTRequest, err.Error()), requestID)
		return
	}
	if err := signature.VerifyPolicySignature(form.Fields, signature.NewStoreResolver(h.IAM)); err != nil {
		writeError(w, r, err, requestID)
		return
	}
	accessKeyID := form.Fields["awsaccesskeyid"]
	credential, err := credentialForPostPolicy(h.IAM, accessKeyID)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	key := form.Fields["key"]
	key = strings.Replace(key, "${filename}", form.File.Filename, 1)

	req := storage.PutObjectRequest{
		Bucket:      vars["bucket"],
		Key:         key,
		ContentType: form.File.ContentType,
		CannedACL:   form.Fields["acl"],
		Data:        byteSliceReader(form.File.Data),
	}
	o, err := h.Gateway.PutObject(r.Context(), req, credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	if redirect := form.Fields["success_action_redirect"]; redirect != "" {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	status := 204
	if raw := form.Fields["success_action_status"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			status = n
		}
	}
	formatter.SetCommonHeaders(w, requestID)
	w.Header().Set("ETag", `"`+o.ETag+`"`)
	if status == 201 {
		w.WriteHeader(http.StatusCreated)
		w.Write(formatter.EncodeXMLResponse(datatype.GeneratePostObjectResponse(req.Bucket, req.Key, o.ETag, r.URL.String())))
		return
	}
	if status == 200 {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func credentialForPostPolicy(store interface {
	UserByAccessKey(string) (*iam.User, error)
}, accessKeyID string) (iam.Credential, error) {
	if accessKeyID == "" {
		return iam.Credential{Anonymous: true, PermMask: iam.PermFullControl}, nil
	}
	user, err := store.UserByAccessKey(accessKeyID)
	if err != nil {
		return iam.Credential{}, err
	}
	return iam.Credential{UserID: user.UserID, DisplayName: user.DisplayName, PermMask: iam.PermFullControl}, nil
}
