package api

import (
	"net/http"

	"github.com/cloudgate/s3gw/internal/datatype"
)

// ListBuckets implements GET / (spec.md §4.1 service row): returns every
// bucket owned by the resolved credential, including the empty-list case
// for an anonymous caller.
func (h *Handlers) ListBuckets(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	credential, ok := authenticate(w, r, h.IAM, requestID)
	if !ok {
		return
	}
	buckets, err := h.Gateway.ListBuckets(r.Context(), credential)
	if err != nil {
		writeError(w, r, err, requestID)
		return
	}
	writeXML(w, requestID, datatype.GenerateListBucketsResponse(buckets, credential))
}
