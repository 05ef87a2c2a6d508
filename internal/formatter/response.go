package formatter

import (
	"bytes"
	"encoding/xml"
	"net/http"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/datatype"
)

// xmlHeader is prepended to every encoded S3 response, matching the
// teacher's EncodeResponse.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// EncodeXMLResponse marshals response as an S3-flavored XML document.
func EncodeXMLResponse(response interface{}) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	encoder := xml.NewEncoder(&buf)
	if err := encoder.Encode(response); err != nil {
		return nil
	}
	return buf.Bytes()
}

// SetCommonHeaders writes the headers every S3 response carries
// regardless of outcome.
func SetCommonHeaders(w http.ResponseWriter, requestID string) {
	w.Header().Set("Server", "s3gw")
	w.Header().Set("x-amz-request-id", requestID)
	w.Header().Set("Content-Type", "application/xml")
}

// WriteSuccessResponse writes response (already XML-encoded) with a 200
// and the common headers.
func WriteSuccessResponse(w http.ResponseWriter, requestID string, response []byte) {
	SetCommonHeaders(w, requestID)
	if response == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(response)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// WriteSuccessNoContent writes a 204 with the common headers and no body.
func WriteSuccessNoContent(w http.ResponseWriter, requestID string) {
	SetCommonHeaders(w, requestID)
	w.WriteHeader(http.StatusNoContent)
}

// WriteErrorResponse maps err onto its HTTP status and writes the S3
// error-document body, unless req is a HEAD request (which carries no
// body per spec.md §4.1).
func WriteErrorResponse(w http.ResponseWriter, req *http.Request, err error, resource, requestID string) {
	SetCommonHeaders(w, requestID)
	w.WriteHeader(apierrors.HTTPStatus(err))
	if req.Method == http.MethodHead {
		return
	}
	body := EncodeXMLResponse(datatype.GenerateErrorResponse(err, resource, requestID))
	w.Write(body)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
