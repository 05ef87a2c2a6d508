package api

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/formatter"
	"github.com/cloudgate/s3gw/internal/helper"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/signature"
)

// maxPartSize bounds a single UploadPart body the router reads fully into
// memory (the backend's PutObjectPart contract takes a whole part at
// once, per meta.Backend). It is 64 MiB, well below S3's 5 GiB part
// ceiling: an unbounded read would let a client exhaust memory with a
// single request.
const maxPartSize = 64 << 20

// readAllLimited reads r.Body up to maxPartSize, rejecting anything
// larger with EntityTooLarge rather than silently truncating it.
func readAllLimited(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPartSize+1))
	if err != nil {
		return nil, apierrors.New(apierrors.ErrInternalError, err.Error())
	}
	if int64(len(data)) > maxPartSize {
		return nil, apierrors.New(apierrors.ErrEntityTooLarge, "")
	}
	return data, nil
}

// byteSliceReader adapts a []byte to io.Reader for PutObjectRequest.Data.
func byteSliceReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// newRequestID mints the opaque x-amz-request-id every response carries,
// grounded in the teacher's per-request id used for error correlation in
// api-response.go.
func newRequestID() string {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(raw[:])
}

// authenticate resolves r's credential and writes an error response
// (returning ok=false) on any signature failure. A zero-value anonymous
// credential is still "ok" — the per-op handler's authorize() call is
// what ultimately rejects anonymous access to a private resource.
func authenticate(w http.ResponseWriter, r *http.Request, iamStore *iam.Store, requestID string) (iam.Credential, bool) {
	credential, err := signature.Authenticate(r, iamStore)
	if err != nil {
		formatter.WriteErrorResponse(w, r, err, r.URL.Path, requestID)
		return iam.Credential{}, false
	}
	return credential, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	helper.Logln("request error:", r.Method, r.URL.Path, err)
	formatter.WriteErrorResponse(w, r, err, r.URL.Path, requestID)
}

func writeXML(w http.ResponseWriter, requestID string, body interface{}) {
	formatter.WriteSuccessResponse(w, requestID, formatter.EncodeXMLResponse(body))
}

// queryInt parses the named query parameter as an int, returning def on
// absence or parse failure.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func parseTimeHeader(r *http.Request, name string) *time.Time {
	raw := r.Header.Get(name)
	if raw == "" {
		return nil
	}
	t, err := signature.ParseAmzDate(raw)
	if err != nil {
		return nil
	}
	return &t
}
