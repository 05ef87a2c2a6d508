package datatype

import (
	"encoding/xml"

	"github.com/cloudgate/s3gw/internal/apierrors"
)

// ErrorResponse is the body of every non-2xx S3 API response, grounded in
// the teacher's ApiErrorResponse.
type ErrorResponse struct {
	XMLName    xml.Name `xml:"Error" json:"-"`
	Code       string   `xml:"Code"`
	Message    string   `xml:"Message"`
	Key        string   `xml:"Key,omitempty"`
	BucketName string   `xml:"BucketName,omitempty"`
	Resource   string   `xml:"Resource,omitempty"`
	RequestID  string   `xml:"RequestId"`
	HostID     string   `xml:"HostId"`
}

// GenerateErrorResponse builds an ErrorResponse for err (expected to be an
// *apierrors.Error, but tolerant of any error), tagging it with the
// request's resource path and a fresh per-request id.
func GenerateErrorResponse(err error, resource, requestID string) ErrorResponse {
	resp := ErrorResponse{
		Code:      "InternalError",
		Message:   "We encountered an internal error, please try again.",
		Resource:  resource,
		RequestID: requestID,
		HostID:    requestID,
	}
	if apiErr, ok := err.(*apierrors.Error); ok {
		resp.Code = apierrors.AwsCode(apiErr)
		resp.Message = apiErr.Error()
	}
	return resp
}
