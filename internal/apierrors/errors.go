// Package apierrors defines the gateway's internal error kinds and their
// mapping onto HTTP status and S3 error codes, grounded in the teacher's
// ApiError/ApiErrorCode usage (api/api-response.go: GetAPIErrorResponse)
// and the S3 error-code table in rgw_rest_s3.cc.
package apierrors

import "net/http"

// Code identifies an error kind. Every op in the gateway fails with exactly
// one Code; there is no exception-style unwinding across frames.
type Code int

const (
	ErrNone Code = iota

	ErrInvalidArgument
	ErrInvalidBucketName
	ErrBucketAlreadyExists
	ErrBucketAlreadyOwnedByYou
	ErrBucketNotEmpty
	ErrNoSuchBucket
	ErrNoSuchKey
	ErrNoSuchUpload
	ErrNoSuchVersion
	ErrAccessDenied
	ErrBucketAccessForbidden
	ErrSignatureDoesNotMatch
	ErrRequestTimeTooSkewed
	ErrExpiredPresignRequest
	ErrMissingSecurityHeader
	ErrMissingDateHeader
	ErrMalformedDate
	ErrMissingSignTag
	ErrAuthorizationHeaderMalformed
	ErrInvalidAccessKeyID
	ErrSignatureVersionNotSupported
	ErrLengthRequired
	ErrMissingContentLength
	ErrMissingContentMD5
	ErrBadDigest
	ErrPreconditionFailed
	ErrInvalidRange
	ErrNotImplemented
	ErrInternalError
	ErrMalformedXML
	ErrMalformedPOSTRequest
	ErrMissingData
	ErrMissingFields
	ErrEntityTooLarge
	ErrInvalidMaxKeys
	ErrInvalidMaxUploads
	ErrInvalidVersioning
	ErrNoSuchCORSConfiguration

	// admin/identity kinds
	ErrUserExists
	ErrUserNotFound
	ErrEmailExists
	ErrEmailNotFound
	ErrKeyExists
	ErrKeyNotFound
	ErrSubuserExists
	ErrSubuserNotFound
)

// Error is the concrete error value carried through the pipeline: a Code
// plus an optional human-readable detail message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if info, ok := table[e.Code]; ok {
		return info.Description
	}
	return "internal error"
}

// New builds an *Error for code, optionally overriding the default
// description with msg.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// info is one row of the error-kind -> wire-representation table.
type info struct {
	HTTPStatus   int
	AwsErrorCode string
	Description  string
}

var table = map[Code]info{
	ErrNone: {http.StatusOK, "", ""},

	ErrInvalidArgument:     {http.StatusBadRequest, "InvalidArgument", "Invalid argument."},
	ErrInvalidBucketName:   {http.StatusBadRequest, "InvalidBucketName", "The specified bucket is not valid."},
	ErrBucketAlreadyExists: {http.StatusConflict, "BucketAlreadyExists", "The requested bucket name is not available."},
	ErrBucketAlreadyOwnedByYou: {http.StatusOK, "BucketAlreadyOwnedByYou",
		"Your previous request to create the named bucket succeeded and you already own it."},
	ErrBucketNotEmpty:       {http.StatusConflict, "BucketNotEmpty", "The bucket you tried to delete is not empty."},
	ErrNoSuchBucket:         {http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist."},
	ErrNoSuchKey:            {http.StatusNotFound, "NoSuchKey", "The specified key does not exist."},
	ErrNoSuchUpload:         {http.StatusNotFound, "NoSuchUpload", "The specified multipart upload does not exist."},
	ErrNoSuchVersion:        {http.StatusNotFound, "NoSuchVersion", "The specified version does not exist."},
	ErrAccessDenied:         {http.StatusForbidden, "AccessDenied", "Access Denied."},
	ErrBucketAccessForbidden: {http.StatusForbidden, "AccessDenied", "Access to this bucket is denied."},
	ErrSignatureDoesNotMatch: {http.StatusForbidden, "SignatureDoesNotMatch",
		"The request signature we calculated does not match the signature you provided."},
	ErrRequestTimeTooSkewed:  {http.StatusForbidden, "RequestTimeTooSkewed", "The difference between the request time and the server's time is too large."},
	ErrExpiredPresignRequest: {http.StatusForbidden, "AccessDenied", "Request has expired."},
	ErrMissingSecurityHeader: {http.StatusBadRequest, "InvalidArgument", "Missing required header for this request."},
	ErrMissingDateHeader:     {http.StatusBadRequest, "AccessDenied", "AWS authentication requires a valid Date or x-amz-date header."},
	ErrMalformedDate:         {http.StatusBadRequest, "MalformedDate", "Invalid date format."},
	ErrMissingSignTag:        {http.StatusBadRequest, "InvalidArgument", "Signature tag missing."},
	ErrAuthorizationHeaderMalformed: {http.StatusBadRequest, "AuthorizationHeaderMalformed",
		"The authorization header is malformed."},
	ErrInvalidAccessKeyID:            {http.StatusForbidden, "InvalidAccessKeyId", "The access key ID you provided does not exist."},
	ErrSignatureVersionNotSupported:  {http.StatusBadRequest, "InvalidArgument", "Unsupported signature version."},
	ErrLengthRequired:                {http.StatusLengthRequired, "MissingContentLength", "You must provide the Content-Length HTTP header."},
	ErrMissingContentLength:          {http.StatusLengthRequired, "MissingContentLength", "You must provide the Content-Length HTTP header."},
	ErrMissingContentMD5:             {http.StatusBadRequest, "InvalidDigest", "Missing required header for this request: Content-Md5."},
	ErrBadDigest:                     {http.StatusBadRequest, "BadDigest", "The Content-Md5 you specified did not match what we received."},
	ErrPreconditionFailed:            {http.StatusPreconditionFailed, "PreconditionFailed", "At least one of the pre-conditions you specified did not hold."},
	ErrInvalidRange:                  {http.StatusRequestedRangeNotSatisfiable, "InvalidRange", "The requested range cannot be satisfied."},
	ErrNotImplemented:                {http.StatusNotImplemented, "NotImplemented", "A header or query you provided implies functionality that is not implemented."},
	ErrInternalError:                 {http.StatusInternalServerError, "InternalError", "We encountered an internal error, please try again."},
	ErrMalformedXML:                  {http.StatusBadRequest, "MalformedXML", "The XML you provided was not well-formed."},
	ErrMalformedPOSTRequest:          {http.StatusBadRequest, "MalformedPOSTRequest", "The body of your POST request is not well-formed multipart/form-data."},
	ErrMissingData:                   {http.StatusBadRequest, "MissingData", "No file part was found in the POST request."},
	ErrMissingFields:                 {http.StatusBadRequest, "MissingFields", "Missing fields required for request."},
	ErrEntityTooLarge:                {http.StatusBadRequest, "EntityTooLarge", "Your proposed upload exceeds the maximum allowed size."},
	ErrInvalidMaxKeys:                {http.StatusBadRequest, "InvalidArgument", "Argument max-keys must be an integer between 0 and 2147483647."},
	ErrInvalidMaxUploads:             {http.StatusBadRequest, "InvalidArgument", "Argument max-uploads must be an integer between 0 and 2147483647."},
	ErrInvalidVersioning:             {http.StatusBadRequest, "IllegalVersioningConfigurationException", "Invalid version id."},
	ErrNoSuchCORSConfiguration:       {http.StatusNotFound, "NoSuchCORSConfiguration", "The CORS configuration does not exist."},

	ErrUserExists:      {http.StatusConflict, "UserExists", "User already exists."},
	ErrUserNotFound:    {http.StatusNotFound, "NoSuchUser", "User does not exist."},
	ErrEmailExists:     {http.StatusConflict, "EmailExists", "Email address is already in use."},
	ErrEmailNotFound:   {http.StatusNotFound, "NoSuchEmail", "Email address not found."},
	ErrKeyExists:       {http.StatusConflict, "KeyExists", "Access key already exists."},
	ErrKeyNotFound:     {http.StatusNotFound, "NoSuchKey", "Access key not found."},
	ErrSubuserExists:   {http.StatusConflict, "SubuserExists", "Subuser already exists."},
	ErrSubuserNotFound: {http.StatusNotFound, "NoSuchSubuser", "Subuser not found."},
}

// HTTPStatus returns the mapped HTTP status for err, defaulting unknown
// error values to 500 as spec.md §7 requires.
func HTTPStatus(err error) int {
	if e, ok := err.(*Error); ok {
		if row, ok := table[e.Code]; ok {
			return row.HTTPStatus
		}
	}
	return http.StatusInternalServerError
}

// AwsCode returns the S3-style error code string for err.
func AwsCode(err error) string {
	if e, ok := err.(*Error); ok {
		if row, ok := table[e.Code]; ok {
			return row.AwsErrorCode
		}
	}
	return "UnknownError"
}

// Description returns the human-readable message for err.
func Description(err error) string {
	if e, ok := err.(*Error); ok {
		if e.Message != "" {
			return e.Message
		}
		if row, ok := table[e.Code]; ok {
			return row.Description
		}
	}
	return "We encountered an internal error, please try again."
}

// Is reports whether err is an *Error of the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
