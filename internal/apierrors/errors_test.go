package apierrors

import (
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no_such_bucket", New(ErrNoSuchBucket, ""), http.StatusNotFound},
		{"access_denied", New(ErrAccessDenied, ""), http.StatusForbidden},
		{"signature_mismatch", New(ErrSignatureDoesNotMatch, ""), http.StatusForbidden},
		{"unknown_error_type", errStub{}, http.StatusInternalServerError},
		{"unmapped_code", New(Code(9999), ""), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := HTTPStatus(c.err); got != c.want {
				t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
			}
		})
	}
}

func TestErrorMessageOverride(t *testing.T) {
	err := New(ErrInvalidArgument, "bucket name too long")
	if got := err.Error(); got != "bucket name too long" {
		t.Errorf("Error() = %q, want override message", got)
	}

	defaulted := New(ErrInvalidArgument, "")
	if got := defaulted.Error(); got != "Invalid argument." {
		t.Errorf("Error() = %q, want default description", got)
	}
}

func TestIs(t *testing.T) {
	err := New(ErrNoSuchKey, "")
	if !Is(err, ErrNoSuchKey) {
		t.Error("Is should match the same code")
	}
	if Is(err, ErrNoSuchBucket) {
		t.Error("Is should not match a different code")
	}
	if Is(errStub{}, ErrNoSuchKey) {
		t.Error("Is should reject non-*Error values")
	}
}

func TestAwsCode(t *testing.T) {
	if got := AwsCode(New(ErrBucketNotEmpty, "")); got != "BucketNotEmpty" {
		t.Errorf("AwsCode = %q, want BucketNotEmpty", got)
	}
	if got := AwsCode(errStub{}); got != "UnknownError" {
		t.Errorf("AwsCode(unknown) = %q, want UnknownError", got)
	}
}

type errStub struct{}

func (errStub) Error() string { return "stub" }
