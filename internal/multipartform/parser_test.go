package multipartform

import (
	"strings"
	"testing"

	"github.com/cloudgate/s3gw/internal/apierrors"
)

const boundary = "X-BOUNDARY-1234"

func buildForm(fileBody string, trailingCRLF bool) string {
	var sb strings.Builder
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Disposition: form-data; name=\"key\"\r\n\r\n")
	sb.WriteString("uploads/photo.jpg\r\n")
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Disposition: form-data; name=\"AWSAccessKeyId\"\r\n\r\n")
	sb.WriteString("AKIDEXAMPLE\r\n")
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"photo.jpg\"\r\n")
	sb.WriteString("Content-Type: image/jpeg\r\n\r\n")
	sb.WriteString(fileBody)
	if trailingCRLF {
		sb.WriteString("\r\n--" + boundary + "--\r\n")
	} else {
		sb.WriteString("\r\n--" + boundary + "--")
	}
	return sb.String()
}

func TestParseWithTrailingCRLFBeforeFinalBoundary(t *testing.T) {
	form := buildForm("binary-jpeg-bytes", true)
	result, err := Parse(strings.NewReader(form), boundary)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Fields["key"] != "uploads/photo.jpg" {
		t.Errorf("key field = %q", result.Fields["key"])
	}
	if result.Fields["awsaccesskeyid"] != "AKIDEXAMPLE" {
		t.Errorf("AWSAccessKeyId field = %q", result.Fields["awsaccesskeyid"])
	}
	if !result.File.IsFile || string(result.File.Data) != "binary-jpeg-bytes" {
		t.Errorf("file part = %+v", result.File)
	}
	if result.File.ContentType != "image/jpeg" {
		t.Errorf("file content-type = %q", result.File.ContentType)
	}
}

func TestParseWithoutTrailingCRLFBeforeFinalBoundary(t *testing.T) {
	form := buildForm("binary-jpeg-bytes", false)
	result, err := Parse(strings.NewReader(form), boundary)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(result.File.Data) != "binary-jpeg-bytes" {
		t.Errorf("file data = %q, want binary-jpeg-bytes", result.File.Data)
	}
}

func TestParseMissingFilePart(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Disposition: form-data; name=\"key\"\r\n\r\n")
	sb.WriteString("uploads/photo.jpg\r\n")
	sb.WriteString("--" + boundary + "--")

	_, err := Parse(strings.NewReader(sb.String()), boundary)
	if !apierrors.Is(err, apierrors.ErrMissingData) {
		t.Errorf("Parse without a file part = %v, want ErrMissingData", err)
	}
}

func TestParseMissingKeyDefaultsToFilename(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"report.csv\"\r\n")
	sb.WriteString("Content-Type: text/csv\r\n\r\n")
	sb.WriteString("a,b,c\r\n--" + boundary + "--")

	result, err := Parse(strings.NewReader(sb.String()), boundary)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Fields["key"] != "report.csv" {
		t.Errorf("key defaulted to %q, want report.csv", result.Fields["key"])
	}
}

func TestParseNoBoundaryFound(t *testing.T) {
	_, err := Parse(strings.NewReader("no boundary markers here at all"), boundary)
	if !apierrors.Is(err, apierrors.ErrMalformedPOSTRequest) {
		t.Errorf("Parse with no boundary = %v, want ErrMalformedPOSTRequest", err)
	}
}
