// Package datatype holds the XML/JSON wire types of spec.md §4.1/§4.6:
// the request/response bodies the formatter package serializes, plus the
// helpers that build them out of the internal/meta data model. Grounded
// in the teacher's api/api-response.go and the GLOSSARY's "response
// generators".
package datatype

import (
	"encoding/xml"
	"net/url"
	"time"

	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
)

// TimeFormatAMZ is the date layout every S3 XML response uses.
const TimeFormatAMZ = "2006-01-02T15:04:05.000Z"

// Owner is the bucket/object owner block common to several responses.
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

// Bucket is one entry of ListBucketsResponse.Buckets.
type Bucket struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

// ListBucketsResponse is the body of GET / (ListBuckets).
type ListBucketsResponse struct {
	XMLName xml.Name `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListAllMyBucketsResult"`
	Owner   Owner    `xml:"Owner"`
	Buckets struct {
		Buckets []Bucket `xml:"Bucket"`
	} `xml:"Buckets"`
}

// GenerateListBucketsResponse builds a ListBucketsResponse for buckets
// owned by credential.
func GenerateListBucketsResponse(buckets []meta.Bucket, credential iam.Credential) ListBucketsResponse {
	data := ListBucketsResponse{}
	data.Owner = Owner{ID: credential.UserID, DisplayName: credential.DisplayName}
	for _, bucket := range buckets {
		data.Buckets.Buckets = append(data.Buckets.Buckets, Bucket{
			Name:         bucket.Name,
			CreationDate: bucket.CreationTime.UTC().Format(TimeFormatAMZ),
		})
	}
	return data
}

// Object is one entry of a ListObjectsResponse/VersionedListObjectsResponse.
type Object struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	Owner        *Owner `xml:"Owner,omitempty"`
	StorageClass string `xml:"StorageClass"`
	VersionID    string `xml:"VersionId,omitempty"`
	IsLatest     *bool  `xml:"IsLatest,omitempty"`
}

// CommonPrefix is one entry of a listing's CommonPrefixes.
type CommonPrefix struct {
	Prefix string `xml:"Prefix"`
}

// ListObjectsRequest carries the parsed query-string parameters of a
// GET Bucket (List Objects) request, both v1 and v2 forms.
type ListObjectsRequest struct {
	Version           int // 1 or 2
	Prefix            string
	Delimiter         string
	Marker            string // v1
	ContinuationToken string // v2
	StartAfter        string // v2
	MaxKeys           int
	EncodingType      string
}

// ListObjectsResponse is the body of GET Bucket (v1 List Objects).
type ListObjectsResponse struct {
	XMLName        xml.Name       `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	BucketName     string         `xml:"Name"`
	Prefix         string         `xml:"Prefix"`
	Marker         string         `xml:"Marker"`
	NextMarker     string         `xml:"NextMarker,omitempty"`
	MaxKeys        int            `xml:"MaxKeys"`
	Delimiter      string         `xml:"Delimiter,omitempty"`
	IsTruncated    bool           `xml:"IsTruncated"`
	Contents       []Object       `xml:"Contents"`
	CommonPrefixes []CommonPrefix `xml:"CommonPrefixes,omitempty"`
	EncodingType   string         `xml:"EncodingType,omitempty"`
	KeyCount       int            `xml:"-"`
}

// ListObjectsV2Response is the body of GET Bucket (v2 List Objects).
type ListObjectsV2Response struct {
	XMLName               xml.Name       `xml:"http://s3.amazonaws.com/doc/2006-03-01/ ListBucketResult"`
	BucketName            string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	StartAfter            string         `xml:"StartAfter,omitempty"`
	ContinuationToken     string         `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	KeyCount              int            `xml:"KeyCount"`
	MaxKeys               int            `xml:"MaxKeys"`
	Delimiter             string         `xml:"Delimiter,omitempty"`
	IsTruncated           bool           `xml:"IsTruncated"`
	Contents              []Object       `xml:"Contents"`
	CommonPrefixes        []CommonPrefix `xml:"CommonPrefixes,omitempty"`
	EncodingType          string         `xml:"EncodingType,omitempty"`
}

func objectsFromMeta(objects []meta.Object) []Object {
	out := make([]Object, 0, len(objects))
	for _, o := range objects {
		out = append(out, Object{
			Key:          o.Key,
			LastModified: o.MTime.UTC().Format(TimeFormatAMZ),
			ETag:         "\"" + o.ETag + "\"",
			Size:         o.Size,
			StorageClass: "STANDARD",
			Owner:        &Owner{ID: o.ACL.OwnerID, DisplayName: o.ACL.OwnerDisplay},
		})
	}
	return out
}

func commonPrefixesFrom(prefixes []string) []CommonPrefix {
	out := make([]CommonPrefix, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, CommonPrefix{Prefix: p})
	}
	return out
}

// GenerateListObjectsResponse builds the v1 response for bucketName.
func GenerateListObjectsResponse(bucketName string, request ListObjectsRequest, result meta.ListObjectsResult) ListObjectsResponse {
	resp := ListObjectsResponse{
		BucketName:     bucketName,
		Prefix:         request.Prefix,
		Marker:         request.Marker,
		NextMarker:     result.NextMarker,
		MaxKeys:        request.MaxKeys,
		Delimiter:      request.Delimiter,
		IsTruncated:    result.IsTruncated,
		Contents:       objectsFromMeta(result.Objects),
		CommonPrefixes: commonPrefixesFrom(result.CommonPrefixes),
		EncodingType:   request.EncodingType,
	}
	resp.KeyCount = len(resp.Contents)
	if request.EncodingType != "" {
		resp.Delimiter = url.QueryEscape(resp.Delimiter)
		resp.Prefix = url.QueryEscape(resp.Prefix)
		resp.Marker = url.QueryEscape(resp.Marker)
	}
	return resp
}

// GenerateListObjectsV2Response builds the v2 response for bucketName.
func GenerateListObjectsV2Response(bucketName string, request ListObjectsRequest, result meta.ListObjectsResult) ListObjectsV2Response {
	resp := ListObjectsV2Response{
		BucketName:            bucketName,
		Prefix:                request.Prefix,
		StartAfter:            request.StartAfter,
		ContinuationToken:     request.ContinuationToken,
		NextContinuationToken: result.NextMarker,
		MaxKeys:               request.MaxKeys,
		Delimiter:             request.Delimiter,
		IsTruncated:           result.IsTruncated,
		Contents:              objectsFromMeta(result.Objects),
		CommonPrefixes:        commonPrefixesFrom(result.CommonPrefixes),
		EncodingType:          request.EncodingType,
	}
	resp.KeyCount = len(resp.Contents)
	return resp
}

// CopyObjectResponse is the body of a PUT Object Copy request.
type CopyObjectResponse struct {
	XMLName      xml.Name `xml:"CopyObjectResult"`
	ETag         string   `xml:"ETag"`
	LastModified string   `xml:"LastModified"`
}

// GenerateCopyObjectResponse builds a CopyObjectResponse.
func GenerateCopyObjectResponse(etag string, lastModified time.Time) CopyObjectResponse {
	return CopyObjectResponse{ETag: "\"" + etag + "\"", LastModified: lastModified.UTC().Format(TimeFormatAMZ)}
}

// PostObjectResponse is the optional 201 body of a POST Object upload
// when success_action_status=201 is present in the policy form fields.
type PostObjectResponse struct {
	XMLName  xml.Name `xml:"PostResponse"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

// GeneratePostObjectResponse builds a PostObjectResponse.
func GeneratePostObjectResponse(bucket, key, etag, location string) PostObjectResponse {
	return PostObjectResponse{Location: location, Bucket: bucket, Key: key, ETag: "\"" + etag + "\""}
}

// CopyObjectPartResponse is the body of an UploadPartCopy request.
type CopyObjectPartResponse struct {
	XMLName      xml.Name `xml:"CopyPartResult"`
	LastModified string   `xml:"LastModified"`
	ETag         string   `xml:"ETag"`
}

// GenerateCopyObjectPartResponse builds a CopyObjectPartResponse.
func GenerateCopyObjectPartResponse(etag string, lastModified time.Time) CopyObjectPartResponse {
	return CopyObjectPartResponse{LastModified: lastModified.UTC().Format(TimeFormatAMZ), ETag: "\"" + etag + "\""}
}

// InitiateMultipartUploadResponse is the body of POST ?uploads.
type InitiateMultipartUploadResponse struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

// GenerateInitiateMultipartUploadResponse builds an
// InitiateMultipartUploadResponse.
func GenerateInitiateMultipartUploadResponse(bucket, key, uploadID string) InitiateMultipartUploadResponse {
	return InitiateMultipartUploadResponse{Bucket: bucket, Key: key, UploadID: uploadID}
}

// CompleteMultipartUploadResponse is the body of POST ?uploadId=.
type CompleteMultipartUploadResponse struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

// GenerateCompleteMultipartUploadResponse builds a
// CompleteMultipartUploadResponse.
func GenerateCompleteMultipartUploadResponse(bucket, key, location, etag string) CompleteMultipartUploadResponse {
	return CompleteMultipartUploadResponse{Location: location, Bucket: bucket, Key: key, ETag: "\"" + etag + "\""}
}

// ListPartsResponse is the body of GET ?uploadId= (ListParts).
type ListPartsResponse struct {
	XMLName              xml.Name `xml:"ListPartsResult"`
	Bucket               string   `xml:"Bucket"`
	Key                  string   `xml:"Key"`
	UploadID             string   `xml:"UploadId"`
	Initiator            Owner    `xml:"Initiator"`
	Owner                Owner    `xml:"Owner"`
	PartNumberMarker     int      `xml:"PartNumberMarker"`
	NextPartNumberMarker int      `xml:"NextPartNumberMarker,omitempty"`
	MaxParts             int      `xml:"MaxParts"`
	IsTruncated          bool     `xml:"IsTruncated"`
	Parts                []Part   `xml:"Part"`
}

// Part is one entry of a ListPartsResponse.
type Part struct {
	PartNumber   int    `xml:"PartNumber"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
}

// GenerateListPartsResponse builds a ListPartsResponse from a
// meta.MultipartUpload.
func GenerateListPartsResponse(upload meta.MultipartUpload) ListPartsResponse {
	resp := ListPartsResponse{
		Bucket:   upload.Bucket,
		Key:      upload.Key,
		UploadID: upload.UploadID,
		Initiator: Owner{ID: upload.Initiator, DisplayName: upload.Initiator},
		Owner:    Owner{ID: upload.Owner, DisplayName: upload.Owner},
		MaxParts: 1000,
	}
	numbers := make([]int, 0, len(upload.Parts))
	for n := range upload.Parts {
		numbers = append(numbers, n)
	}
	for i := 1; i < len(numbers); i++ {
		for j := i; j > 0 && numbers[j-1] > numbers[j]; j-- {
			numbers[j-1], numbers[j] = numbers[j], numbers[j-1]
		}
	}
	for _, n := range numbers {
		p := upload.Parts[n]
		resp.Parts = append(resp.Parts, Part{
			PartNumber:   p.Number,
			LastModified: p.LastModified.UTC().Format(TimeFormatAMZ),
			ETag:         "\"" + p.ETag + "\"",
			Size:         p.Size,
		})
	}
	return resp
}

// MultipartUploadEntry is one entry of a ListMultipartUploadsResponse.
type MultipartUploadEntry struct {
	Key          string `xml:"Key"`
	UploadID     string `xml:"UploadId"`
	Initiator    Owner  `xml:"Initiator"`
	Owner        Owner  `xml:"Owner"`
	StorageClass string `xml:"StorageClass"`
	Initiated    string `xml:"Initiated"`
}

// ListMultipartUploadsResponse is the body of GET ?uploadId on a bucket.
type ListMultipartUploadsResponse struct {
	XMLName            xml.Name               `xml:"ListMultipartUploadsResult"`
	Bucket             string                 `xml:"Bucket"`
	KeyMarker          string                 `xml:"KeyMarker"`
	UploadIDMarker     string                 `xml:"UploadIdMarker"`
	NextKeyMarker      string                 `xml:"NextKeyMarker,omitempty"`
	NextUploadIDMarker string                 `xml:"NextUploadIdMarker,omitempty"`
	Delimiter          string                 `xml:"Delimiter,omitempty"`
	Prefix             string                 `xml:"Prefix"`
	MaxUploads         int                    `xml:"MaxUploads"`
	IsTruncated        bool                   `xml:"IsTruncated"`
	Uploads            []MultipartUploadEntry `xml:"Upload"`
	CommonPrefixes     []CommonPrefix         `xml:"CommonPrefixes,omitempty"`
}

// GenerateListMultipartUploadsResponse builds a
// ListMultipartUploadsResponse.
func GenerateListMultipartUploadsResponse(bucket string, result meta.ListMultipartUploadsResult) ListMultipartUploadsResponse {
	resp := ListMultipartUploadsResponse{
		Bucket:             bucket,
		NextKeyMarker:      result.NextKeyMarker,
		NextUploadIDMarker: result.NextUploadIDMarker,
		IsTruncated:        result.IsTruncated,
		CommonPrefixes:     commonPrefixesFrom(result.CommonPrefixes),
	}
	for _, u := range result.Uploads {
		resp.Uploads = append(resp.Uploads, MultipartUploadEntry{
			Key:          u.Key,
			UploadID:     u.UploadID,
			Initiator:    Owner{ID: u.Initiator, DisplayName: u.Initiator},
			Owner:        Owner{ID: u.Owner, DisplayName: u.Owner},
			StorageClass: "STANDARD",
			Initiated:    u.InitialTime.UTC().Format(TimeFormatAMZ),
		})
	}
	return resp
}

// ObjectIdentifier names one object in a multi-object delete request.
type ObjectIdentifier struct {
	Key       string `xml:"Key"`
	VersionID string `xml:"VersionId,omitempty"`
}

// DeleteObjectsRequest is the body of POST ?delete.
type DeleteObjectsRequest struct {
	XMLName xml.Name            `xml:"Delete"`
	Quiet   bool                `xml:"Quiet"`
	Objects []ObjectIdentifier  `xml:"Object"`
}

// DeleteError reports one failed deletion within a multi-object delete.
type DeleteError struct {
	Key     string `xml:"Key"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

// DeleteObjectsResponse is the body of a multi-object delete response.
type DeleteObjectsResponse struct {
	XMLName        xml.Name           `xml:"http://s3.amazonaws.com/doc/2006-03-01/ DeleteResult"`
	DeletedObjects []ObjectIdentifier `xml:"Deleted,omitempty"`
	Errors         []DeleteError      `xml:"Error,omitempty"`
}

// GenerateMultiDeleteResponse builds a DeleteObjectsResponse, omitting the
// Deleted list entirely when the request asked for quiet mode.
func GenerateMultiDeleteResponse(quiet bool, deleted []ObjectIdentifier, errs []DeleteError) DeleteObjectsResponse {
	resp := DeleteObjectsResponse{Errors: errs}
	if !quiet {
		resp.DeletedObjects = deleted
	}
	return resp
}

// Grant is one ACL grant entry in an AccessControlPolicy document.
type Grant struct {
	Grantee    Grantee `xml:"Grantee"`
	Permission string  `xml:"Permission"`
}

// Grantee identifies either a CanonicalUser or a Group URI grantee.
type Grantee struct {
	XMLNS       string `xml:"xmlns:xsi,attr"`
	Type        string `xml:"xsi:type,attr"`
	ID          string `xml:"ID,omitempty"`
	DisplayName string `xml:"DisplayName,omitempty"`
	URI         string `xml:"URI,omitempty"`
}

// AccessControlPolicy is the body of GET/PUT ?acl.
type AccessControlPolicy struct {
	XMLName           xml.Name `xml:"http://s3.amazonaws.com/doc/2006-03-01/ AccessControlPolicy"`
	Owner             Owner    `xml:"Owner"`
	AccessControlList struct {
		Grants []Grant `xml:"Grant"`
	} `xml:"AccessControlList"`
}

// GenerateAccessControlPolicy builds an AccessControlPolicy from a
// meta.ACLPolicy.
func GenerateAccessControlPolicy(policy meta.ACLPolicy) AccessControlPolicy {
	resp := AccessControlPolicy{Owner: Owner{ID: policy.OwnerID, DisplayName: policy.OwnerDisplay}}
	for _, g := range policy.Grants {
		grantee := Grantee{XMLNS: "http://www.w3.org/2001/XMLSchema-instance"}
		if g.GranteeURI != "" {
			grantee.Type = "Group"
			grantee.URI = g.GranteeURI
		} else {
			grantee.Type = "CanonicalUser"
			grantee.ID = g.Grantee
		}
		resp.AccessControlList.Grants = append(resp.AccessControlList.Grants, Grant{Grantee: grantee, Permission: g.Permission})
	}
	return resp
}

// CORSRule is one rule of a PUT/GET ?cors document.
type CORSRule struct {
	AllowedOrigins []string `xml:"AllowedOrigin"`
	AllowedMethods []string `xml:"AllowedMethod"`
	AllowedHeaders []string `xml:"AllowedHeader,omitempty"`
	ExposeHeaders  []string `xml:"ExposeHeader,omitempty"`
	MaxAgeSeconds  int      `xml:"MaxAgeSeconds,omitempty"`
}

// CORSConfiguration is the body of GET/PUT ?cors.
type CORSConfiguration struct {
	XMLName xml.Name   `xml:"CORSConfiguration"`
	Rules   []CORSRule `xml:"CORSRule"`
}

// ToMeta converts the wire CORSConfiguration into internal/meta's form.
func (c CORSConfiguration) ToMeta() meta.CORSConfiguration {
	out := meta.CORSConfiguration{}
	for _, r := range c.Rules {
		out.Rules = append(out.Rules, meta.CORSRule{
			AllowedOrigins: r.AllowedOrigins,
			AllowedMethods: r.AllowedMethods,
			AllowedHeaders: r.AllowedHeaders,
			ExposeHeaders:  r.ExposeHeaders,
			MaxAgeSeconds:  r.MaxAgeSeconds,
		})
	}
	return out
}

// FromMeta builds a wire CORSConfiguration from internal/meta's form.
func FromMeta(c meta.CORSConfiguration) CORSConfiguration {
	out := CORSConfiguration{}
	for _, r := range c.Rules {
		out.Rules = append(out.Rules, CORSRule{
			AllowedOrigins: r.AllowedOrigins,
			AllowedMethods: r.AllowedMethods,
			AllowedHeaders: r.AllowedHeaders,
			ExposeHeaders:  r.ExposeHeaders,
			MaxAgeSeconds:  r.MaxAgeSeconds,
		})
	}
	return out
}

// BucketLoggingStatus is the body of GET ?logging. Bucket logging has no
// backing store in meta.Backend, so this is always the empty element —
// the same response Ceph's RGWGetBucketLogging sends since it never
// persisted a logging target either.
type BucketLoggingStatus struct {
	XMLName xml.Name `xml:"http://doc.s3.amazonaws.com/doc/2006-03-01/ BucketLoggingStatus"`
}

// VersioningConfiguration is the body of GET/PUT ?versioning. Status is
// omitted entirely for a bucket that has never had versioning set.
type VersioningConfiguration struct {
	XMLName xml.Name `xml:"VersioningConfiguration"`
	Status  string   `xml:"Status,omitempty"`
}

// GenerateVersioningConfiguration builds the GET ?versioning body from the
// bucket's stored state ("", "Enabled", or "Suspended").
func GenerateVersioningConfiguration(state string) VersioningConfiguration {
	return VersioningConfiguration{Status: state}
}
