// Package hbase implements meta.Backend as a thin adapter over an HBase
// cluster, reached through github.com/tsuna/gohbase — an already-complete
// client for HBase's RPC wire protocol. This package reimplements none of
// that protocol; it only encodes our own row-key and column-family layout
// on top of it, grounded directly in the teacher's meta/bucket.go,
// meta/object.go, meta/multipart.go and storage/bucket.go.
package hbase

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tsuna/gohbase"
	"github.com/tsuna/gohbase/hrpc"

	"github.com/cloudgate/s3gw/internal/apierrors"
	"github.com/cloudgate/s3gw/internal/meta"
)

// Table and column-family names, kept identical to the teacher's
// meta.BUCKET_TABLE/BUCKET_COLUMN_FAMILY etc. constants.
const (
	bucketTable    = "buckets"
	bucketCF       = "b"
	objectTable    = "objects"
	objectCF       = "o"
	objectDataCF   = "d" // object byte payload, not present in the teacher
	                     // (which stores payload on Ceph) — stored as an
	                     // HBase cell here because the spec treats payload
	                     // storage as backend-opaque and this keeps the
	                     // adapter self-contained without inventing a
	                     // second storage protocol.
	multipartTable = "multiparts"
	multipartCF    = "m"
	multipartDataCF = "d"
	attrTable      = "attrs"
	attrCF         = "a"
	gcTable        = "garbageCollection"
	gcCF           = "gc"
	usageTable     = "usage"
	usageCF        = "u"

	createTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Backend adapts meta.Backend onto an HBase client.
type Backend struct {
	client  gohbase.Client
	timeout time.Duration
}

// New connects to the HBase cluster whose ZooKeeper quorum is at
// zkAddress, mirroring meta.New(logger) in the teacher.
func New(zkAddress string, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Backend{client: gohbase.NewClient(zkAddress), timeout: timeout}
}

func (b *Backend) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, b.timeout)
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return apierrors.New(apierrors.ErrInternalError, err.Error())
}

// --- row key helpers, grounded in meta.Object.GetRowkey / meta.Multipart.GetRowkey ---

// objectRowkey: BucketName + bigEndian(uint16(count("/", key))) + key + ":"
func objectRowkey(bucket, key string) string {
	var rk bytes.Buffer
	rk.WriteString(bucket)
	binary.Write(&rk, binary.BigEndian, uint16(strings.Count(key, "/")))
	rk.WriteString(key + ":")
	return rk.String()
}

// multipartRowkey: BucketName + bigEndian(uint16(count("/", key))) + key + uploadID
func multipartRowkey(bucket, key, uploadID string) string {
	var rk bytes.Buffer
	rk.WriteString(bucket)
	binary.Write(&rk, binary.BigEndian, uint16(strings.Count(key, "/")))
	rk.WriteString(key)
	rk.WriteString(uploadID)
	return rk.String()
}

// --- bucket primitives ---

func (b *Backend) CreateBucket(parent context.Context, bucket meta.Bucket) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()

	values := map[string]map[string][]byte{
		bucketCF: {
			"UID":        []byte(bucket.OwnerID),
			"ACL":        []byte(bucket.ACL.CannedACL),
			"createTime": []byte(bucket.CreationTime.UTC().Format(createTimeLayout)),
			"versioning": []byte(bucket.Versioning),
		},
	}
	put, err := hrpc.NewPutStr(ctx, bucketTable, bucket.Name, values)
	if err != nil {
		return wrapErr(err)
	}
	// CheckAndPut against an empty UID cell gives us the same
	// create-if-absent semantics the teacher relies on in storage/bucket.go.
	processed, err := b.client.CheckAndPut(put, bucketCF, "UID", []byte{})
	if err != nil {
		return wrapErr(err)
	}
	if !processed {
		return apierrors.New(apierrors.ErrBucketAlreadyExists, "bucket "+bucket.Name+" already exists")
	}
	return nil
}

func (b *Backend) GetBucket(parent context.Context, name string) (meta.Bucket, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	get, err := hrpc.NewGetStr(ctx, bucketTable, name)
	if err != nil {
		return meta.Bucket{}, wrapErr(err)
	}
	resp, err := b.client.Get(get)
	if err != nil {
		return meta.Bucket{}, wrapErr(err)
	}
	if len(resp.Cells) == 0 {
		return meta.Bucket{}, apierrors.New(apierrors.ErrNoSuchBucket, "bucket "+name+" does not exist")
	}
	bucket := meta.Bucket{Name: name}
	for _, cell := range resp.Cells {
		switch string(cell.Qualifier) {
		case "UID":
			bucket.OwnerID = string(cell.Value)
		case "ACL":
			bucket.ACL.CannedACL = string(cell.Value)
		case "createTime":
			bucket.CreationTime, _ = time.Parse(createTimeLayout, string(cell.Value))
		case "versioning":
			bucket.Versioning = string(cell.Value)
		case "CORS":
			json.Unmarshal(cell.Value, &bucket.CORS)
		}
	}
	return bucket, nil
}

func (b *Backend) DeleteBucket(parent context.Context, name string) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	del, err := hrpc.NewDelStr(ctx, bucketTable, name, map[string]map[string][]byte{bucketCF: {}})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Delete(del)
	return wrapErr(err)
}

func (b *Backend) ListBucketsByOwner(parent context.Context, ownerID string) ([]meta.Bucket, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	scan, err := hrpc.NewScanStr(ctx, bucketTable)
	if err != nil {
		return nil, wrapErr(err)
	}
	rows, err := b.client.Scan(scan)
	if err != nil {
		return nil, wrapErr(err)
	}
	var out []meta.Bucket
	for _, row := range rows {
		bucket := meta.Bucket{}
		for _, cell := range row.Cells {
			bucket.Name = string(cell.Row)
			switch string(cell.Qualifier) {
			case "UID":
				bucket.OwnerID = string(cell.Value)
			case "createTime":
				bucket.CreationTime, _ = time.Parse(createTimeLayout, string(cell.Value))
			}
		}
		if bucket.OwnerID == ownerID {
			out = append(out, bucket)
		}
	}
	return out, nil
}

func (b *Backend) SetBucketACL(parent context.Context, name string, acl meta.ACLPolicy) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, bucketTable, name, map[string]map[string][]byte{
		bucketCF: {"ACL": []byte(acl.CannedACL)},
	})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) SetBucketCORS(parent context.Context, name string, cors meta.CORSConfiguration) error {
	marshaled, err := json.Marshal(cors)
	if err != nil {
		return wrapErr(err)
	}
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, bucketTable, name, map[string]map[string][]byte{
		bucketCF: {"CORS": marshaled},
	})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) SetBucketVersioning(parent context.Context, name string, state string) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, bucketTable, name, map[string]map[string][]byte{
		bucketCF: {"versioning": []byte(state)},
	})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

// --- object primitives ---

func (b *Backend) PutObject(parent context.Context, o meta.Object, data io.Reader) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return wrapErr(err)
	}
	var size bytes.Buffer
	binary.Write(&size, binary.BigEndian, int64(len(buf)))

	values := map[string]map[string][]byte{
		objectCF: {
			"bucket":       []byte(o.Bucket),
			"size":         size.Bytes(),
			"lastModified": []byte(o.MTime.UTC().Format(createTimeLayout)),
			"etag":         []byte(o.ETag),
			"content-type": []byte(o.ContentType),
			"ACL":          []byte(o.ACL.CannedACL),
		},
		objectDataCF: {"payload": buf},
	}
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, objectTable, objectRowkey(o.Bucket, o.Key), values)
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) objectFromCells(cells []*hrpc.Cell, bucket, key string) meta.Object {
	o := meta.Object{Bucket: bucket, Key: key, Attrs: map[string][]byte{}}
	for _, cell := range cells {
		if string(cell.Family) != objectCF {
			continue
		}
		switch string(cell.Qualifier) {
		case "size":
			var size int64
			binary.Read(bytes.NewReader(cell.Value), binary.BigEndian, &size)
			o.Size = size
		case "lastModified":
			o.MTime, _ = time.Parse(createTimeLayout, string(cell.Value))
		case "etag":
			o.ETag = string(cell.Value)
		case "content-type":
			o.ContentType = string(cell.Value)
		case "ACL":
			o.ACL.CannedACL = string(cell.Value)
		}
	}
	return o
}

func (b *Backend) GetObject(parent context.Context, bucket, key string) (meta.Object, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	get, err := hrpc.NewGetStr(ctx, objectTable, objectRowkey(bucket, key))
	if err != nil {
		return meta.Object{}, wrapErr(err)
	}
	resp, err := b.client.Get(get)
	if err != nil {
		return meta.Object{}, wrapErr(err)
	}
	if len(resp.Cells) == 0 {
		return meta.Object{}, apierrors.New(apierrors.ErrNoSuchKey, "key "+key+" does not exist")
	}
	return b.objectFromCells(resp.Cells, bucket, key), nil
}

func (b *Backend) GetObjectData(parent context.Context, bucket, key string, offset, length int64, w io.Writer) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	get, err := hrpc.NewGetStr(ctx, objectTable, objectRowkey(bucket, key),
		hrpc.Families(map[string][]string{objectDataCF: {"payload"}}))
	if err != nil {
		return wrapErr(err)
	}
	resp, err := b.client.Get(get)
	if err != nil {
		return wrapErr(err)
	}
	if len(resp.Cells) == 0 {
		return apierrors.New(apierrors.ErrNoSuchKey, "key "+key+" does not exist")
	}
	payload := resp.Cells[0].Value
	if offset < 0 || offset > int64(len(payload)) {
		return apierrors.New(apierrors.ErrInvalidRange, "invalid range offset")
	}
	end := int64(len(payload))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	_, err = w.Write(payload[offset:end])
	return err
}

func (b *Backend) DeleteObject(parent context.Context, bucket, key string) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	del, err := hrpc.NewDelStr(ctx, objectTable, objectRowkey(bucket, key), map[string]map[string][]byte{
		objectCF: {}, objectDataCF: {},
	})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Delete(del)
	return wrapErr(err)
}

func (b *Backend) SetObjectACL(parent context.Context, bucket, key string, acl meta.ACLPolicy) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, objectTable, objectRowkey(bucket, key), map[string]map[string][]byte{
		objectCF: {"ACL": []byte(acl.CannedACL)},
	})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) ListObjects(parent context.Context, bucket, prefix, marker, delimiter string, maxKeys int) (meta.ListObjectsResult, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	start := bucket
	if prefix != "" {
		start = objectRowkey(bucket, prefix)
	}
	stop := start
	// scan up through the next possible bucket row, same trick as the
	// teacher's getObjectRowkeyPrefix callers (increment last byte).
	stopBytes := []byte(stop)
	if len(stopBytes) > 0 {
		stopBytes[len(stopBytes)-1]++
	}
	scan, err := hrpc.NewScanRangeStr(ctx, objectTable, start, string(stopBytes))
	if err != nil {
		return meta.ListObjectsResult{}, wrapErr(err)
	}
	rows, err := b.client.Scan(scan)
	if err != nil {
		return meta.ListObjectsResult{}, wrapErr(err)
	}

	var result meta.ListObjectsResult
	prefixSet := map[string]struct{}{}
	for _, row := range rows {
		if len(row.Cells) == 0 {
			continue
		}
		rowkey := string(row.Cells[0].Row)
		key := decodeObjectKey(bucket, rowkey)
		if marker != "" && key <= marker {
			continue
		}
		if delimiter != "" {
			rest := strings.TrimPrefix(key, prefix)
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				prefixSet[cp] = struct{}{}
				continue
			}
		}
		if len(result.Objects)+len(prefixSet) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = key
			break
		}
		result.Objects = append(result.Objects, b.objectFromCells(row.Cells, bucket, key))
	}
	for p := range prefixSet {
		result.CommonPrefixes = append(result.CommonPrefixes, p)
	}
	return result, nil
}

// decodeObjectKey reverses objectRowkey's "bucket + uint16 + key + :"
// encoding, mirroring the teacher's ObjectFromResponse rowkey slicing.
func decodeObjectKey(bucket, rowkey string) string {
	if len(rowkey) < len(bucket)+2+1 {
		return ""
	}
	return rowkey[len(bucket)+2 : len(rowkey)-1]
}

// --- multipart primitives ---

func (b *Backend) InitMultipart(parent context.Context, m meta.MultipartUpload) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return wrapErr(err)
	}
	values := map[string]map[string][]byte{
		multipartCF: {"0": metaJSON, "initiator": []byte(m.Initiator), "owner": []byte(m.Owner),
			"initialTime": []byte(m.InitialTime.UTC().Format(createTimeLayout))},
	}
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, multipartTable, multipartRowkey(m.Bucket, m.Key, m.UploadID), values)
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) GetMultipart(parent context.Context, bucket, key, uploadID string) (meta.MultipartUpload, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	get, err := hrpc.NewGetStr(ctx, multipartTable, multipartRowkey(bucket, key, uploadID))
	if err != nil {
		return meta.MultipartUpload{}, wrapErr(err)
	}
	resp, err := b.client.Get(get)
	if err != nil {
		return meta.MultipartUpload{}, wrapErr(err)
	}
	if len(resp.Cells) == 0 {
		return meta.MultipartUpload{}, apierrors.New(apierrors.ErrNoSuchUpload, "no such upload "+uploadID)
	}
	m := meta.MultipartUpload{Bucket: bucket, Key: key, UploadID: uploadID, Parts: map[int]meta.Part{}}
	for _, cell := range resp.Cells {
		switch string(cell.Family) {
		case multipartCF:
			switch string(cell.Qualifier) {
			case "0":
				json.Unmarshal(cell.Value, &m.Metadata)
			case "initiator":
				m.Initiator = string(cell.Value)
			case "owner":
				m.Owner = string(cell.Value)
			case "initialTime":
				m.InitialTime, _ = time.Parse(createTimeLayout, string(cell.Value))
			default:
				if n, convErr := strconv.Atoi(string(cell.Qualifier)); convErr == nil {
					var p meta.Part
					json.Unmarshal(cell.Value, &p)
					m.Parts[n] = p
				}
			}
		}
	}
	return m, nil
}

func (b *Backend) PutObjectPart(parent context.Context, bucket, key, uploadID string, p meta.Part, data io.Reader) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return wrapErr(err)
	}
	partJSON, err := json.Marshal(p)
	if err != nil {
		return wrapErr(err)
	}
	values := map[string]map[string][]byte{
		multipartCF:     {strconv.Itoa(p.Number): partJSON},
		multipartDataCF: {strconv.Itoa(p.Number): buf},
	}
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, multipartTable, multipartRowkey(bucket, key, uploadID), values)
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) CompleteMultipart(parent context.Context, bucket, key, uploadID string, o meta.Object) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()

	get, err := hrpc.NewGetStr(ctx, multipartTable, multipartRowkey(bucket, key, uploadID),
		hrpc.Families(map[string][]string{}))
	if err != nil {
		return wrapErr(err)
	}
	resp, err := b.client.Get(get)
	if err != nil {
		return wrapErr(err)
	}
	if len(resp.Cells) == 0 {
		return apierrors.New(apierrors.ErrNoSuchUpload, "no such upload "+uploadID)
	}

	parts := map[int][]byte{}
	for _, cell := range resp.Cells {
		if string(cell.Family) != multipartDataCF {
			continue
		}
		n, convErr := strconv.Atoi(string(cell.Qualifier))
		if convErr != nil {
			continue
		}
		parts[n] = cell.Value
	}
	var numbers []int
	for n := range parts {
		numbers = append(numbers, n)
	}
	sortInts(numbers)
	var full bytes.Buffer
	for _, n := range numbers {
		full.Write(parts[n])
	}

	if err := b.PutObject(parent, o, bytes.NewReader(full.Bytes())); err != nil {
		return err
	}

	del, err := hrpc.NewDelStr(ctx, multipartTable, multipartRowkey(bucket, key, uploadID),
		map[string]map[string][]byte{multipartCF: {}, multipartDataCF: {}})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Delete(del)
	return wrapErr(err)
}

func (b *Backend) AbortMultipart(parent context.Context, bucket, key, uploadID string) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	del, err := hrpc.NewDelStr(ctx, multipartTable, multipartRowkey(bucket, key, uploadID),
		map[string]map[string][]byte{multipartCF: {}, multipartDataCF: {}})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Delete(del)
	return wrapErr(err)
}

func (b *Backend) ListMultipartUploads(parent context.Context, bucket, prefix, keyMarker, uploadIDMarker, delimiter string, maxUploads int) (meta.ListMultipartUploadsResult, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	scan, err := hrpc.NewScanRangeStr(ctx, multipartTable, bucket, string(append([]byte(bucket), 0xFF)))
	if err != nil {
		return meta.ListMultipartUploadsResult{}, wrapErr(err)
	}
	rows, err := b.client.Scan(scan)
	if err != nil {
		return meta.ListMultipartUploadsResult{}, wrapErr(err)
	}
	var result meta.ListMultipartUploadsResult
	for _, row := range rows {
		if len(result.Uploads) >= maxUploads {
			result.IsTruncated = true
			break
		}
		m := meta.MultipartUpload{Bucket: bucket, Parts: map[int]meta.Part{}}
		for _, cell := range row.Cells {
			if string(cell.Family) == multipartCF && string(cell.Qualifier) == "initiator" {
				m.Initiator = string(cell.Value)
			}
		}
		if prefix != "" && !strings.HasPrefix(m.Key, prefix) {
			continue
		}
		result.Uploads = append(result.Uploads, m)
	}
	return result, nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// --- attr primitive ---

func (b *Backend) GetAttr(parent context.Context, bucket, key, name string) ([]byte, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	get, err := hrpc.NewGetStr(ctx, attrTable, bucket+"/"+key,
		hrpc.Families(map[string][]string{attrCF: {name}}))
	if err != nil {
		return nil, wrapErr(err)
	}
	resp, err := b.client.Get(get)
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(resp.Cells) == 0 {
		return nil, apierrors.New(apierrors.ErrNoSuchKey, "attr "+name+" not set")
	}
	return resp.Cells[0].Value, nil
}

func (b *Backend) SetAttr(parent context.Context, bucket, key, name string, value []byte) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, attrTable, bucket+"/"+key, map[string]map[string][]byte{
		attrCF: {name: value},
	})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) DeleteAttr(parent context.Context, bucket, key, name string) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	del, err := hrpc.NewDelStr(ctx, attrTable, bucket+"/"+key, map[string]map[string][]byte{
		attrCF: {name: nil},
	})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Delete(del)
	return wrapErr(err)
}

// --- gc primitives, grounded in tools/delete.go's ScanGarbageCollection/RemoveGarbageCollection ---

func (b *Backend) PushGC(parent context.Context, g meta.GarbageCollection) error {
	rowkey := g.Bucket + "/" + g.Object + "/" + strconv.FormatInt(g.Time.UnixNano(), 10)
	partsJSON, err := json.Marshal(g.Parts)
	if err != nil {
		return wrapErr(err)
	}
	values := map[string]map[string][]byte{
		gcCF: {
			"tag":      []byte(g.Tag),
			"bucket":   []byte(g.Bucket),
			"object":   []byte(g.Object),
			"location": []byte(g.Location),
			"pool":     []byte(g.Pool),
			"objectId": []byte(g.ObjectID),
			"parts":    partsJSON,
		},
	}
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, gcTable, rowkey, values)
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func (b *Backend) ScanGC(parent context.Context, limit int, startRowkey string) ([]meta.GarbageCollection, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	scan, err := hrpc.NewScanRangeStr(ctx, gcTable, startRowkey, "", hrpc.NumberOfRows(uint32(limit)))
	if err != nil {
		return nil, wrapErr(err)
	}
	rows, err := b.client.Scan(scan)
	if err != nil {
		return nil, wrapErr(err)
	}
	var out []meta.GarbageCollection
	for _, row := range rows {
		if len(row.Cells) == 0 {
			continue
		}
		g := meta.GarbageCollection{Rowkey: string(row.Cells[0].Row)}
		for _, cell := range row.Cells {
			switch string(cell.Qualifier) {
			case "tag":
				g.Tag = string(cell.Value)
			case "bucket":
				g.Bucket = string(cell.Value)
			case "object":
				g.Object = string(cell.Value)
			case "location":
				g.Location = string(cell.Value)
			case "pool":
				g.Pool = string(cell.Value)
			case "objectId":
				g.ObjectID = string(cell.Value)
			case "parts":
				json.Unmarshal(cell.Value, &g.Parts)
			}
		}
		out = append(out, g)
	}
	return out, nil
}

func (b *Backend) RemoveGC(parent context.Context, g meta.GarbageCollection) error {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	del, err := hrpc.NewDelStr(ctx, gcTable, g.Rowkey, map[string]map[string][]byte{gcCF: {}})
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Delete(del)
	return wrapErr(err)
}

func (b *Backend) RemoveObjectData(_ context.Context, location, pool, objectID string) error {
	// The actual freeing of cluster storage is the out-of-scope backend
	// storage protocol (spec.md §1 Non-goals); here the object payload
	// already lives in this same HBase table and is removed by
	// DeleteObject/CompleteMultipart, so this is a no-op hook kept for
	// interface symmetry with the memory backend and for callers (the GC
	// sweeper) that expect to call it unconditionally.
	return nil
}

// --- usage primitives ---

func (b *Backend) RecordUsage(parent context.Context, r meta.UsageRecord) error {
	rowkey := r.UserID + "/" + strconv.FormatInt(r.EpochBucket, 10) + "/" + string(r.Category)
	values := map[string]map[string][]byte{
		usageCF: {
			"bytesSent":     int64Bytes(r.BytesSent),
			"bytesReceived": int64Bytes(r.BytesReceived),
			"ops":           int64Bytes(r.Ops),
			"successfulOps": int64Bytes(r.SuccessfulOps),
		},
	}
	ctx, cancel := b.ctx(parent)
	defer cancel()
	put, err := hrpc.NewPutStr(ctx, usageTable, rowkey, values)
	if err != nil {
		return wrapErr(err)
	}
	_, err = b.client.Put(put)
	return wrapErr(err)
}

func int64Bytes(v int64) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, v)
	return buf.Bytes()
}

func (b *Backend) QueryUsage(parent context.Context, userID string, startEpoch, endEpoch int64) ([]meta.UsageRecord, error) {
	ctx, cancel := b.ctx(parent)
	defer cancel()
	scan, err := hrpc.NewScanRangeStr(ctx, usageTable, userID+"/", userID+"0")
	if err != nil {
		return nil, wrapErr(err)
	}
	rows, err := b.client.Scan(scan)
	if err != nil {
		return nil, wrapErr(err)
	}
	var out []meta.UsageRecord
	for _, row := range rows {
		if len(row.Cells) == 0 {
			continue
		}
		rowkey := string(row.Cells[0].Row)
		segs := strings.SplitN(strings.TrimPrefix(rowkey, userID+"/"), "/", 2)
		if len(segs) != 2 {
			continue
		}
		epoch, convErr := strconv.ParseInt(segs[0], 10, 64)
		if convErr != nil || epoch < startEpoch || epoch > endEpoch {
			continue
		}
		r := meta.UsageRecord{UserID: userID, EpochBucket: epoch, Category: meta.UsageCategory(segs[1])}
		for _, cell := range row.Cells {
			var v int64
			binary.Read(bytes.NewReader(cell.Value), binary.BigEndian, &v)
			switch string(cell.Qualifier) {
			case "bytesSent":
				r.BytesSent = v
			case "bytesReceived":
				r.BytesReceived = v
			case "ops":
				r.Ops = v
			case "successfulOps":
				r.SuccessfulOps = v
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (b *Backend) TrimUsage(parent context.Context, userID string, startEpoch, endEpoch int64) error {
	records, err := b.QueryUsage(parent, userID, startEpoch, endEpoch)
	if err != nil {
		return err
	}
	ctx, cancel := b.ctx(parent)
	defer cancel()
	for _, r := range records {
		rowkey := userID + "/" + strconv.FormatInt(r.EpochBucket, 10) + "/" + string(r.Category)
		del, err := hrpc.NewDelStr(ctx, usageTable, rowkey, map[string]map[string][]byte{usageCF: {}})
		if err != nil {
			return wrapErr(err)
		}
		if _, err := b.client.Delete(del); err != nil {
			return wrapErr(err)
		}
	}
	return nil
}

// --- bucket-index primitives ---

func (b *Backend) CheckBucketIndex(parent context.Context, bucket string, fix bool) ([]meta.CategoryStats, []meta.CategoryStats, error) {
	stats, err := b.BucketStats(parent, bucket)
	if err != nil {
		return nil, nil, err
	}
	// Rebuilding the index (fix=true) is an operation on the out-of-scope
	// bucket-index engine (spec.md §1 Non-goals); only its contract is
	// specified, so existing and calculated are reported equal here.
	return stats, stats, nil
}

func (b *Backend) BucketStats(parent context.Context, bucket string) ([]meta.CategoryStats, error) {
	result, err := b.ListObjects(parent, bucket, "", "", "", math.MaxInt32)
	if err != nil {
		return nil, err
	}
	var totalSize int64
	for _, o := range result.Objects {
		totalSize += o.Size
	}
	return []meta.CategoryStats{{
		Category:     "rgw.main",
		NumKB:        totalSize / 1024,
		NumKBRounded: (totalSize + 1023) / 1024,
		NumObjects:   int64(len(result.Objects)),
	}}, nil
}
