package storage

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"
	"testing"
)

func TestETagReaderSumMatchesMD5(t *testing.T) {
	payload := "the quick brown fox jumps over the lazy dog"
	r := newETagReader(strings.NewReader(payload))

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("read back %q, want %q", data, payload)
	}

	want := md5.Sum([]byte(payload))
	if got := r.Sum(); got != hex.EncodeToString(want[:]) {
		t.Errorf("Sum() = %q, want %q", got, hex.EncodeToString(want[:]))
	}
	if r.Size() != int64(len(payload)) {
		t.Errorf("Size() = %d, want %d", r.Size(), len(payload))
	}
}

func TestETagReaderEmptyPayload(t *testing.T) {
	r := newETagReader(strings.NewReader(""))
	if _, err := io.ReadAll(r); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := md5.Sum(nil)
	if got := r.Sum(); got != hex.EncodeToString(want[:]) {
		t.Errorf("Sum() of empty payload = %q, want %q", got, hex.EncodeToString(want[:]))
	}
	if r.Size() != 0 {
		t.Errorf("Size() = %d, want 0", r.Size())
	}
}
