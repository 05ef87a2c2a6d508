package helper

import (
	"crypto/rand"
	"encoding/hex"
)

// Filter returns the elements of in for which keep returns true, preserving
// order. Used the same way the teacher uses helper.Filter to drop a bucket
// name out of a user's bucket list.
func Filter(in []string, keep func(string) bool) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Keys returns the keys of a string-keyed set map, unordered.
func Keys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Ternary mimics the teacher's helper.Ternary(cond, a, b) used to avoid
// verbose if/else when decoding boolean-as-string backend fields.
func Ternary(cond bool, a, b interface{}) interface{} {
	if cond {
		return a
	}
	return b
}

// CopiedBytes returns an independent copy of b, so callers can mutate the
// result (e.g. incrementing a prefix-scan stop key) without aliasing the
// backend's buffer.
func CopiedBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// GenerateRandomID returns a random hex request id, used for per-request
// log correlation the way the teacher's api.logHandler does.
func GenerateRandomID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
