package iam

import (
	"crypto/rand"
)

const (
	s3AccessKeyLength = 20
	s3SecretKeyLength = 40
	keyAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// randomString returns n random printable characters drawn from
// keyAlphabet, matching the roughly-20/40-char S3 key shapes spec.md §3
// describes ("access keys may be generated randomly if unspecified").
func randomString(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(out)
}

// GenerateAccessKeyID returns a random ~20-character S3 access key id.
func GenerateAccessKeyID() string { return randomString(s3AccessKeyLength) }

// GenerateSecretKey returns a random ~40-character secret.
func GenerateSecretKey() string { return randomString(s3SecretKeyLength) }
