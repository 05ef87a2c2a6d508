// Package helper carries process-wide ambient concerns: configuration,
// logging, and small utilities shared across the gateway. It mirrors the
// teacher's helper package (config.go) so the rest of the tree can keep
// calling helper.CONFIG / helper.Logger the way the original gateway does.
package helper

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
)

// Config is the process-wide configuration, loaded once at startup from a
// JSON file. Fields are read-only after SetupConfig returns.
type Config struct {
	// S3Domain is the virtual-host suffix used to split "bucket.S3Domain"
	// hostnames into a bucket name during request routing.
	S3Domain string
	Region   string

	BindAPIAddress   string
	BindAdminAddress string

	SSLKeyPath  string
	SSLCertPath string

	// MetaBackend selects the Backend implementation: "memory" or "hbase".
	MetaBackend      string
	ZookeeperAddress string

	RedisAddress           string
	RedisConnectionNumber  int
	InMemoryCacheMaxEntries int

	GCThreads      int
	GCScanLimit    int
	GCQueueDepth   int

	LogPath  string
	LogLevel int // 5 and above enables Debugln; ErrorIf and Logln always log

	// MaxBucketsPerUser is not read when users are created: iam.NewUser
	// gives a user created without an explicit limit max_buckets 100.
	MaxBucketsPerUser int
}

// CONFIG is the process-wide configuration singleton.
var CONFIG = Config{
	Region:                  "default",
	BindAPIAddress:          "0.0.0.0:8080",
	BindAdminAddress:        "0.0.0.0:8081",
	MetaBackend:             "memory",
	RedisConnectionNumber:   10,
	InMemoryCacheMaxEntries: 10000,
	GCThreads:               1,
	GCScanLimit:             50,
	GCQueueDepth:            200,
	LogLevel:                1,
	MaxBucketsPerUser:       100,
}

// SetupConfig loads CONFIG from the JSON file at path. It panics on failure,
// matching the teacher's fail-fast startup behavior — a gateway with no
// usable configuration has nothing safe to fall back to.
func SetupConfig(path string) {
	f, err := os.Open(path)
	if err != nil {
		panic("cannot open config file " + path + ": " + err.Error())
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&CONFIG); err != nil {
		panic("failed to parse config file " + path + ": " + err.Error())
	}
}

// Logger is the process-wide logger, set up by SetupLogging.
var Logger *logrus.Logger
