// Package cache implements the 3-layer metadata cache spec.md's DESIGN
// NOTES call for ahead of a slow metadata backend: in-process LRU, then
// Redis, then the Backend itself. Grounded in the teacher's
// storage/cache.go MetaCache, built on github.com/mediocregopher/radix.v2
// the way the teacher does (pool.Pool for commands, pubsub.SubClient for
// cross-instance invalidation).
package cache

import (
	"encoding/json"
	"errors"

	"github.com/mediocregopher/radix.v2/pool"
	"github.com/mediocregopher/radix.v2/pubsub"
	"github.com/mediocregopher/radix.v2/redis"
)

// Table names one of the metadata record kinds the cache tracks distinct
// keyspaces for, mirroring the teacher's redis.RedisDatabase enum.
type Table int

const (
	TableBucket Table = iota
	TableUserBuckets
	TableObject
	TableIAM
)

var metadataTables = []Table{TableBucket, TableUserBuckets, TableObject, TableIAM}

const invalidQueuePrefix = "s3gw-invalid-"

func channelName(t Table) string {
	switch t {
	case TableBucket:
		return invalidQueuePrefix + "bucket"
	case TableUserBuckets:
		return invalidQueuePrefix + "userbuckets"
	case TableObject:
		return invalidQueuePrefix + "object"
	case TableIAM:
		return invalidQueuePrefix + "iam"
	default:
		return invalidQueuePrefix + "unknown"
	}
}

func tableFromChannelName(channel string) (Table, error) {
	for _, t := range metadataTables {
		if channelName(t) == channel {
			return t, nil
		}
	}
	return 0, errors.New("unrecognized invalidation channel: " + channel)
}

// redisKeyspace namespaces a cache key by table so different record kinds
// sharing a literal key string (e.g. a bucket name also used as a user id)
// never collide.
func redisKeyspace(t Table, key string) string {
	return channelName(t) + ":" + key
}

// Redis is a thin wrapper over a radix.v2 connection pool providing the
// get/set/invalidate primitives MetaCache needs.
type Redis struct {
	pool *pool.Pool
}

// DialRedis opens a pooled connection to addr (host:port), sized poolSize.
func DialRedis(addr string, poolSize int) (*Redis, error) {
	if poolSize <= 0 {
		poolSize = 10
	}
	p, err := pool.New("tcp", addr, poolSize)
	if err != nil {
		return nil, err
	}
	return &Redis{pool: p}, nil
}

func (r *Redis) Get(table Table, key string, out interface{}) (bool, error) {
	conn, err := r.pool.Get()
	if err != nil {
		return false, err
	}
	defer r.pool.Put(conn)

	reply := conn.Cmd("GET", redisKeyspace(table, key))
	if reply.Err != nil {
		return false, reply.Err
	}
	raw, err := reply.Bytes()
	if err != nil {
		// redis.ErrRespNil is how radix.v2 signals a cache miss.
		if err == redis.ErrRespNil {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

func (r *Redis) Set(table Table, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	conn, err := r.pool.Get()
	if err != nil {
		return err
	}
	defer r.pool.Put(conn)
	return conn.Cmd("SET", redisKeyspace(table, key), raw).Err
}

func (r *Redis) Invalidate(table Table, key string) error {
	conn, err := r.pool.Get()
	if err != nil {
		return err
	}
	defer r.pool.Put(conn)
	if err := conn.Cmd("DEL", redisKeyspace(table, key)).Err; err != nil {
		return err
	}
	return conn.Cmd("PUBLISH", channelName(table), key).Err
}

// subscriber is the long-lived pubsub connection used to learn about
// invalidations published by other gateway instances.
func (r *Redis) subscriber() (*pubsub.SubClient, error) {
	conn, err := r.pool.Get()
	if err != nil {
		return nil, err
	}
	return pubsub.NewSubClient(conn), nil
}
