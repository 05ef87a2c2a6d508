package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is one LRU node, keyed within its table's keyspace.
type entry struct {
	table Table
	key   string
	value interface{}
}

// MetaCache is the 3-layer cache spec.md's DESIGN NOTES describe:
// in-process LRU first, Redis second, the caller's slow lookup last.
// Grounded in the teacher's storage/cache.go MetaCache.
type MetaCache struct {
	mu         sync.RWMutex
	maxEntries int
	lruList    *list.List
	byTable    map[Table]map[string]*list.Element

	redis                       *Redis
	failedInvalidation          chan entry
}

// NewMetaCache builds a MetaCache bounded to maxEntries total LRU
// entries, backed by redisClient (nil disables the Redis layer entirely
// and the cache degrades to process-local LRU only).
func NewMetaCache(maxEntries int, redisClient *Redis) *MetaCache {
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	m := &MetaCache{
		maxEntries:         maxEntries,
		lruList:            list.New(),
		byTable:            make(map[Table]map[string]*list.Element),
		redis:              redisClient,
		failedInvalidation: make(chan entry, 64),
	}
	for _, t := range metadataTables {
		m.byTable[t] = make(map[string]*list.Element)
	}
	if redisClient != nil {
		go m.subscribeInvalidations()
		go m.retryFailedInvalidations()
	}
	return m
}

func (m *MetaCache) subscribeInvalidations() {
	sub, err := m.redis.subscriber()
	if err != nil {
		return
	}
	sub.PSubscribe(invalidQueuePrefix + "*")
	for {
		response := sub.Receive()
		if response.Err != nil {
			if response.Timeout() {
				continue
			}
			continue
		}
		table, err := tableFromChannelName(response.Channel)
		if err != nil {
			continue
		}
		m.removeLocal(table, response.Message)
	}
}

func (m *MetaCache) retryFailedInvalidations() {
	for failed := range m.failedInvalidation {
		if err := m.redis.Invalidate(failed.table, failed.key); err != nil {
			m.failedInvalidation <- failed
			time.Sleep(time.Second)
		}
	}
}

func (m *MetaCache) invalidateRedis(table Table, key string) {
	if m.redis == nil {
		return
	}
	if err := m.redis.Invalidate(table, key); err != nil {
		select {
		case m.failedInvalidation <- entry{table: table, key: key}:
		default:
		}
	}
}

// Set populates table/key with value in the local LRU and pushes an
// invalidation to any peer gateway instances.
func (m *MetaCache) Set(table Table, key string, value interface{}) {
	m.mu.Lock()
	if element, ok := m.byTable[table][key]; ok {
		m.lruList.MoveToFront(element)
		element.Value.(*entry).value = value
		m.mu.Unlock()
		return
	}
	element := m.lruList.PushFront(&entry{table: table, key: key, value: value})
	m.byTable[table][key] = element
	overflowing := m.lruList.Len() > m.maxEntries
	m.mu.Unlock()

	if overflowing {
		m.removeOldest()
	}
	m.invalidateRedis(table, key)
}

// Get returns the cached value for table/key, consulting Redis and
// finally onMiss (the Backend lookup) if neither cache layer has it.
// A value produced by onMiss is written back through both layers.
func (m *MetaCache) Get(table Table, key string, onMiss func() (interface{}, error)) (interface{}, error) {
	m.mu.RLock()
	if element, hit := m.byTable[table][key]; hit {
		m.lruList.MoveToFront(element)
		value := element.Value.(*entry).value
		m.mu.RUnlock()
		return value, nil
	}
	m.mu.RUnlock()

	if m.redis != nil {
		var value interface{}
		if hit, err := m.redis.Get(table, key, &value); err == nil && hit {
			return value, nil
		}
	}

	if onMiss == nil {
		return nil, nil
	}
	value, err := onMiss()
	if err != nil {
		return nil, err
	}
	if m.redis != nil {
		m.redis.Set(table, key, value)
	}
	m.Set(table, key, value)
	return value, nil
}

func (m *MetaCache) removeLocal(table Table, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if element, hit := m.byTable[table][key]; hit {
		m.lruList.Remove(element)
		delete(m.byTable[table], key)
	}
}

// Remove evicts table/key locally and notifies peer instances to do the
// same.
func (m *MetaCache) Remove(table Table, key string) {
	m.removeLocal(table, key)
	m.invalidateRedis(table, key)
}

func (m *MetaCache) removeOldest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldest := m.lruList.Back()
	if oldest == nil {
		return
	}
	m.lruList.Remove(oldest)
	evicted := oldest.Value.(*entry)
	delete(m.byTable[evicted.table], evicted.key)
	// The Redis copy is still valid; only the local slot was evicted for
	// space, so it is not invalidated here.
}
