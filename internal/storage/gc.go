package storage

import (
	"context"
	"sync"
	"time"

	"github.com/cloudgate/s3gw/internal/meta"
)

// gcScanLimit, gcQueueLowWater and gcQueueCapacity mirror the teacher's
// tools/delete.go SCAN_HBASE_LIMIT/WATER_LOW/TASKQ_MAX_LENGTH constants.
const (
	gcScanLimit     = 50
	gcQueueLowWater = 120
	gcQueueCapacity = 200
)

// PushDelete appends a GC-log record so a Sweeper frees the given backend
// storage out of band. No Gateway operation calls it: DeleteObject and a
// purging DeleteBucket delete through Backend.DeleteObject directly.
func (g *Gateway) PushDelete(ctx context.Context, bucket, key, location, pool, objectID string, parts []meta.Part) error {
	return g.Backend.PushGC(ctx, meta.GarbageCollection{
		Time:     time.Now(),
		Bucket:   bucket,
		Object:   key,
		Location: location,
		Pool:     pool,
		ObjectID: objectID,
		Parts:    parts,
	})
}

// Sweeper drains the garbage-collection log and frees each entry's
// backend storage with a bounded worker pool, grounded in the teacher's
// tools/delete.go taskQ/deleteFromCeph/removeDeleted trio. cmd/s3gwgc
// constructs one per backend.
type Sweeper struct {
	Backend    meta.Backend
	NumWorkers int
}

// Run starts s.NumWorkers delete workers plus the scan loop that feeds
// them, blocking until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	numWorkers := s.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	taskQ := make(chan meta.GarbageCollection, gcQueueCapacity)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		go s.worker(ctx, taskQ, &wg)
	}
	s.scanLoop(ctx, taskQ, &wg)
}

func (s *Sweeper) worker(ctx context.Context, taskQ <-chan meta.GarbageCollection, wg *sync.WaitGroup) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-taskQ:
			wg.Add(1)
			s.sweepOne(ctx, entry)
			wg.Done()
		}
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, entry meta.GarbageCollection) {
	// The record is kept (and picked up again by a later scan) unless
	// every referenced object id was freed.
	if len(entry.Parts) == 0 {
		if err := s.Backend.RemoveObjectData(ctx, entry.Location, entry.Pool, entry.ObjectID); err != nil {
			return
		}
	} else {
		for _, p := range entry.Parts {
			if err := s.Backend.RemoveObjectData(ctx, entry.Location, entry.Pool, p.ETag); err != nil {
				return
			}
		}
	}
	s.Backend.RemoveGC(ctx, entry)
}

func (s *Sweeper) scanLoop(ctx context.Context, taskQ chan meta.GarbageCollection, wg *sync.WaitGroup) {
	startRowKey := ""
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}
		if len(taskQ) >= gcQueueLowWater {
			time.Sleep(time.Millisecond)
			continue
		}
		entries, err := s.Backend.ScanGC(ctx, gcScanLimit, startRowKey)
		if err != nil {
			time.Sleep(time.Second)
			continue
		}
		if len(entries) == 0 {
			time.Sleep(10 * time.Second)
			startRowKey = ""
			continue
		}
		startRowKey = entries[len(entries)-1].Rowkey
		for _, entry := range entries {
			select {
			case taskQ <- entry:
			case <-ctx.Done():
				wg.Wait()
				return
			}
		}
	}
}
