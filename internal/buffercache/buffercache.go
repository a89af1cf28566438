// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package buffercache implements a fixed-size write-back cache of disk
// sectors, with clock-algorithm eviction and an asynchronous read-ahead
// worker for sequential access patterns.
package buffercache

import (
	"context"
	"sync"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/pintosfs/filesys/cfg"
	"github.com/pintosfs/filesys/common"
	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/logger"
	"github.com/pintosfs/filesys/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// lockContentionThreshold is how long a tableMu acquisition must block
// before it is considered contended, when cfg.DebugConfig.LogLockContention
// is set.
const lockContentionThreshold = 10 * time.Millisecond

// doorbell is a binary counting semaphore built on golang.org/x/sync's
// semaphore.Weighted, standing in for the struct semaphore the original
// kernel's read-ahead queue used to wake its worker thread: ring mirrors
// sema_up, wait mirrors sema_down. Weighted's Release panics if called
// without a matching Acquire, so the semaphore starts fully "held" (as if
// initialized to value 0) and pending coalesces repeat rings the same way a
// single-slot channel send would.
type doorbell struct {
	sem     *semaphore.Weighted
	mu      sync.Mutex
	pending bool
}

func newDoorbell() *doorbell {
	sem := semaphore.NewWeighted(1)
	sem.Acquire(context.Background(), 1)
	return &doorbell{sem: sem}
}

func (d *doorbell) ring() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pending {
		d.pending = true
		d.sem.Release(1)
	}
}

func (d *doorbell) wait(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	d.mu.Lock()
	d.pending = false
	d.mu.Unlock()
	return nil
}

// frame is one slot of the cache. Its data, dirty, and accessed fields are
// guarded by mu; Cache.tableMu must be held only while scanning/mutating the
// sector->frame association (frame.sector, frame.valid) or the clock hand.
type frame struct {
	mu sync.Mutex

	sector blockdevice.SectorID
	valid  bool
	dirty  bool
	accessed bool

	data [common.SectorSize]byte
}

// Cache is a fixed-size write-back buffer cache sitting in front of a
// blockdevice.BlockDevice.
type Cache struct {
	dev    blockdevice.BlockDevice
	frames []*frame

	// tableMu guards clockHand and every frame's sector/valid pair. It is an
	// InvariantMutex rather than a plain sync.Mutex so that checkInvariants
	// runs after every section that touches the sector->frame association,
	// the same way the teacher's FileInode.Mu catches a corrupted mapping
	// as soon as it happens instead of at the next unrelated failure.
	tableMu   syncutil.InvariantMutex
	clockHand int

	debug cfg.DebugConfig

	readAheadQueue readAheadQueue
	readAheadBell  *doorbell
	cancelWorker   context.CancelFunc
	workerDone     chan struct{}
}

// New creates a Cache of numFrames frames over dev. If readAhead is true, a
// background worker prefetches the sector following every sector read
// through Read. debug controls whether a violated structural invariant
// exits the process (as opposed to only being logged) and whether
// contended tableMu acquisitions are logged.
func New(dev blockdevice.BlockDevice, numFrames int, readAhead bool, debug cfg.DebugConfig) *Cache {
	if numFrames <= 0 || numFrames > common.CacheFrameCount {
		panic("buffercache: numFrames out of range")
	}

	c := &Cache{
		dev:    dev,
		frames: make([]*frame, numFrames),
		debug:  debug,
	}
	for i := range c.frames {
		c.frames[i] = &frame{}
	}
	c.tableMu = syncutil.NewInvariantMutex(c.checkInvariants)

	if readAhead {
		c.readAheadQueue = newReadAheadQueue()
		c.readAheadBell = newDoorbell()
		ctx, cancel := context.WithCancel(context.Background())
		c.cancelWorker = cancel
		c.workerDone = make(chan struct{})
		go c.readAheadWorker(ctx)
	}
	return c
}

func (c *Cache) checkInvariants() {
	seen := make(map[blockdevice.SectorID]int)
	for i, f := range c.frames {
		if f.valid {
			if _, ok := seen[f.sector]; ok {
				c.reportInvariantViolation("sector cached in two frames simultaneously")
				continue
			}
			seen[f.sector] = i
		}
	}
}

func (c *Cache) reportInvariantViolation(msg string) {
	if c.debug.ExitOnInvariantViolation {
		panic("buffercache: " + msg)
	}
	logger.Errorf("buffercache: invariant violated: %s", msg)
}

// lockTable acquires tableMu, optionally logging how long the acquisition
// took when cfg.DebugConfig.LogLockContention is set.
func (c *Cache) lockTable() {
	if !c.debug.LogLockContention {
		c.tableMu.Lock()
		return
	}
	start := time.Now()
	c.tableMu.Lock()
	if waited := time.Since(start); waited > lockContentionThreshold {
		logger.Warnf("buffercache: tableMu contended for %s", waited)
	}
}

func (c *Cache) unlockTable() {
	c.tableMu.Unlock()
}

// Read copies the full sector's contents into dst, which must be exactly
// common.SectorSize bytes.
func (c *Cache) Read(sector blockdevice.SectorID, dst []byte) {
	if len(dst) != common.SectorSize {
		panic("buffercache: dst is not one sector long")
	}

	f := c.acquireFrame(sector)
	copy(dst, f.data[:])
	f.accessed = true
	f.mu.Unlock()

	c.enqueueReadAhead(sector)
}

// Write copies src into the cached copy of sector and marks it dirty. The
// write is not persisted until a later eviction or FlushAll.
func (c *Cache) Write(sector blockdevice.SectorID, src []byte) {
	if len(src) != common.SectorSize {
		panic("buffercache: src is not one sector long")
	}

	f := c.acquireFrame(sector)
	copy(f.data[:], src)
	f.accessed = true
	f.dirty = true
	f.mu.Unlock()
}

// acquireFrame returns the frame holding sector, locked, loading it from
// disk first if it is not already cached.
func (c *Cache) acquireFrame(sector blockdevice.SectorID) *frame {
	if f := c.lookup(sector); f != nil {
		metrics.CacheHits.Inc()
		return f
	}

	metrics.CacheMisses.Inc()
	f := c.selectVictim()
	f.sector = sector
	f.valid = true
	f.dirty = false
	f.accessed = false
	c.unlockTable()

	if err := c.dev.ReadSector(sector, f.data[:]); err != nil {
		f.mu.Unlock()
		panic(err)
	}
	return f
}

// lookup scans the frame table for sector. On a hit it returns the frame
// locked; the table lock is never held on return.
func (c *Cache) lookup(sector blockdevice.SectorID) *frame {
	c.lockTable()
	for _, f := range c.frames {
		if f.valid && f.sector == sector {
			f.mu.Lock()
			c.unlockTable()
			return f
		}
	}
	c.unlockTable()
	return nil
}

// selectVictim runs the clock sweep, repeating full passes over the frames
// until one qualifies, and returns that frame locked, with
// tableMu still held (the caller releases it once it has repointed the
// frame at the new sector, to keep the sector->frame map consistent for
// concurrent lookups). Any dirty victim is flushed before being reused.
func (c *Cache) selectVictim() *frame {
	c.lockTable()

	for {
		for range c.frames {
			idx := c.clockHand
			c.clockHand = (c.clockHand + 1) % len(c.frames)
			f := c.frames[idx]

			f.mu.Lock()
			if !f.valid || !f.accessed {
				if f.valid && f.dirty {
					metrics.CacheEvictions.Inc()
				}
				c.flushFrameLocked(f)
				return f
			}
			f.accessed = false
			f.mu.Unlock()
		}
	}
}

// flushFrameLocked writes f back to disk if dirty. f.mu must be held.
func (c *Cache) flushFrameLocked(f *frame) {
	if f.valid && f.dirty {
		if err := c.dev.WriteSector(f.sector, f.data[:]); err != nil {
			panic(err)
		}
		f.dirty = false
	}
}

// FlushAll writes every dirty frame back to disk without evicting it.
func (c *Cache) FlushAll() {
	for _, f := range c.frames {
		f.mu.Lock()
		c.flushFrameLocked(f)
		f.mu.Unlock()
	}
}

// Close flushes the cache and stops the read-ahead worker, if running.
func (c *Cache) Close() {
	c.FlushAll()
	if c.cancelWorker != nil {
		c.cancelWorker()
		<-c.workerDone
	}
}

func (c *Cache) enqueueReadAhead(sector blockdevice.SectorID) {
	if c.readAheadQueue == nil {
		return
	}
	next := sector + 1
	if next >= c.dev.NumSectors() {
		return
	}
	c.readAheadQueue.push(next)
	c.readAheadBell.ring()
}

func (c *Cache) readAheadWorker(ctx context.Context) {
	defer close(c.workerDone)
	for {
		if err := c.readAheadBell.wait(ctx); err != nil {
			return
		}

		for {
			sector, ok := c.readAheadQueue.pop()
			if !ok {
				break
			}
			if c.lookupNoLoad(sector) {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Warnf("buffercache: read-ahead of sector %d failed: %v", sector, r)
					}
				}()
				f := c.acquireFrame(sector)
				f.mu.Unlock()
			}()
		}
	}
}

func (c *Cache) lookupNoLoad(sector blockdevice.SectorID) bool {
	c.lockTable()
	defer c.unlockTable()
	for _, f := range c.frames {
		if f.valid && f.sector == sector {
			return true
		}
	}
	return false
}
