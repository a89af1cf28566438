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

// Package freemap implements the persisted free-sector bitmap allocator.
// One bit per device sector; a set bit means the sector is in use. The
// bitmap itself occupies a reserved, fixed run of sectors starting at
// common.FreeMapSector so that it can be brought up before the inode layer
// exists to hold it as a regular file (see DESIGN.md for why this differs
// from a file-backed free map).
package freemap

import (
	"fmt"
	"sync"

	"github.com/pintosfs/filesys/common"
	"github.com/pintosfs/filesys/internal/buffercache"
	"github.com/pintosfs/filesys/internal/metrics"
)

// FreeMap is the first-fit sector allocator backing inode growth and file
// creation.
type FreeMap struct {
	mu sync.Mutex

	cache      *buffercache.Cache
	numSectors int
	bits       []byte // one bit per sector, LSB-first within each byte

	// sectorCount is how many sectors the bitmap itself occupies on disk.
	sectorCount int
}

// SectorCount returns how many sectors a bitmap for a device of the given
// size occupies, so callers can compute where data sectors begin.
func SectorCount(numSectors int) int {
	bytesNeeded := (numSectors + 7) / 8
	return int(common.CeilDiv(int64(bytesNeeded), common.SectorSize))
}

// Create formats a brand new free map for a device of numSectors sectors,
// marking the bitmap's own reserved sector run as in-use, and writes it to
// disk. The root directory sector is allocated by the caller afterward, via
// the ordinary Allocate path, since it's always the first data sector this
// leaves free.
func Create(cache *buffercache.Cache, numSectors int) *FreeMap {
	fm := &FreeMap{
		cache:       cache,
		numSectors:  numSectors,
		bits:        make([]byte, (numSectors+7)/8),
		sectorCount: SectorCount(numSectors),
	}
	for s := 0; s < fm.sectorCount; s++ {
		fm.markLocked(s)
	}
	fm.flushLocked()
	return fm
}

// Open reads an existing free map of numSectors sectors back from disk.
func Open(cache *buffercache.Cache, numSectors int) *FreeMap {
	fm := &FreeMap{
		cache:       cache,
		numSectors:  numSectors,
		bits:        make([]byte, (numSectors+7)/8),
		sectorCount: SectorCount(numSectors),
	}

	buf := make([]byte, common.SectorSize)
	for s := 0; s < fm.sectorCount; s++ {
		cache.Read(common.FreeMapSector+uint32(s), buf)
		lo := s * common.SectorSize
		hi := lo + common.SectorSize
		if hi > len(fm.bits) {
			hi = len(fm.bits)
		}
		if lo < len(fm.bits) {
			copy(fm.bits[lo:hi], buf[:hi-lo])
		}
	}
	metrics.FreeSectors.Set(float64(fm.countFreeLocked()))
	return fm
}

// Close flushes the bitmap to disk. The free map holds no other resources.
func (fm *FreeMap) Close() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.flushLocked()
}

func (fm *FreeMap) bitSet(i int) bool {
	return fm.bits[i/8]&(1<<uint(i%8)) != 0
}

func (fm *FreeMap) markLocked(i int) {
	fm.bits[i/8] |= 1 << uint(i%8)
}

func (fm *FreeMap) clearLocked(i int) {
	fm.bits[i/8] &^= 1 << uint(i%8)
}

func (fm *FreeMap) countFreeLocked() int {
	free := 0
	for i := 0; i < fm.numSectors; i++ {
		if !fm.bitSet(i) {
			free++
		}
	}
	return free
}

func (fm *FreeMap) flushLocked() {
	buf := make([]byte, common.SectorSize)
	for s := 0; s < fm.sectorCount; s++ {
		lo := s * common.SectorSize
		hi := lo + common.SectorSize
		for i := range buf {
			buf[i] = 0
		}
		if lo < len(fm.bits) {
			end := hi
			if end > len(fm.bits) {
				end = len(fm.bits)
			}
			copy(buf[:end-lo], fm.bits[lo:end])
		}
		fm.cache.Write(common.FreeMapSector+uint32(s), buf)
	}
	fm.cache.FlushAll()
	metrics.FreeSectors.Set(float64(fm.countFreeLocked()))
}

// Allocate first-fit searches for cnt consecutive free sectors, marks them
// in-use, and flushes the bitmap before returning. It returns the first
// sector of the run and false if no run of that length is free.
func (fm *FreeMap) Allocate(cnt int) (first uint32, ok bool) {
	if cnt <= 0 {
		panic("freemap: cnt must be positive")
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	run := 0
	for i := 0; i < fm.numSectors; i++ {
		if !fm.bitSet(i) {
			run++
			if run == cnt {
				start := i - cnt + 1
				for j := start; j <= i; j++ {
					fm.markLocked(j)
				}
				fm.flushLocked()
				metrics.SectorAllocations.Inc()
				return uint32(start), true
			}
		} else {
			run = 0
		}
	}
	metrics.SectorAllocationFailures.Inc()
	return 0, false
}

// Release marks cnt sectors starting at first as free again and flushes the
// bitmap. It panics if any sector in the range is already free, mirroring
// the original allocator's ASSERT(bitmap_all(...)).
func (fm *FreeMap) Release(first uint32, cnt int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for j := int(first); j < int(first)+cnt; j++ {
		if !fm.bitSet(j) {
			panic(fmt.Sprintf("freemap: release of already-free sector %d", j))
		}
	}
	for j := int(first); j < int(first)+cnt; j++ {
		fm.clearLocked(j)
	}
	fm.flushLocked()
}

// DataSectorsStart returns the first sector available for directories and
// file data, i.e. the sector immediately after the reserved bitmap run.
func (fm *FreeMap) DataSectorsStart() uint32 {
	return uint32(fm.sectorCount)
}

// IsAllocated reports whether sector is currently marked in-use. Used by
// fsck to cross-check the bitmap against what the directory tree actually
// references.
func (fm *FreeMap) IsAllocated(sector uint32) bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.bitSet(int(sector))
}

// NumSectors returns the device size this free map was created or opened
// for.
func (fm *FreeMap) NumSectors() int {
	return fm.numSectors
}
