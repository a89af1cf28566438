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

// Package blockdevice implements the fixed-sector-size storage medium the
// buffer cache, free-map, and inode layers all sit on top of. It is the
// lowest layer of the stack and performs no caching of its own: every
// ReadSector/WriteSector call is a synchronous I/O against the backing file.
package blockdevice

import (
	"fmt"
	"os"
	"sync"

	"github.com/pintosfs/filesys/common"
	"github.com/prometheus/client_golang/prometheus"
)

// SectorID identifies a fixed-size sector on a BlockDevice.
type SectorID uint32

// SectorNone is the sentinel used in on-disk pointer slots that do not
// reference a sector.
const SectorNone SectorID = 0xFFFFFFFF

// BlockDevice is a randomly addressable array of fixed-size sectors. A
// failed read or write is treated as an unrecoverable device failure by
// every caller in this module, matching the original kernel's block_read/
// block_write, which panic the kernel on I/O error.
type BlockDevice interface {
	// NumSectors returns the number of addressable sectors.
	NumSectors() SectorID

	// ReadSector reads exactly common.SectorSize bytes into dst.
	ReadSector(sector SectorID, dst []byte) error

	// WriteSector writes exactly common.SectorSize bytes from src.
	WriteSector(sector SectorID, src []byte) error
}

var (
	registerMetricsOnce sync.Once

	sectorReads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filesys",
		Subsystem: "blockdevice",
		Name:      "sector_reads_total",
		Help:      "Number of sectors read from the backing block device.",
	})
	sectorWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filesys",
		Subsystem: "blockdevice",
		Name:      "sector_writes_total",
		Help:      "Number of sectors written to the backing block device.",
	})
)

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(sectorReads)
		prometheus.MustRegister(sectorWrites)
	})
}

// fileBlockDevice backs a BlockDevice with a single disk-image file. Sector i
// lives at byte offset i*common.SectorSize.
type fileBlockDevice struct {
	mu      sync.Mutex
	file    *os.File
	sectors SectorID
}

// OpenFile opens (or creates, if it does not exist) path as a block device of
// the given sector count. If the file already exists and is smaller than
// sectors*common.SectorSize, it is extended with zero sectors; an existing
// larger file is used as-is with its current size, not truncated.
func OpenFile(path string, sectors SectorID) (BlockDevice, error) {
	registerMetrics()

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open block device %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		common.CloseFile(f)
		return nil, fmt.Errorf("stat block device %q: %w", path, err)
	}

	wantSize := int64(sectors) * common.SectorSize
	if info.Size() < wantSize {
		if err := f.Truncate(wantSize); err != nil {
			common.CloseFile(f)
			return nil, fmt.Errorf("extend block device %q: %w", path, err)
		}
	} else {
		sectors = SectorID(info.Size() / common.SectorSize)
	}

	return &fileBlockDevice{file: f, sectors: sectors}, nil
}

func (d *fileBlockDevice) NumSectors() SectorID {
	return d.sectors
}

func (d *fileBlockDevice) ReadSector(sector SectorID, dst []byte) error {
	if len(dst) != common.SectorSize {
		panic("blockdevice: destination buffer is not one sector long")
	}
	if sector >= d.sectors {
		panic(fmt.Sprintf("blockdevice: sector %d out of range (%d sectors)", sector, d.sectors))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.ReadAt(dst, int64(sector)*common.SectorSize)
	if err != nil || n != common.SectorSize {
		panic(fmt.Sprintf("blockdevice: read sector %d failed: %v", sector, err))
	}
	sectorReads.Inc()
	return nil
}

func (d *fileBlockDevice) WriteSector(sector SectorID, src []byte) error {
	if len(src) != common.SectorSize {
		panic("blockdevice: source buffer is not one sector long")
	}
	if sector >= d.sectors {
		panic(fmt.Sprintf("blockdevice: sector %d out of range (%d sectors)", sector, d.sectors))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.WriteAt(src, int64(sector)*common.SectorSize)
	if err != nil || n != common.SectorSize {
		panic(fmt.Sprintf("blockdevice: write sector %d failed: %v", sector, err))
	}
	sectorWrites.Inc()
	return nil
}

// Close releases the underlying file handle.
func Close(d BlockDevice) error {
	if fd, ok := d.(*fileBlockDevice); ok {
		return fd.file.Close()
	}
	return nil
}

// NewMemory returns an in-memory BlockDevice, used by tests that want to
// exercise the cache/inode/free-map layers without touching disk.
func NewMemory(sectors SectorID) BlockDevice {
	registerMetrics()
	return &memoryBlockDevice{
		sectors: sectors,
		data:    make([]byte, int64(sectors)*common.SectorSize),
	}
}

type memoryBlockDevice struct {
	mu      sync.Mutex
	sectors SectorID
	data    []byte
}

func (d *memoryBlockDevice) NumSectors() SectorID {
	return d.sectors
}

func (d *memoryBlockDevice) ReadSector(sector SectorID, dst []byte) error {
	if len(dst) != common.SectorSize {
		panic("blockdevice: destination buffer is not one sector long")
	}
	if sector >= d.sectors {
		panic(fmt.Sprintf("blockdevice: sector %d out of range (%d sectors)", sector, d.sectors))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(dst, d.data[int64(sector)*common.SectorSize:])
	sectorReads.Inc()
	return nil
}

func (d *memoryBlockDevice) WriteSector(sector SectorID, src []byte) error {
	if len(src) != common.SectorSize {
		panic("blockdevice: source buffer is not one sector long")
	}
	if sector >= d.sectors {
		panic(fmt.Sprintf("blockdevice: sector %d out of range (%d sectors)", sector, d.sectors))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.data[int64(sector)*common.SectorSize:], src)
	sectorWrites.Inc()
	return nil
}
