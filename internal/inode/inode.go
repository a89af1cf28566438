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

package inode

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pintosfs/filesys/common"
	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/buffercache"
	"github.com/pintosfs/filesys/internal/freemap"
)

// Inode is the in-memory, reference-counted handle shared by every caller
// that has the same on-disk inode open. A single sector is only ever
// represented by one *Inode at a time; repeated Open calls for the same
// sector return the same instance with its open count incremented.
type Inode struct {
	sector uint32

	// extendLock serializes reads, writes, and growth against this
	// inode so that two concurrent writers past end-of-file never
	// allocate sectors for the same new offset twice.
	extendLock sync.Mutex

	mu             sync.Mutex
	openCount      int
	removed        bool
	denyWriteCount int
}

// Manager owns the registry of open inodes and the buffer cache / free map
// they are built on.
type Manager struct {
	cache   *buffercache.Cache
	freemap *freemap.FreeMap

	mu       sync.Mutex
	registry map[uint32]*Inode
}

// NewManager constructs a Manager over an already-initialized cache and
// free map.
func NewManager(cache *buffercache.Cache, fm *freemap.FreeMap) *Manager {
	return &Manager{
		cache:    cache,
		freemap:  fm,
		registry: make(map[uint32]*Inode),
	}
}

// Create formats a new inode of the given length (all zero bytes) and
// directory flag at sector, allocating whatever direct/indirect/
// double-indirect structure its length requires.
func (m *Manager) Create(sector uint32, length int64, isDir bool) error {
	if length < 0 {
		panic("inode: length must be non-negative")
	}

	disk := newOnDisk(length, isDir)
	sectors := bytesToSectors(length)

	for i := int64(0); i < sectors; i++ {
		if err := m.growOneSector(disk, i); err != nil {
			return err
		}
	}

	m.cache.Write(sector, disk.encode())
	return nil
}

// zeroSector is reused as the source for clearing newly allocated sectors.
var zeroSector [common.SectorSize]byte

// growOneSector allocates and zero-fills the data sector for index i within
// disk's data-sector array, wiring up an indirect or double-indirect index
// sector first if this is the first pointer it needs.
func (m *Manager) growOneSector(disk *onDisk, index int64) error {
	switch classify(index) {
	case kindDirect:
		sector, ok := m.freemap.Allocate(1)
		if !ok {
			return fmt.Errorf("inode: free map exhausted allocating direct sector %d", index)
		}
		m.cache.Write(sector, zeroSector[:])
		disk.direct[index] = sector
		return nil

	case kindIndirect:
		if disk.indirect == uint32(blockdevice.SectorNone) {
			s, ok := m.freemap.Allocate(1)
			if !ok {
				return fmt.Errorf("inode: free map exhausted allocating indirect index sector")
			}
			m.cache.Write(s, zeroSector[:])
			disk.indirect = s
		}
		data, ok := m.freemap.Allocate(1)
		if !ok {
			return fmt.Errorf("inode: free map exhausted allocating indirect data sector %d", index)
		}
		m.cache.Write(data, zeroSector[:])
		m.writePointer(disk.indirect, int(index-common.DirectPointerCount), data)
		return nil

	case kindDoubleIndirect:
		if disk.doubleIndirect == uint32(blockdevice.SectorNone) {
			s, ok := m.freemap.Allocate(1)
			if !ok {
				return fmt.Errorf("inode: free map exhausted allocating double-indirect index sector")
			}
			m.cache.Write(s, zeroSector[:])
			disk.doubleIndirect = s
		}

		relative := index - common.DirectPointerCount - indirectEntries
		outer := int(relative / indirectEntries)
		inner := int(relative % indirectEntries)

		indirectSector := m.readPointer(disk.doubleIndirect, outer)
		if indirectSector == uint32(blockdevice.SectorNone) {
			s, ok := m.freemap.Allocate(1)
			if !ok {
				return fmt.Errorf("inode: free map exhausted allocating second-level index sector")
			}
			m.cache.Write(s, zeroSector[:])
			m.writePointer(disk.doubleIndirect, outer, s)
			indirectSector = s
		}

		data, ok := m.freemap.Allocate(1)
		if !ok {
			return fmt.Errorf("inode: free map exhausted allocating double-indirect data sector %d", index)
		}
		m.cache.Write(data, zeroSector[:])
		m.writePointer(indirectSector, inner, data)
		return nil

	default:
		return fmt.Errorf("inode: index %d exceeds common.MaxFileSectors", index)
	}
}

func (m *Manager) readPointer(indexSector uint32, slot int) uint32 {
	buf := make([]byte, common.SectorSize)
	m.cache.Read(blockdevice.SectorID(indexSector), buf)
	return binary.LittleEndian.Uint32(buf[slot*4:])
}

func (m *Manager) writePointer(indexSector uint32, slot int, value uint32) {
	buf := make([]byte, common.SectorSize)
	m.cache.Read(blockdevice.SectorID(indexSector), buf)
	binary.LittleEndian.PutUint32(buf[slot*4:], value)
	m.cache.Write(blockdevice.SectorID(indexSector), buf)
}

// byteToSector resolves which data sector holds byte offset pos of disk. ok
// is false if pos is at or past disk.length.
func (m *Manager) byteToSector(disk *onDisk, pos int64) (sector uint32, ok bool) {
	if pos >= disk.length {
		return 0, false
	}
	index := pos / common.SectorSize

	switch classify(index) {
	case kindDirect:
		return disk.direct[index], true
	case kindIndirect:
		return m.readPointer(disk.indirect, int(index-common.DirectPointerCount)), true
	case kindDoubleIndirect:
		relative := index - common.DirectPointerCount - indirectEntries
		outer := int(relative / indirectEntries)
		inner := int(relative % indirectEntries)
		indirectSector := m.readPointer(disk.doubleIndirect, outer)
		return m.readPointer(indirectSector, inner), true
	default:
		return 0, false
	}
}

func (m *Manager) readDisk(sector uint32) *onDisk {
	buf := make([]byte, common.SectorSize)
	m.cache.Read(blockdevice.SectorID(sector), buf)
	d := decodeOnDisk(buf)
	if d.magic != common.InodeMagic {
		panic(fmt.Sprintf("inode: bad magic %#x at sector %d", d.magic, sector))
	}
	return d
}

// Open returns the in-memory handle for the inode at sector, creating it
// (with an open count of one) if it is not already open, or incrementing
// the open count of the existing handle otherwise.
func (m *Manager) Open(sector uint32) *Inode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ino, ok := m.registry[sector]; ok {
		ino.mu.Lock()
		ino.openCount++
		ino.mu.Unlock()
		return ino
	}

	ino := &Inode{sector: sector, openCount: 1}
	m.registry[sector] = ino
	return ino
}

// Reopen increments ino's open count, mirroring a second caller obtaining
// the same handle without going through the sector registry.
func (m *Manager) Reopen(ino *Inode) *Inode {
	ino.mu.Lock()
	ino.openCount++
	ino.mu.Unlock()
	return ino
}

// Close drops one reference to ino. Once the last opener closes a removed
// inode, its inode sector and every data/index sector it addresses are
// released back to the free map.
func (m *Manager) Close(ino *Inode) error {
	ino.mu.Lock()
	ino.openCount--
	last := ino.openCount == 0
	removed := ino.removed
	ino.mu.Unlock()

	if !last {
		return nil
	}

	m.mu.Lock()
	delete(m.registry, ino.sector)
	m.mu.Unlock()

	if !removed {
		return nil
	}
	return m.releaseAllSectors(ino.sector)
}

func (m *Manager) releaseAllSectors(sector uint32) error {
	disk := m.readDisk(sector)
	sectors := bytesToSectors(disk.length)

	for i := int64(0); i < sectors; i++ {
		switch classify(i) {
		case kindDirect:
			m.freemap.Release(disk.direct[i], 1)
		case kindIndirect:
			data := m.readPointer(disk.indirect, int(i-common.DirectPointerCount))
			m.freemap.Release(data, 1)
		case kindDoubleIndirect:
			relative := i - common.DirectPointerCount - indirectEntries
			outer := int(relative / indirectEntries)
			inner := int(relative % indirectEntries)
			indirectSector := m.readPointer(disk.doubleIndirect, outer)
			data := m.readPointer(indirectSector, inner)
			m.freemap.Release(data, 1)
		}
	}

	if disk.indirect != uint32(blockdevice.SectorNone) {
		m.freemap.Release(disk.indirect, 1)
	}
	if disk.doubleIndirect != uint32(blockdevice.SectorNone) {
		// Release every second-level index sector this file allocated.
		outerCount := (sectors - common.DirectPointerCount - indirectEntries + indirectEntries - 1) / indirectEntries
		for outer := int64(0); outer < outerCount; outer++ {
			if s := m.readPointer(disk.doubleIndirect, int(outer)); s != uint32(blockdevice.SectorNone) {
				m.freemap.Release(s, 1)
			}
		}
		m.freemap.Release(disk.doubleIndirect, 1)
	}

	m.freemap.Release(sector, 1)
	return nil
}

// UsedSectors returns every sector ino occupies: its own inode sector, its
// index sectors, and its data sectors. Used by fsck to cross-check the free
// map against what the directory tree actually references.
func (m *Manager) UsedSectors(ino *Inode) []uint32 {
	disk := m.readDisk(ino.sector)
	sectors := bytesToSectors(disk.length)

	used := []uint32{ino.sector}
	for i := int64(0); i < sectors; i++ {
		switch classify(i) {
		case kindDirect:
			used = append(used, disk.direct[i])
		case kindIndirect:
			used = append(used, m.readPointer(disk.indirect, int(i-common.DirectPointerCount)))
		case kindDoubleIndirect:
			relative := i - common.DirectPointerCount - indirectEntries
			outer := int(relative / indirectEntries)
			inner := int(relative % indirectEntries)
			indirectSector := m.readPointer(disk.doubleIndirect, outer)
			used = append(used, m.readPointer(indirectSector, inner))
		}
	}
	if disk.indirect != uint32(blockdevice.SectorNone) {
		used = append(used, disk.indirect)
	}
	if disk.doubleIndirect != uint32(blockdevice.SectorNone) {
		used = append(used, disk.doubleIndirect)
		outerCount := (sectors - common.DirectPointerCount - indirectEntries + indirectEntries - 1) / indirectEntries
		for outer := int64(0); outer < outerCount; outer++ {
			if s := m.readPointer(disk.doubleIndirect, int(outer)); s != uint32(blockdevice.SectorNone) {
				used = append(used, s)
			}
		}
	}
	return used
}

// Remove marks ino for deletion once its last opener closes it.
func (m *Manager) Remove(ino *Inode) {
	ino.mu.Lock()
	ino.removed = true
	ino.mu.Unlock()
}

// IsRemoved reports whether Remove has been called on ino.
func (m *Manager) IsRemoved(ino *Inode) bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	return ino.removed
}

// DenyWrite disables writes to ino; may be called at most once per opener.
func (m *Manager) DenyWrite(ino *Inode) {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	ino.denyWriteCount++
	if ino.denyWriteCount > ino.openCount {
		panic("inode: deny-write count exceeds open count")
	}
}

// AllowWrite re-enables writes previously disabled by DenyWrite.
func (m *Manager) AllowWrite(ino *Inode) {
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if ino.denyWriteCount == 0 {
		panic("inode: allow-write without a matching deny-write")
	}
	ino.denyWriteCount--
}

// GetInumber returns the sector identifying ino.
func (m *Manager) GetInumber(ino *Inode) uint32 {
	return ino.sector
}

// IsDir reports whether ino's on-disk inode has the directory flag set.
func (m *Manager) IsDir(ino *Inode) bool {
	return m.readDisk(ino.sector).isDir
}

// Length returns ino's current size in bytes.
func (m *Manager) Length(ino *Inode) int64 {
	return m.readDisk(ino.sector).length
}

// ReadAt reads up to len(buf) bytes from ino starting at offset, returning
// the number of bytes actually read (fewer than len(buf) at end-of-file).
func (m *Manager) ReadAt(ino *Inode, buf []byte, offset int64) int {
	ino.extendLock.Lock()
	defer ino.extendLock.Unlock()

	disk := m.readDisk(ino.sector)

	var read int
	sector := make([]byte, common.SectorSize)
	for read < len(buf) {
		sectorIdx, ok := m.byteToSector(disk, offset)
		if !ok {
			break
		}
		sectorOfs := int(offset % common.SectorSize)

		inodeLeft := disk.length - offset
		sectorLeft := int64(common.SectorSize - sectorOfs)
		minLeft := inodeLeft
		if sectorLeft < minLeft {
			minLeft = sectorLeft
		}
		chunk := int64(len(buf) - read)
		if chunk > minLeft {
			chunk = minLeft
		}
		if chunk <= 0 {
			break
		}

		m.cache.Read(blockdevice.SectorID(sectorIdx), sector)
		copy(buf[read:read+int(chunk)], sector[sectorOfs:sectorOfs+int(chunk)])

		offset += chunk
		read += int(chunk)
	}
	return read
}

// WriteAt writes len(buf) bytes into ino at offset, extending the inode
// (allocating new sectors) if the write runs past the current length.
// Writes are ignored, returning 0, while a DenyWrite is outstanding.
func (m *Manager) WriteAt(ino *Inode, buf []byte, offset int64) int {
	ino.mu.Lock()
	denied := ino.denyWriteCount > 0
	ino.mu.Unlock()
	if denied {
		return 0
	}

	ino.extendLock.Lock()
	defer ino.extendLock.Unlock()

	disk := m.readDisk(ino.sector)

	writeEnd := offset + int64(len(buf))
	if writeEnd > disk.length {
		oldSectors := bytesToSectors(disk.length)
		disk.length = writeEnd
		newSectors := bytesToSectors(disk.length)
		for i := oldSectors; i < newSectors; i++ {
			if err := m.growOneSector(disk, i); err != nil {
				panic(err)
			}
		}
		m.cache.Write(ino.sector, disk.encode())
	}

	var written int
	sector := make([]byte, common.SectorSize)
	for written < len(buf) {
		sectorIdx, ok := m.byteToSector(disk, offset)
		if !ok {
			break
		}
		sectorOfs := int(offset % common.SectorSize)

		inodeLeft := disk.length - offset
		sectorLeft := int64(common.SectorSize - sectorOfs)
		minLeft := inodeLeft
		if sectorLeft < minLeft {
			minLeft = sectorLeft
		}
		chunk := int64(len(buf) - written)
		if chunk > minLeft {
			chunk = minLeft
		}
		if chunk <= 0 {
			break
		}

		m.cache.Read(blockdevice.SectorID(sectorIdx), sector)
		copy(sector[sectorOfs:sectorOfs+int(chunk)], buf[written:written+int(chunk)])
		m.cache.Write(blockdevice.SectorID(sectorIdx), sector)

		offset += chunk
		written += int(chunk)
	}
	return written
}
