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

// Package inode implements the multi-level indexed inode: one sector holds
// length, a directory flag, 123 direct data-sector pointers, one indirect
// pointer, and one double-indirect pointer, addressing up to
// common.MaxFileSectors sectors of data.
package inode

import (
	"encoding/binary"

	"github.com/pintosfs/filesys/common"
	"github.com/pintosfs/filesys/internal/blockdevice"
)

// onDisk is the fixed-layout inode persisted at a single sector. Its
// encoded form must be exactly common.SectorSize bytes.
type onDisk struct {
	length         int64
	magic          uint32
	isDir          bool
	direct         [common.DirectPointerCount]uint32
	indirect       uint32
	doubleIndirect uint32
}

const (
	offLength         = 0
	offMagic          = 4
	offIsDir          = 8
	offDirect         = 12
	offIndirect       = offDirect + common.DirectPointerCount*4
	offDoubleIndirect = offIndirect + 4
)

func newOnDisk(length int64, isDir bool) *onDisk {
	d := &onDisk{length: length, magic: common.InodeMagic, isDir: isDir}
	for i := range d.direct {
		d.direct[i] = uint32(blockdevice.SectorNone)
	}
	d.indirect = uint32(blockdevice.SectorNone)
	d.doubleIndirect = uint32(blockdevice.SectorNone)
	return d
}

func (d *onDisk) encode() []byte {
	if d.length < 0 || d.length > int64(common.MaxFileSectors)*common.SectorSize {
		panic("inode: length out of range for the on-disk format")
	}
	buf := make([]byte, common.SectorSize)
	binary.LittleEndian.PutUint32(buf[offLength:], uint32(d.length))
	binary.LittleEndian.PutUint32(buf[offMagic:], d.magic)
	if d.isDir {
		buf[offIsDir] = 1
	}
	for i, s := range d.direct {
		binary.LittleEndian.PutUint32(buf[offDirect+i*4:], s)
	}
	binary.LittleEndian.PutUint32(buf[offIndirect:], d.indirect)
	binary.LittleEndian.PutUint32(buf[offDoubleIndirect:], d.doubleIndirect)
	return buf
}

func decodeOnDisk(buf []byte) *onDisk {
	d := &onDisk{}
	d.length = int64(binary.LittleEndian.Uint32(buf[offLength:]))
	d.magic = binary.LittleEndian.Uint32(buf[offMagic:])
	d.isDir = buf[offIsDir] != 0
	for i := range d.direct {
		d.direct[i] = binary.LittleEndian.Uint32(buf[offDirect+i*4:])
	}
	d.indirect = binary.LittleEndian.Uint32(buf[offIndirect:])
	d.doubleIndirect = binary.LittleEndian.Uint32(buf[offDoubleIndirect:])
	return d
}

// bytesToSectors returns ceil(size/common.SectorSize).
func bytesToSectors(size int64) int64 {
	return common.CeilDiv(size, common.SectorSize)
}

const indirectEntries = common.PointersPerIndexSector

// sectorIndexKind classifies a zero-based data-sector index into which
// level of the index structure holds its pointer.
type sectorIndexKind int

const (
	kindDirect sectorIndexKind = iota
	kindIndirect
	kindDoubleIndirect
	kindOutOfRange
)

func classify(index int64) sectorIndexKind {
	switch {
	case index < common.DirectPointerCount:
		return kindDirect
	case index < common.DirectPointerCount+indirectEntries:
		return kindIndirect
	case index < common.MaxFileSectors:
		return kindDoubleIndirect
	default:
		return kindOutOfRange
	}
}
