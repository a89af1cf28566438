// Copyright 2024 Google LLC
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

package common

// On-disk and cache geometry shared by every layer above the block device.
const (
	// SectorSize is the fixed size, in bytes, of one addressable unit of
	// device I/O.
	SectorSize = 512

	// CacheFrameCount is the fixed number of frames in the buffer cache.
	CacheFrameCount = 64

	// DirectPointerCount is the number of direct data-sector pointers
	// carried in an on-disk inode.
	DirectPointerCount = 123

	// PointersPerIndexSector is how many sector ids fit in one indirect
	// or double-indirect index sector (512 bytes / 4-byte little-endian
	// sector id).
	PointersPerIndexSector = SectorSize / 4

	// MaxFileSectors is the largest number of data sectors a file can
	// address: direct + single-indirect + double-indirect.
	MaxFileSectors = DirectPointerCount + PointersPerIndexSector + PointersPerIndexSector*PointersPerIndexSector

	// InodeMagic identifies a valid on-disk inode.
	InodeMagic uint32 = 0x494e4f44

	// FreeMapSector is the first sector of the reserved, contiguous run
	// holding the free-sector bitmap itself. The root directory's inode
	// sector is not fixed: it is the first sector the free map hands out
	// once the bitmap's own run has been marked in-use, which mkfs
	// allocates immediately after formatting.
	FreeMapSector uint32 = 0
)
