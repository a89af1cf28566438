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

// Package directory implements the flat, fixed-entry directory format
// stored as the data of an inode with its directory flag set: a directory
// is just a file whose bytes are an array of entries.
package directory

import "encoding/binary"

// NameMax is the longest file name component a directory entry can hold.
const NameMax = 14

// entrySize is the fixed on-disk size of one directory entry: the name
// (NUL-padded), the entry's inode sector, and an in-use flag.
const entrySize = NameMax + 1 + 4 + 1

type entry struct {
	name  string
	sector uint32
	inUse bool
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, entrySize)
	copy(buf[:NameMax+1], e.name)
	binary.LittleEndian.PutUint32(buf[NameMax+1:], e.sector)
	if e.inUse {
		buf[NameMax+1+4] = 1
	}
	return buf
}

func decodeEntry(buf []byte) entry {
	end := 0
	for end < NameMax+1 && buf[end] != 0 {
		end++
	}
	return entry{
		name:   string(buf[:end]),
		sector: binary.LittleEndian.Uint32(buf[NameMax+1:]),
		inUse:  buf[NameMax+1+4] != 0,
	}
}
