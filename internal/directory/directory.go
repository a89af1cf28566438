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

package directory

import (
	"fmt"
	"sync"

	"github.com/pintosfs/filesys/internal/inode"
)

// Directory is an open directory: an inode whose data is an array of fixed
// entries, guarded by its own lock since Lookup/Add/Remove read-modify-write
// the entry array.
type Directory struct {
	im    *inode.Manager
	ino   *inode.Inode
	mu    sync.Mutex
}

// Create formats a new, empty directory of the given entry capacity at
// sector.
func Create(im *inode.Manager, sector uint32, entryCount int) error {
	return im.Create(sector, int64(entryCount)*entrySize, true)
}

// Open returns the directory stored at sector.
func Open(im *inode.Manager, sector uint32) *Directory {
	return &Directory{im: im, ino: im.Open(sector)}
}

// Reopen increments the reference count on d's underlying inode and
// returns a second handle to the same directory.
func (d *Directory) Reopen() *Directory {
	return &Directory{im: d.im, ino: d.im.Reopen(d.ino)}
}

// Close releases d's inode.
func (d *Directory) Close() error {
	return d.im.Close(d.ino)
}

// Inode returns the directory's underlying inode handle.
func (d *Directory) Inode() *inode.Inode {
	return d.ino
}

func (d *Directory) entryCount() int {
	return int(d.im.Length(d.ino) / entrySize)
}

func (d *Directory) readEntry(index int) entry {
	buf := make([]byte, entrySize)
	d.im.ReadAt(d.ino, buf, int64(index)*entrySize)
	return decodeEntry(buf)
}

func (d *Directory) writeEntry(index int, e entry) {
	d.im.WriteAt(d.ino, encodeEntry(e), int64(index)*entrySize)
}

// Lookup searches d for name and returns its inode sector.
func (d *Directory) Lookup(name string) (sector uint32, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < d.entryCount(); i++ {
		e := d.readEntry(i)
		if e.inUse && e.name == name {
			return e.sector, true
		}
	}
	return 0, false
}

// Add inserts a new entry mapping name to sector, reusing the first unused
// slot if one exists or appending a fresh one otherwise. It fails if name
// is already present or longer than NameMax.
func (d *Directory) Add(name string, sector uint32) error {
	if len(name) == 0 || len(name) > NameMax {
		return fmt.Errorf("directory: invalid name length for %q", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	count := d.entryCount()
	freeSlot := -1
	for i := 0; i < count; i++ {
		e := d.readEntry(i)
		if e.inUse && e.name == name {
			return fmt.Errorf("directory: %q already exists", name)
		}
		if !e.inUse && freeSlot == -1 {
			freeSlot = i
		}
	}

	slot := freeSlot
	if slot == -1 {
		slot = count
	}
	d.writeEntry(slot, entry{name: name, sector: sector, inUse: true})
	return nil
}

// Remove clears the entry for name. It fails if name is not present.
func (d *Directory) Remove(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < d.entryCount(); i++ {
		e := d.readEntry(i)
		if e.inUse && e.name == name {
			d.writeEntry(i, entry{})
			return nil
		}
	}
	return fmt.Errorf("directory: %q not found", name)
}

// Readdir returns, in slot order starting at *pos, the next in-use entry
// name and advances *pos past it. ok is false once every slot has been
// visited; "." and ".." are included like any other entry.
func (d *Directory) Readdir(pos *int) (name string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	count := d.entryCount()
	for *pos < count {
		i := *pos
		*pos++
		e := d.readEntry(i)
		if e.inUse {
			return e.name, true
		}
	}
	return "", false
}

// IsEmpty reports whether d has no entries besides "." and "..".
func (d *Directory) IsEmpty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := 0; i < d.entryCount(); i++ {
		e := d.readEntry(i)
		if e.inUse && e.name != "." && e.name != ".." {
			return false
		}
	}
	return true
}
