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

// Package filesys wires the block device, buffer cache, free map, inode
// layer, directory format, and path resolver into the single façade a CLI
// or syscall layer calls into: Format, Open, Done, Create, Mkdir, Remove,
// Readdir, Check.
package filesys

import (
	"fmt"

	"github.com/pintosfs/filesys/cfg"
	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/buffercache"
	"github.com/pintosfs/filesys/internal/directory"
	"github.com/pintosfs/filesys/internal/freemap"
	"github.com/pintosfs/filesys/internal/inode"
	"github.com/pintosfs/filesys/internal/metrics"
	"github.com/pintosfs/filesys/internal/pathwalk"
)

// rootDirEntryCount is how many entries the root directory is formatted
// with; non-root directories use the same capacity, growing automatically
// on Add like any other inode.
const rootDirEntryCount = 16

// Filesystem is an open instance of the on-disk filesystem core.
type Filesystem struct {
	dev     blockdevice.BlockDevice
	cache   *buffercache.Cache
	freemap *freemap.FreeMap
	inodes  *inode.Manager

	rootSector uint32
}

// Format initializes a brand new filesystem on dev: a free map sized to
// dev's sector count, and a root directory.
func Format(dev blockdevice.BlockDevice, cache cfg.CacheConfig, debug cfg.DebugConfig) (*Filesystem, error) {
	metrics.Register()

	c := buffercache.New(dev, cache.Frames, cache.ReadAhead, debug)
	fm := freemap.Create(c, int(dev.NumSectors()))
	im := inode.NewManager(c, fm)

	rootSector, ok := fm.Allocate(1)
	if !ok {
		return nil, fmt.Errorf("filesys: free map exhausted allocating root directory")
	}
	if err := directory.Create(im, rootSector, rootDirEntryCount); err != nil {
		return nil, fmt.Errorf("filesys: create root directory: %w", err)
	}

	root := directory.Open(im, rootSector)
	if err := root.Add(".", rootSector); err != nil {
		return nil, err
	}
	if err := root.Add("..", rootSector); err != nil {
		return nil, err
	}
	if err := root.Close(); err != nil {
		return nil, err
	}

	return &Filesystem{dev: dev, cache: c, freemap: fm, inodes: im, rootSector: rootSector}, nil
}

// Open brings up an already-formatted filesystem on dev. The root
// directory's sector is recomputed from the free map layout, which is
// deterministic given dev's sector count: Format always allocates it as
// the first data sector after the free map's own reserved run.
func Open(dev blockdevice.BlockDevice, cache cfg.CacheConfig, debug cfg.DebugConfig) *Filesystem {
	metrics.Register()

	c := buffercache.New(dev, cache.Frames, cache.ReadAhead, debug)
	fm := freemap.Open(c, int(dev.NumSectors()))
	im := inode.NewManager(c, fm)

	return &Filesystem{dev: dev, cache: c, freemap: fm, inodes: im, rootSector: fm.DataSectorsStart()}
}

// RootSector returns the sector holding the root directory's inode: the
// one Format allocated, or the one Open recomputed from the free map
// layout. Nothing needs to be persisted alongside the disk image for it.
func (f *Filesystem) RootSector() uint32 {
	return f.rootSector
}

// Done flushes the buffer cache and free map and stops the read-ahead
// worker.
func (f *Filesystem) Done() {
	f.freemap.Close()
	f.cache.Close()
}

func (f *Filesystem) root() *directory.Directory {
	return directory.Open(f.inodes, f.rootSector)
}

// Create makes a new file of initialSize bytes (all zero) at path.
func (f *Filesystem) Create(path string, initialSize int64) error {
	root := f.root()
	defer root.Close()

	dir, name, err := pathwalk.Resolve(f.inodes, root, nil, path)
	if err != nil {
		return err
	}
	defer dir.Close()

	if name == "" {
		return fmt.Errorf("filesys: %q names a directory, not a file", path)
	}
	if f.inodes.IsRemoved(dir.Inode()) {
		return fmt.Errorf("filesys: containing directory has been removed")
	}

	sector, ok := f.freemap.Allocate(1)
	if !ok {
		return fmt.Errorf("filesys: free map exhausted")
	}
	if err := f.inodes.Create(sector, initialSize, false); err != nil {
		f.freemap.Release(sector, 1)
		return err
	}
	if err := dir.Add(name, sector); err != nil {
		f.freemap.Release(sector, 1)
		return err
	}
	return nil
}

// Mkdir makes a new, empty directory at path.
func (f *Filesystem) Mkdir(path string) error {
	root := f.root()
	defer root.Close()

	dir, name, err := pathwalk.Resolve(f.inodes, root, nil, path)
	if err != nil {
		return err
	}
	defer dir.Close()

	if name == "" {
		return fmt.Errorf("filesys: %q already names a directory", path)
	}

	sector, ok := f.freemap.Allocate(1)
	if !ok {
		return fmt.Errorf("filesys: free map exhausted")
	}
	if err := directory.Create(f.inodes, sector, rootDirEntryCount); err != nil {
		f.freemap.Release(sector, 1)
		return err
	}
	if err := dir.Add(name, sector); err != nil {
		f.freemap.Release(sector, 1)
		return err
	}

	child := directory.Open(f.inodes, sector)
	defer child.Close()
	if err := child.Add(".", sector); err != nil {
		return err
	}
	return child.Add("..", f.inodes.GetInumber(dir.Inode()))
}

// Open returns the inode handle for path, which may name a file or a
// directory.
func (f *Filesystem) Open(path string) (*inode.Inode, error) {
	root := f.root()
	defer root.Close()

	dir, name, err := pathwalk.Resolve(f.inodes, root, nil, path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	if f.inodes.IsRemoved(dir.Inode()) {
		return nil, fmt.Errorf("filesys: containing directory has been removed")
	}
	if name == "" {
		return f.inodes.Reopen(dir.Inode()), nil
	}

	sector, ok := dir.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("filesys: %q not found", path)
	}
	return f.inodes.Open(sector), nil
}

// Close releases a handle returned by Open.
func (f *Filesystem) Close(ino *inode.Inode) error {
	return f.inodes.Close(ino)
}

// Inodes exposes the manager for callers (tests, the CLI's cat/write
// commands) that need ReadAt/WriteAt/Length directly on an open handle.
func (f *Filesystem) Inodes() *inode.Manager {
	return f.inodes
}

// Remove deletes the file or empty directory at path. A non-empty
// directory, or the filesystem root, cannot be removed.
func (f *Filesystem) Remove(path string) error {
	root := f.root()
	defer root.Close()

	dir, name, err := pathwalk.Resolve(f.inodes, root, nil, path)
	if err != nil {
		return err
	}
	defer dir.Close()

	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("filesys: refusing to remove %q", path)
	}

	sector, ok := dir.Lookup(name)
	if !ok {
		return fmt.Errorf("filesys: %q not found", path)
	}

	if sector == f.rootSector {
		return fmt.Errorf("filesys: refusing to remove the root directory")
	}

	ino := f.inodes.Open(sector)
	if f.inodes.IsDir(ino) {
		child := directory.Open(f.inodes, sector)
		empty := child.IsEmpty()
		child.Close()
		if !empty {
			f.inodes.Close(ino)
			return fmt.Errorf("filesys: directory %q is not empty", path)
		}
	}

	if err := dir.Remove(name); err != nil {
		f.inodes.Close(ino)
		return err
	}
	f.inodes.Remove(ino)
	return f.inodes.Close(ino)
}

// Readdir lists the entries of the directory at path.
func (f *Filesystem) Readdir(path string) ([]string, error) {
	ino, err := f.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.inodes.Close(ino)

	if !f.inodes.IsDir(ino) {
		return nil, fmt.Errorf("filesys: %q is not a directory", path)
	}

	dirSector := f.inodes.GetInumber(ino)
	dir := directory.Open(f.inodes, dirSector)
	defer dir.Close()

	var names []string
	pos := 0
	for {
		name, ok := dir.Readdir(&pos)
		if !ok {
			break
		}
		names = append(names, name)
	}
	return names, nil
}

// Check walks the directory tree from root, reconciling every sector it
// visits against the free map, and reports each inconsistency found: a
// sector the tree references that the free map thinks is free (a lost
// allocation), a reachable sector visited twice (a cross-linked file), and
// a sector marked in-use that neither the tree nor the bitmap's own
// reserved run accounts for.
// It does not repair anything, matching the original kernel's fsck, which
// only ever reported corruption rather than fixing it.
func (f *Filesystem) Check() []string {
	var issues []string
	visited := make(map[uint32]bool)

	var walk func(dirSector uint32, path string)
	walk = func(dirSector uint32, path string) {
		dir := directory.Open(f.inodes, dirSector)
		defer dir.Close()

		pos := 0
		for {
			name, ok := dir.Readdir(&pos)
			if !ok {
				break
			}
			if name == "." || name == ".." {
				continue
			}
			sector, ok := dir.Lookup(name)
			if !ok {
				continue
			}
			childPath := path + "/" + name

			ino := f.inodes.Open(sector)
			for _, s := range f.inodes.UsedSectors(ino) {
				if visited[s] {
					issues = append(issues, fmt.Sprintf("sector %d reachable from more than one inode (last seen at %s)", s, childPath))
					continue
				}
				visited[s] = true
				if !f.freemap.IsAllocated(s) {
					issues = append(issues, fmt.Sprintf("sector %d used by %s but marked free in the bitmap", s, childPath))
				}
			}

			isDir := f.inodes.IsDir(ino)
			f.inodes.Close(ino)

			if isDir {
				walk(sector, childPath)
			}
		}
	}

	// The bitmap's own reserved run is in use but belongs to no inode.
	for s := uint32(0); s < f.freemap.DataSectorsStart(); s++ {
		visited[s] = true
	}

	root := f.root()
	for _, s := range f.inodes.UsedSectors(root.Inode()) {
		visited[s] = true
	}
	root.Close()
	walk(f.rootSector, "")

	free := 0
	for s := 0; s < f.freemap.NumSectors(); s++ {
		if !f.freemap.IsAllocated(uint32(s)) {
			free++
			continue
		}
		if !visited[uint32(s)] {
			issues = append(issues, fmt.Sprintf("sector %d marked in-use but unreachable from the root directory", s))
		}
	}
	return issues
}
