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
	"testing"

	"github.com/pintosfs/filesys/cfg"
	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/buffercache"
	"github.com/pintosfs/filesys/internal/freemap"
	"github.com/pintosfs/filesys/internal/inode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFixture(t *testing.T) (*inode.Manager, *freemap.FreeMap) {
	t.Helper()
	dev := blockdevice.NewMemory(256)
	cache := buffercache.New(dev, 16, false, cfg.DebugConfig{})
	t.Cleanup(cache.Close)
	fm := freemap.Create(cache, 256)
	return inode.NewManager(cache, fm), fm
}

func TestAddLookupRemove(t *testing.T) {
	im, fm := newTestFixture(t)
	sector, ok := fm.Allocate(1)
	require.True(t, ok)
	require.NoError(t, Create(im, sector, 4))

	dir := Open(im, sector)
	defer dir.Close()

	fileSector, ok := fm.Allocate(1)
	require.True(t, ok)
	require.NoError(t, dir.Add("hello.txt", fileSector))

	got, ok := dir.Lookup("hello.txt")
	assert.True(t, ok)
	assert.Equal(t, fileSector, got)

	require.NoError(t, dir.Remove("hello.txt"))
	_, ok = dir.Lookup("hello.txt")
	assert.False(t, ok)
}

func TestAddDuplicateNameFails(t *testing.T) {
	im, fm := newTestFixture(t)
	sector, _ := fm.Allocate(1)
	require.NoError(t, Create(im, sector, 4))
	dir := Open(im, sector)
	defer dir.Close()

	s1, _ := fm.Allocate(1)
	require.NoError(t, dir.Add("a", s1))
	assert.Error(t, dir.Add("a", s1))
}

func TestReaddirSkipsRemovedEntries(t *testing.T) {
	im, fm := newTestFixture(t)
	sector, _ := fm.Allocate(1)
	require.NoError(t, Create(im, sector, 4))
	dir := Open(im, sector)
	defer dir.Close()

	s1, _ := fm.Allocate(1)
	s2, _ := fm.Allocate(1)
	require.NoError(t, dir.Add("a", s1))
	require.NoError(t, dir.Add("b", s2))
	require.NoError(t, dir.Remove("a"))

	pos := 0
	var names []string
	for {
		name, ok := dir.Readdir(&pos)
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.Equal(t, []string{"b"}, names)
}

func TestIsEmptyIgnoresDotEntries(t *testing.T) {
	im, fm := newTestFixture(t)
	sector, _ := fm.Allocate(1)
	require.NoError(t, Create(im, sector, 4))
	dir := Open(im, sector)
	defer dir.Close()

	require.NoError(t, dir.Add(".", sector))
	require.NoError(t, dir.Add("..", sector))
	assert.True(t, dir.IsEmpty())

	child, _ := fm.Allocate(1)
	require.NoError(t, dir.Add("child", child))
	assert.False(t, dir.IsEmpty())
}
