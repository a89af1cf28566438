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

package freemap

import (
	"testing"

	"github.com/pintosfs/filesys/cfg"
	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/buffercache"
	"github.com/stretchr/testify/assert"
)

func newTestFreeMap(t *testing.T, sectors int) *FreeMap {
	t.Helper()
	dev := blockdevice.NewMemory(blockdevice.SectorID(sectors))
	cache := buffercache.New(dev, 8, false, cfg.DebugConfig{})
	t.Cleanup(cache.Close)
	return Create(cache, sectors)
}

func TestAllocateReturnsFirstFitRun(t *testing.T) {
	fm := newTestFreeMap(t, 64)

	start := fm.DataSectorsStart()
	first, ok := fm.Allocate(3)
	assert.True(t, ok)
	assert.Equal(t, start, first)

	second, ok := fm.Allocate(2)
	assert.True(t, ok)
	assert.Equal(t, start+3, second)
}

func TestAllocateFailsWhenExhausted(t *testing.T) {
	fm := newTestFreeMap(t, 16)

	free := int(fm.numSectors) - fm.sectorCount
	_, ok := fm.Allocate(free)
	assert.True(t, ok)

	_, ok = fm.Allocate(1)
	assert.False(t, ok)
}

func TestReleaseMakesSectorsReusable(t *testing.T) {
	fm := newTestFreeMap(t, 32)

	first, ok := fm.Allocate(4)
	assert.True(t, ok)

	fm.Release(first, 4)

	again, ok := fm.Allocate(4)
	assert.True(t, ok)
	assert.Equal(t, first, again)
}

func TestReleaseOfFreeSectorPanics(t *testing.T) {
	fm := newTestFreeMap(t, 32)

	assert.Panics(t, func() {
		fm.Release(fm.DataSectorsStart()+5, 1)
	})
}

func TestOpenRestoresBitmapAcrossReload(t *testing.T) {
	dev := blockdevice.NewMemory(32)
	cache := buffercache.New(dev, 8, false, cfg.DebugConfig{})
	fm := Create(cache, 32)
	first, ok := fm.Allocate(3)
	assert.True(t, ok)
	fm.Close()
	cache.Close()

	cache2 := buffercache.New(dev, 8, false, cfg.DebugConfig{})
	defer cache2.Close()
	reopened := Open(cache2, 32)

	// The previously allocated run must still show as in-use: a fresh
	// allocation must skip over it.
	next, ok := reopened.Allocate(1)
	assert.True(t, ok)
	assert.NotEqual(t, first, next)
}
