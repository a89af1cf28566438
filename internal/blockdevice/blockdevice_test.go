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

package blockdevice

import (
	"path/filepath"
	"testing"

	"github.com/pintosfs/filesys/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlockDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMemory(8)

	want := make([]byte, common.SectorSize)
	for i := range want {
		want[i] = byte(i)
	}

	require.NoError(t, dev.WriteSector(3, want))

	got := make([]byte, common.SectorSize)
	require.NoError(t, dev.ReadSector(3, got))
	assert.Equal(t, want, got)
}

func TestMemoryBlockDeviceOutOfRangePanics(t *testing.T) {
	dev := NewMemory(2)
	buf := make([]byte, common.SectorSize)
	assert.Panics(t, func() { _ = dev.ReadSector(2, buf) })
}

func TestOpenFileCreatesAndExtends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")

	dev, err := OpenFile(path, 4)
	require.NoError(t, err)
	assert.Equal(t, SectorID(4), dev.NumSectors())
	require.NoError(t, Close(dev))

	// Reopening with a larger size extends, it does not truncate data.
	dev2, err := OpenFile(path, 8)
	require.NoError(t, err)
	assert.Equal(t, SectorID(8), dev2.NumSectors())
	require.NoError(t, Close(dev2))
}
