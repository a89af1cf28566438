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

package pathwalk

import (
	"testing"

	"github.com/pintosfs/filesys/cfg"
	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/buffercache"
	"github.com/pintosfs/filesys/internal/directory"
	"github.com/pintosfs/filesys/internal/freemap"
	"github.com/pintosfs/filesys/internal/inode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*inode.Manager, *freemap.FreeMap, *directory.Directory) {
	t.Helper()
	dev := blockdevice.NewMemory(512)
	cache := buffercache.New(dev, 16, false, cfg.DebugConfig{})
	t.Cleanup(cache.Close)
	fm := freemap.Create(cache, 512)
	im := inode.NewManager(cache, fm)

	rootSector, ok := fm.Allocate(1)
	require.True(t, ok)
	require.NoError(t, directory.Create(im, rootSector, 8))
	root := directory.Open(im, rootSector)
	require.NoError(t, root.Add(".", rootSector))
	require.NoError(t, root.Add("..", rootSector))
	return im, fm, root
}

func TestResolveAbsoluteTopLevel(t *testing.T) {
	im, _, root := setup(t)
	defer root.Close()

	dir, leaf, err := Resolve(im, root, nil, "/foo.txt")
	require.NoError(t, err)
	defer dir.Close()
	assert.Equal(t, "foo.txt", leaf)
}

func TestResolveNestedDirectory(t *testing.T) {
	im, fm, root := setup(t)
	defer root.Close()

	subSector, ok := fm.Allocate(1)
	require.True(t, ok)
	require.NoError(t, directory.Create(im, subSector, 8))
	sub := directory.Open(im, subSector)
	require.NoError(t, sub.Add(".", subSector))
	require.NoError(t, sub.Add("..", im.GetInumber(root.Inode())))
	require.NoError(t, root.Add("sub", subSector))
	sub.Close()

	dir, leaf, err := Resolve(im, root, nil, "/sub/nested.txt")
	require.NoError(t, err)
	defer dir.Close()
	assert.Equal(t, "nested.txt", leaf)
}

func TestResolveRelativeUsesCwd(t *testing.T) {
	im, fm, root := setup(t)
	defer root.Close()

	subSector, _ := fm.Allocate(1)
	require.NoError(t, directory.Create(im, subSector, 8))
	sub := directory.Open(im, subSector)
	require.NoError(t, sub.Add(".", subSector))
	require.NoError(t, root.Add("sub", subSector))

	dir, leaf, err := Resolve(im, root, sub, "relative.txt")
	require.NoError(t, err)
	defer dir.Close()
	assert.Equal(t, "relative.txt", leaf)
}
