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

package cmd

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pintosfs/filesys/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withTestConfig points the package-level Config at a fresh disk image path
// inside t.TempDir, bypassing viper/flag parsing entirely: every subcommand
// reads Config directly (mkfs itself, the rest via openExisting), so tests
// can drive RunE funcs
// without going through cobra.Execute's global flag state.
func withTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	Config = cfg.Config{
		Device: cfg.DeviceConfig{Path: path, Sectors: 2048},
		Cache:  cfg.CacheConfig{Frames: 16, ReadAhead: false},
	}
	return path
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// whatever was written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestMkfsThenLsShowsEmptyRoot(t *testing.T) {
	withTestConfig(t)
	require.NoError(t, mkfsCmd.RunE(mkfsCmd, nil))

	out := captureStdout(t, func() {
		require.NoError(t, lsCmd.RunE(lsCmd, nil))
	})
	assert.Contains(t, out, ".")
	assert.Contains(t, out, "..")
}

func TestWriteThenCatRoundTripsContent(t *testing.T) {
	withTestConfig(t)
	require.NoError(t, mkfsCmd.RunE(mkfsCmd, nil))

	require.NoError(t, writeCmd.RunE(writeCmd, []string{"/greeting.txt", "hello from pintofs"}))

	out := captureStdout(t, func() {
		require.NoError(t, catCmd.RunE(catCmd, []string{"/greeting.txt"}))
	})
	assert.Equal(t, "hello from pintofs", out)
}

func TestWriteReadsFromStdinWhenNoContentArg(t *testing.T) {
	withTestConfig(t)
	require.NoError(t, mkfsCmd.RunE(mkfsCmd, nil))

	oldStdin := os.Stdin
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdin = r
	go func() {
		w.Write([]byte("piped content"))
		w.Close()
	}()
	defer func() { os.Stdin = oldStdin }()

	require.NoError(t, writeCmd.RunE(writeCmd, []string{"/from-stdin.txt"}))

	out := captureStdout(t, func() {
		require.NoError(t, catCmd.RunE(catCmd, []string{"/from-stdin.txt"}))
	})
	assert.Equal(t, "piped content", out)
}

func TestMkdirThenLsShowsNewDirectory(t *testing.T) {
	withTestConfig(t)
	require.NoError(t, mkfsCmd.RunE(mkfsCmd, nil))
	require.NoError(t, mkdirCmd.RunE(mkdirCmd, []string{"/sub"}))

	out := captureStdout(t, func() {
		require.NoError(t, lsCmd.RunE(lsCmd, []string{"/"}))
	})
	assert.Contains(t, out, "sub")
}

func TestCatOnDirectoryFails(t *testing.T) {
	withTestConfig(t)
	require.NoError(t, mkfsCmd.RunE(mkfsCmd, nil))
	require.NoError(t, mkdirCmd.RunE(mkdirCmd, []string{"/sub"}))

	err := catCmd.RunE(catCmd, []string{"/sub"})
	assert.Error(t, err)
}

func TestRmRemovesFile(t *testing.T) {
	withTestConfig(t)
	require.NoError(t, mkfsCmd.RunE(mkfsCmd, nil))
	require.NoError(t, writeCmd.RunE(writeCmd, []string{"/a.txt", "x"}))
	require.NoError(t, rmCmd.RunE(rmCmd, []string{"/a.txt"}))

	out := captureStdout(t, func() {
		require.NoError(t, lsCmd.RunE(lsCmd, []string{"/"}))
	})
	assert.NotContains(t, out, "a.txt")
}

func TestFsckReportsCleanOnFreshFilesystem(t *testing.T) {
	withTestConfig(t)
	require.NoError(t, mkfsCmd.RunE(mkfsCmd, nil))
	require.NoError(t, writeCmd.RunE(writeCmd, []string{"/a.txt", "x"}))
	require.NoError(t, mkdirCmd.RunE(mkdirCmd, []string{"/sub"}))

	out := captureStdout(t, func() {
		require.NoError(t, fsckCmd.RunE(fsckCmd, nil))
	})
	assert.Contains(t, out, "clean")
}

func TestOpenExistingFailsOnMissingDevice(t *testing.T) {
	Config = cfg.Config{
		Device: cfg.DeviceConfig{Path: filepath.Join(t.TempDir(), "does-not-exist.img"), Sectors: 2048},
		Cache:  cfg.CacheConfig{Frames: 16, ReadAhead: false},
	}

	_, err := openExisting()
	assert.Error(t, err)
}
