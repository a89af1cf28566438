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

package buffercache

import (
	"sync"

	"github.com/pintosfs/filesys/internal/blockdevice"
)

// readAheadQueue is the thread-safe FIFO of sectors queued for prefetch.
type readAheadQueue interface {
	push(sector blockdevice.SectorID)
	pop() (blockdevice.SectorID, bool)
}

// lockedQueue is a plain slice-backed FIFO of pending sectors. The
// read-ahead worker is the only consumer and sectors are popped from the
// front about as fast as they're pushed, so there's no need for anything
// fancier than a mutex-guarded slice.
type lockedQueue struct {
	mu      sync.Mutex
	pending []blockdevice.SectorID
}

func newReadAheadQueue() readAheadQueue {
	return &lockedQueue{}
}

func (l *lockedQueue) push(sector blockdevice.SectorID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, sector)
}

func (l *lockedQueue) pop() (blockdevice.SectorID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		var zero blockdevice.SectorID
		return zero, false
	}
	sector := l.pending[0]
	if len(l.pending) == 1 {
		l.pending = nil
	} else {
		l.pending = l.pending[1:]
	}
	return sector, true
}
