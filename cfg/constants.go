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

package cfg

import "github.com/pintosfs/filesys/common"

const (
	// DefaultCacheFrames is the number of frames in the buffer cache absent
	// an override. Production always uses this value; tests may shrink it
	// to exercise eviction with fewer touches.
	DefaultCacheFrames = common.CacheFrameCount

	// DefaultDeviceSectors is used by mkfs when the operator does not pass
	// --device-sectors, sized for a handful of double-indirect-reaching tests.
	DefaultDeviceSectors = 16896
)
