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
	"fmt"
	"os"

	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/filesys"
)

// openExisting mounts the already-formatted filesystem named by
// Config.Device.Path.
func openExisting() (*filesys.Filesystem, error) {
	if _, err := os.Stat(Config.Device.Path); err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}
	dev, err := blockdevice.OpenFile(Config.Device.Path, blockdevice.SectorID(Config.Device.Sectors))
	if err != nil {
		return nil, fmt.Errorf("opening device: %w", err)
	}
	return filesys.Open(dev, Config.Cache, Config.Debug), nil
}
