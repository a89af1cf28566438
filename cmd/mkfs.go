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

	"github.com/pintosfs/filesys/internal/blockdevice"
	"github.com/pintosfs/filesys/internal/filesys"
	"github.com/pintosfs/filesys/internal/logger"
	"github.com/spf13/cobra"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format a new disk image and root directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := blockdevice.OpenFile(Config.Device.Path, blockdevice.SectorID(Config.Device.Sectors))
		if err != nil {
			return fmt.Errorf("opening device: %w", err)
		}
		defer blockdevice.Close(dev)

		fs, err := filesys.Format(dev, Config.Cache, Config.Debug)
		if err != nil {
			return fmt.Errorf("formatting: %w", err)
		}
		defer fs.Done()

		logger.Infof("formatted %s (%d sectors), root directory at sector %d", Config.Device.Path, dev.NumSectors(), fs.RootSector())
		fmt.Printf("root directory sector: %d\n", fs.RootSector())
		return nil
	},
}
