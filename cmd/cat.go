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

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's contents to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := openExisting()
		if err != nil {
			return err
		}
		defer fs.Done()

		ino, err := fs.Open(args[0])
		if err != nil {
			return err
		}
		defer fs.Close(ino)

		im := fs.Inodes()
		if im.IsDir(ino) {
			return fmt.Errorf("%q is a directory", args[0])
		}

		length := im.Length(ino)
		buf := make([]byte, length)
		n := im.ReadAt(ino, buf, 0)
		_, err = os.Stdout.Write(buf[:n])
		return err
	},
}
