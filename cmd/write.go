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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var writeFromStdin bool

var writeCmd = &cobra.Command{
	Use:   "write <path> [content]",
	Short: "Write stdin, or the given content argument, to a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var content []byte
		var err error
		switch {
		case len(args) == 2:
			content = []byte(args[1])
		case writeFromStdin || len(args) == 1:
			content, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
		}

		fs, err := openExisting()
		if err != nil {
			return err
		}
		defer fs.Done()

		ino, err := fs.Open(args[0])
		if err != nil {
			if createErr := fs.Create(args[0], 0); createErr != nil {
				return errors.Join(err, createErr)
			}
			ino, err = fs.Open(args[0])
			if err != nil {
				return err
			}
		}
		defer fs.Close(ino)

		fs.Inodes().WriteAt(ino, content, 0)
		return nil
	},
}

func init() {
	writeCmd.Flags().BoolVar(&writeFromStdin, "stdin", false, "Read content from stdin")
}
