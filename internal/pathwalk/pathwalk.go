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

// Package pathwalk resolves slash-separated paths, absolute or relative to
// a caller-supplied current directory, to the containing directory and
// final path component, the way the original kernel's parse_path walked a
// path one dir_lookup at a time.
package pathwalk

import (
	"fmt"
	"strings"

	"github.com/pintosfs/filesys/internal/directory"
	"github.com/pintosfs/filesys/internal/inode"
)

// Resolve walks path, returning the open directory that would contain its
// final component and that component's name. A trailing empty name (path
// is "/", or only slashes) means path itself names the root directory,
// which is returned open with an empty leaf. An empty path is an error.
//
// path is absolute if it begins with "/", in which case root is opened;
// otherwise resolution starts from cwd (cwd is reopened, not consumed).
func Resolve(im *inode.Manager, root *directory.Directory, cwd *directory.Directory, path string) (dir *directory.Directory, leaf string, err error) {
	if path == "" {
		return nil, "", fmt.Errorf("pathwalk: empty path")
	}

	parts := strings.Split(path, "/")
	var components []string
	for _, p := range parts {
		if p != "" {
			components = append(components, p)
		}
	}

	var cur *directory.Directory
	if strings.HasPrefix(path, "/") {
		cur = root.Reopen()
		if len(components) == 0 {
			return cur, "", nil
		}
	} else {
		if cwd == nil {
			cur = root.Reopen()
		} else {
			cur = cwd.Reopen()
		}
		if len(components) == 0 {
			return nil, "", fmt.Errorf("pathwalk: empty relative path")
		}
	}

	for i := 0; i < len(components)-1; i++ {
		sector, ok := cur.Lookup(components[i])
		if !ok {
			cur.Close()
			return nil, "", fmt.Errorf("pathwalk: %q not found", components[i])
		}
		child := directory.Open(im, sector)
		if !im.IsDir(child.Inode()) {
			child.Close()
			cur.Close()
			return nil, "", fmt.Errorf("pathwalk: %q is not a directory", components[i])
		}
		cur.Close()
		cur = child
	}

	return cur, components[len(components)-1], nil
}
