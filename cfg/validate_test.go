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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Device:  DeviceConfig{Path: "disk.img", Sectors: 4096},
		Cache:   GetDefaultCacheConfig(),
		Logging: GetDefaultLoggingConfig(),
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfigRejectsEmptyDevicePath(t *testing.T) {
	c := validConfig()
	c.Device.Path = ""
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsNonPositiveSectors(t *testing.T) {
	c := validConfig()
	c.Device.Sectors = 0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsNonPositiveCacheFrames(t *testing.T) {
	c := validConfig()
	c.Cache.Frames = 0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsCacheFramesAboveCeiling(t *testing.T) {
	c := validConfig()
	c.Cache.Frames = 65
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsZeroMaxFileSize(t *testing.T) {
	c := validConfig()
	c.Logging.LogRotate.MaxFileSizeMb = 0
	assert.Error(t, ValidateConfig(c))
}

func TestValidateConfigRejectsNegativeBackupFileCount(t *testing.T) {
	c := validConfig()
	c.Logging.LogRotate.BackupFileCount = -1
	assert.Error(t, ValidateConfig(c))
}
