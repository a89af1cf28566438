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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration for a filesys instance, bound from flags,
// a YAML file, and environment variables by cmd/root.go.
type Config struct {
	Device DeviceConfig `yaml:"device"`

	Cache CacheConfig `yaml:"cache"`

	Debug DebugConfig `yaml:"debug"`

	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig describes the backing block device for the filesystem.
type DeviceConfig struct {
	// Path to the disk-image file backing the device.
	Path string `yaml:"path"`

	// Sectors is the device size, used only by mkfs when formatting a fresh
	// image that does not exist yet.
	Sectors int `yaml:"sectors"`
}

// CacheConfig controls the buffer cache and its read-ahead worker.
type CacheConfig struct {
	// Frames is the number of fixed-size buffer cache frames. Production
	// always uses DefaultCacheFrames; tests shrink it to provoke eviction.
	Frames int `yaml:"frames"`

	// ReadAhead enables the async successor-sector prefetch worker.
	ReadAhead bool `yaml:"read-ahead"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogLockContention bool `yaml:"log-lock-contention"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	FilePath string `yaml:"file-path"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

type LogRotateConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("device-path", "", "", "Path to the disk-image file backing the filesystem.")

	err = viper.BindPFlag("device.path", flagSet.Lookup("device-path"))
	if err != nil {
		return err
	}

	flagSet.IntP("device-sectors", "", DefaultDeviceSectors, "Device size in sectors, used only by mkfs.")

	err = viper.BindPFlag("device.sectors", flagSet.Lookup("device-sectors"))
	if err != nil {
		return err
	}

	flagSet.IntP("cache-frames", "", DefaultCacheFrames, "Number of buffer cache frames.")

	err = viper.BindPFlag("cache.frames", flagSet.Lookup("cache-frames"))
	if err != nil {
		return err
	}

	flagSet.BoolP("cache-read-ahead", "", true, "Enable asynchronous read-ahead of successor sectors.")

	err = viper.BindPFlag("cache.read-ahead", flagSet.Lookup("cache-read-ahead"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")

	err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug-lock-contention", "", false, "Log when a lock is held longer than expected.")

	err = viper.BindPFlag("debug.log-lock-contention", flagSet.Lookup("debug-lock-contention"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file. Empty logs to stderr.")

	err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	return nil
}
