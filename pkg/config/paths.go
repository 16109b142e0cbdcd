// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package config loads gateway configuration from file, environment and
// flags, and locates the skyloom data directory.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirEnv overrides the data directory.
const DataDirEnv = "SKYLOOM_DATA_DIR"

// DataDir returns the skyloom data directory.
//
// Priority:
// 1. SKYLOOM_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.skyloom (default)
//
// The returned path is absolute. A leading ~ is expanded to the user's home
// directory and relative paths are resolved against the working directory.
//
// Examples:
//
//	SKYLOOM_DATA_DIR=/srv/skyloom   -> /srv/skyloom
//	SKYLOOM_DATA_DIR=~/gw           -> /home/user/gw
//	SKYLOOM_DATA_DIR not set        -> /home/user/.skyloom
//
// Note: reads os.Getenv directly, since it runs before the config file that
// it locates has been loaded.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return expandPath(dir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".skyloom"
	}
	return filepath.Join(homeDir, ".skyloom")
}

// SubDir returns a directory inside the data directory.
func SubDir(name string) string {
	return filepath.Join(DataDir(), name)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
