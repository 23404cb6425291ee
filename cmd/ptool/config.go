// Copyright 2024 The Pagekit Authors.
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

package main

import "github.com/BurntSushi/toml"

// config is the tool configuration. Every field can be overridden on
// the command line.
type config struct {
	// Image is the default machine-image file.
	Image string `toml:"image"`

	// LogLevel is one of the logrus level names.
	LogLevel string `toml:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `toml:"log_format"`
}

// loadConfig reads the TOML configuration at path, or returns defaults
// when path is empty.
func loadConfig(path string) (*config, error) {
	c := &config{
		LogLevel:  "info",
		LogFormat: "text",
	}
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, err
	}
	return c, nil
}
