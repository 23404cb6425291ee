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

// ptool builds the page tables described by a machine-image file and
// lets you translate, dump, and verify the resulting mappings without
// booting anything.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "", "path to a TOML tool configuration")
	imagePath  = flag.String("image", "", "path to the machine-image YAML, overrides the configuration")
	logLevel   = flag.String("log-level", "", "log level: debug, info, warning, error")
	logFormat  = flag.String("log-format", "", "log format: text or json")
)

// fatalf logs and exits. Used for setup failures before any subcommand
// runs.
func fatalf(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
	os.Exit(128)
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(translateCmd), "")
	subcommands.Register(new(dumpCmd), "")
	subcommands.Register(new(checkCmd), "")
	subcommands.Register(new(versionCmd), "")

	flag.Parse()

	conf, err := loadConfig(*configPath)
	if err != nil {
		fatalf("loading configuration: %v", err)
	}
	if *imagePath != "" {
		conf.Image = *imagePath
	}
	if *logLevel != "" {
		conf.LogLevel = *logLevel
	}
	if *logFormat != "" {
		conf.LogFormat = *logFormat
	}

	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		fatalf("invalid log level %q: %v", conf.LogLevel, err)
	}
	logrus.SetLevel(level)
	switch conf.LogFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		fatalf("invalid log format %q, must be 'text' or 'json'", conf.LogFormat)
	}

	logrus.WithFields(logrus.Fields{
		"image": conf.Image,
	}).Debug("ptool starting")

	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}

// buildFromConfig loads the configured image and constructs its address
// space. Shared by every subcommand.
func buildFromConfig(conf *config) (*machine, error) {
	if conf.Image == "" {
		return nil, fmt.Errorf("no image given; use -image or the configuration file")
	}
	img, err := loadImage(conf.Image)
	if err != nil {
		return nil, fmt.Errorf("loading image %s: %w", conf.Image, err)
	}
	m, err := img.Build()
	if err != nil {
		return nil, fmt.Errorf("building image %s: %w", conf.Image, err)
	}
	return m, nil
}
