// Copyright 2025 Kadir Pekel
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

import (
	"os"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
)

// initLogger configures the default logger.
// Priority: CLI flags > env vars > config file > defaults
func (c *CLI) initLogger(cfg *config.LoggerConfig) error {
	var level, file, format string
	if cfg != nil {
		level, file, format = cfg.Level, cfg.File, cfg.Format
	}

	level = pick(c.LogLevel, os.Getenv(LogLevelEnvVar), level)
	file = pick(c.LogFile, os.Getenv(LogFileEnvVar), file)
	format = pick(c.LogFormat, os.Getenv(LogFormatEnvVar), format)

	cleanup, err := logger.Setup(level, file, format)
	if err != nil {
		return err
	}
	c.closeLog()
	c.logCleanup = cleanup
	return nil
}

func (c *CLI) closeLog() {
	if c.logCleanup != nil {
		c.logCleanup()
		c.logCleanup = nil
	}
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
