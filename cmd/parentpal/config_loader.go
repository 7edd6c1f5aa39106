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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

const defaultConfigFile = "parentpal.yaml"

// loadConfig loads the config file named by --config, then parentpal.yaml
// in the working directory, then falls back to defaults. The loader is nil
// without a file. The config's logger section is applied.
func (c *CLI) loadConfig(ctx context.Context, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	path := c.Config
	if path == "" && fileExists(defaultConfigFile) {
		path = defaultConfigFile
	}

	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		slog.Debug("No config file, using defaults")
		return cfg, nil, c.initLogger(&cfg.Logger)
	}

	cfg, loader, err := config.LoadConfigFile(ctx, path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := c.initLogger(&cfg.Logger); err != nil {
		loader.Close()
		return nil, nil, err
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, loader, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
