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
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/remoteagent"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	// Path defaults to --config.
	Path string `arg:"" optional:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (with defaults applied and env vars resolved)."`
	Strict      bool   `help:"Reject unknown keys."`
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	file := c.Path
	if file == "" {
		file = cli.Config
	}
	if file == "" {
		return fmt.Errorf("a configuration file is required")
	}

	var opts []config.LoaderOption
	if c.Strict {
		opts = append(opts, config.WithStrict())
	}
	cfg, loader, err := config.LoadConfigFile(context.Background(), file, opts...)
	if err != nil {
		return printLoadError(c.Format, file, err)
	}
	defer loader.Close()

	warnings := configWarnings(cfg)

	if c.PrintConfig {
		return printExpandedConfig(c.Format, file, cfg)
	}
	printSuccess(c.Format, file, warnings)
	return nil
}

// configWarnings reports settings that are valid but will not behave as
// the author likely intended.
func configWarnings(cfg *config.Config) []ValidationError {
	var out []ValidationError
	if cfg.AI.Mode == config.AIModeRemote {
		if err := remoteagent.CheckEndpoint(cfg.Agent.URL); err != nil {
			out = append(out, ValidationError{
				Type:    "agent",
				Message: fmt.Sprintf("remote mode will run on the local fallback: %v", err),
			})
		}
	}
	if !cfg.RateLimiting.IsEnabled() {
		out = append(out, ValidationError{Type: "rate_limiting", Message: "rate limiting is disabled"})
	}
	return out
}

func printLoadError(format, file string, err error) error {
	switch format {
	case "json":
		printJSONResult(false, file, []ValidationError{{Type: "load", Message: err.Error()}})
	case "verbose":
		fmt.Fprintf(os.Stderr, "Configuration Load Error\n")
		fmt.Fprintf(os.Stderr, "========================\n\n")
		fmt.Fprintf(os.Stderr, "File:    %s\n", file)
		fmt.Fprintf(os.Stderr, "Error:   %s\n", err.Error())
	default: // compact
		fmt.Fprintf(os.Stderr, "%s: load error: %s\n", file, err.Error())
	}
	return fmt.Errorf("config load failed")
}

func printSuccess(format, file string, warnings []ValidationError) {
	switch format {
	case "json":
		printJSONResult(true, file, warnings)
	case "verbose":
		fmt.Fprintf(os.Stdout, "Configuration Validation Successful\n")
		fmt.Fprintf(os.Stdout, "===================================\n\n")
		fmt.Fprintf(os.Stdout, "File:   %s\n", file)
		fmt.Fprintf(os.Stdout, "Status: OK Valid\n")
		for _, w := range warnings {
			fmt.Fprintf(os.Stdout, "Warning (%s): %s\n", w.Type, w.Message)
		}
	default: // compact
		fmt.Fprintf(os.Stdout, "%s: valid\n", file)
		for _, w := range warnings {
			fmt.Fprintf(os.Stdout, "%s: warning: %s\n", file, w.Message)
		}
	}
}

func printExpandedConfig(format, file string, cfg *config.Config) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
	default:
		fmt.Fprintf(os.Stdout, "# Expanded Configuration from: %s\n", file)
		fmt.Fprintf(os.Stdout, "# (defaults applied, env vars resolved)\n\n")

		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as YAML: %w", err)
		}
		encoder.Close()
	}
	return nil
}

type jsonOutput struct {
	Valid    bool              `json:"valid"`
	File     string            `json:"file"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []ValidationError `json:"warnings,omitempty"`
}

func printJSONResult(valid bool, file string, issues []ValidationError) {
	output := jsonOutput{Valid: valid, File: file}
	if valid {
		output.Warnings = issues
	} else {
		output.Errors = issues
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
