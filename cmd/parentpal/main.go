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

// Command parentpal is the CLI for the ParentPal processing core.
//
// Usage:
//
//	parentpal serve --config parentpal.yaml
//	parentpal agent --listen :8090
//	parentpal parse "Soccer practice Tuesday at 4pm"
//	parentpal usage --history 10
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	parentpal "github.com/jbuican14/parentPal-06-16"
	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`
	Agent    AgentCmd    `cmd:"" help:"Serve the remote agent protocol over WebSocket."`
	Parse    ParseCmd    `cmd:"" help:"Extract events from text or a document."`
	Usage    UsageCmd    `cmd:"" help:"Show or reset the token balance."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path" env:"PARENTPAL_CONFIG"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`

	logCleanup func()
}

// VersionCmd shows version information.
type VersionCmd struct {
	JSON bool `help:"Print version information as JSON."`
}

func (c *VersionCmd) Run() error {
	info := parentpal.GetVersion()
	if c.JSON {
		return printJSON(info)
	}
	fmt.Println(info.String())
	return nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("parentpal"),
		kong.Description("ParentPal - family scheduling processing core"),
		kong.UsageOnError(),
	)

	// Flags and environment first; commands that load a config apply its
	// logger section afterwards.
	if err := cli.initLogger(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cli.closeLog()

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
