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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/runtime"
)

// ParseCmd extracts events from text, a voice transcript or a document.
type ParseCmd struct {
	Text  string `arg:"" optional:"" help:"Text to parse. Reads stdin when empty and no file is given."`
	File  string `short:"f" help:"Document to parse (pdf, docx, xlsx, html, txt, ...)." type:"existingfile"`
	Voice bool   `help:"Treat the text as a voice transcript."`
	JSON  bool   `help:"Print the full result as JSON."`

	Timeout time.Duration `help:"Give up after this long." default:"30s"`
}

func (c *ParseCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	if conn := rt.Connector(); conn != nil {
		// Fall through to local processing when the agent is unreachable.
		_ = conn.Connect(ctx)
	}

	result, err := c.process(ctx, rt)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(result)
	}
	printResult(result)
	return nil
}

func (c *ParseCmd) process(ctx context.Context, rt *runtime.Runtime) (*gateway.ProcessResult, error) {
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return nil, err
		}
		doc, err := rt.Documents().Parse(ctx, filepath.Base(c.File), data)
		if err != nil {
			return nil, err
		}
		return rt.Processor().ProcessDocument(ctx, doc.Name, doc.Content)
	}

	text := c.Text
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to parse: pass text, --file or stdin")
	}

	if c.Voice {
		return rt.Processor().ProcessVoice(ctx, text)
	}
	return rt.Processor().ProcessText(ctx, text)
}

func printResult(res *gateway.ProcessResult) {
	if res.Summary != "" {
		fmt.Println(res.Summary)
		fmt.Println()
	}
	if len(res.Events) == 0 {
		fmt.Println("No events found.")
	}
	for _, ev := range res.Events {
		fmt.Printf("- %s", ev.Title)
		if ev.Date != "" {
			fmt.Printf(", %s", ev.Date)
		}
		if ev.Time != "" {
			fmt.Printf(" at %s", ev.Time)
		}
		if ev.Location != "" {
			fmt.Printf(" (%s)", ev.Location)
		}
		fmt.Printf("  [%s, %.0f%%]\n", ev.Category, ev.Confidence*100)
	}

	source := res.Source
	if res.Fallback {
		source += ", fallback"
	}
	if res.Cached {
		source += ", cached"
	}
	fmt.Printf("\nsource: %s, tokens: %d\n", source, res.TokensUsed)
}
