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

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/storage"
	"github.com/jbuican14/parentPal-06-16/pkg/usage"
)

// UsageCmd shows the persisted token balance.
type UsageCmd struct {
	History int  `help:"Show the most recent usage records." default:"0"`
	Stats   bool `help:"Show usage statistics."`
	Reset   bool `help:"Reset the balance and advance the reset date."`
	JSON    bool `help:"Print as JSON."`
}

type usageOutput struct {
	Balance usage.Balance  `json:"balance"`
	History []usage.Record `json:"history,omitempty"`
	Stats   *usage.Stats   `json:"stats,omitempty"`
}

func (c *UsageCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	pool := config.NewDBPool()
	defer pool.Close()
	store, err := storage.NewFromConfig(ctx, cfg, pool)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	ledger := usage.NewLedger(ctx, store, usage.OptionsFromConfig(&cfg.Usage))
	if c.Reset {
		if err := ledger.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset balance: %w", err)
		}
	}

	out := usageOutput{Balance: ledger.Balance()}
	if c.History > 0 {
		out.History = ledger.History(c.History)
	}
	if c.Stats {
		stats := ledger.Stats()
		out.Stats = &stats
	}
	if c.JSON {
		return printJSON(out)
	}

	b := out.Balance
	fmt.Printf("Tokens used:      %d / %d\n", b.Used, b.Limit)
	fmt.Printf("Tokens available: %d\n", b.Available)
	fmt.Printf("Resets:           %s\n", b.ResetDate.Format("2006-01-02 15:04"))

	if len(out.History) > 0 {
		fmt.Println("\nRecent usage:")
		for _, rec := range out.History {
			fmt.Printf("  %s  %-18s %6d\n", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Operation, rec.TokensUsed)
		}
	}
	if out.Stats != nil {
		fmt.Printf("\nTotal used:       %d\n", out.Stats.TotalUsed)
		fmt.Printf("Average per day:  %.1f\n", out.Stats.AveragePerDay)
		for _, op := range out.Stats.TopOperations {
			fmt.Printf("  %-18s %6d tokens in %d requests\n", op.Operation, op.Tokens, op.Count)
		}
	}
	return nil
}
