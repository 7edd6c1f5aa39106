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

package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/storage"
)

// Options configures a Ledger. Zero values take the package defaults.
type Options struct {
	DefaultLimit int64
	ResetPeriod  time.Duration
	HistoryLimit int
	Now          func() time.Time
}

func (o *Options) setDefaults() {
	if o.DefaultLimit == 0 {
		o.DefaultLimit = DefaultLimit
	}
	if o.ResetPeriod <= 0 {
		o.ResetPeriod = DefaultResetPeriod
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// OptionsFromConfig maps the usage section to ledger options.
func OptionsFromConfig(cfg *config.UsageConfig) Options {
	return Options{
		DefaultLimit: cfg.DefaultLimit,
		ResetPeriod:  cfg.ResetPeriod,
		HistoryLimit: cfg.HistoryLimit,
	}
}

// Ledger tracks token consumption. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	store   storage.Store
	opts    Options
	balance Balance
	history []Record // oldest first
}

// NewLedger loads the ledger from store. Missing, unreadable or corrupt
// state is replaced with a default balance and empty history.
func NewLedger(ctx context.Context, store storage.Store, opts Options) *Ledger {
	opts.setDefaults()
	l := &Ledger{store: store, opts: opts}
	l.load(ctx)
	return l
}

func (l *Ledger) defaults() {
	l.balance = Balance{
		Available: l.opts.DefaultLimit,
		Limit:     l.opts.DefaultLimit,
		ResetDate: l.opts.Now().Add(l.opts.ResetPeriod),
	}
	l.history = nil
}

func (l *Ledger) load(ctx context.Context) {
	l.defaults()
	if l.store == nil {
		return
	}

	data, err := l.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Warn("Token usage state unreadable, starting fresh", "error", err)
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("Token usage state corrupt, starting fresh", "error", err)
		return
	}
	if err := snap.validate(); err != nil {
		slog.Warn("Token usage state invalid, starting fresh", "error", err)
		return
	}

	l.balance = snap.Balance
	l.balance.Available = available(l.balance.Limit, l.balance.Used)
	l.history = snap.History
	l.trim()
}

func (s *snapshot) validate() error {
	if s.Balance.Limit < 0 || s.Balance.Used < 0 {
		return fmt.Errorf("negative balance")
	}
	for _, r := range s.History {
		if r.TokensUsed < 0 {
			return fmt.Errorf("negative history entry for %s", r.Operation)
		}
	}
	return nil
}

func available(limit, used int64) int64 {
	return max(0, limit-used)
}

func (l *Ledger) trim() {
	if over := len(l.history) - l.opts.HistoryLimit; over > 0 {
		l.history = append([]Record(nil), l.history[over:]...)
	}
}

// persist writes the ledger. Callers hold l.mu.
func (l *Ledger) persist(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	data, err := json.Marshal(snapshot{Balance: l.balance, History: l.history})
	if err != nil {
		return fmt.Errorf("failed to encode token usage: %w", err)
	}
	if err := l.store.Put(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("failed to persist token usage: %w", err)
	}
	return nil
}

// RecordUsage appends rec to the history, charges its tokens and persists
// the ledger. A zero Timestamp is set to now.
func (l *Ledger) RecordUsage(ctx context.Context, rec Record) error {
	if rec.TokensUsed < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTokens, rec.TokensUsed)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.opts.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, rec)
	l.trim()
	l.balance.Used += rec.TokensUsed
	l.balance.Available = available(l.balance.Limit, l.balance.Used)

	slog.Debug("Recorded token usage", "operation", rec.Operation, "tokens", rec.TokensUsed, "available", l.balance.Available)
	return l.persist(ctx)
}

// Balance returns the current balance.
func (l *Ledger) Balance() Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// CanAfford reports whether tokens fit in the remaining balance.
func (l *Ledger) CanAfford(tokens int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return tokens <= l.balance.Available
}

// Check returns an *InsufficientBalanceError when tokens do not fit.
func (l *Ledger) Check(tokens int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tokens > l.balance.Available {
		return &InsufficientBalanceError{Required: tokens, Available: l.balance.Available}
	}
	return nil
}

// History returns up to limit records, most recent first. A non-positive
// limit returns the whole history.
func (l *Ledger) History(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(l.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.history[i])
	}
	return out
}

// Stats aggregates the retained history.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{TopOperations: []OperationStat{}}
	if len(l.history) == 0 {
		return stats
	}

	byOp := make(map[string]*OperationStat)
	var order []string
	earliest := l.history[0].Timestamp
	for _, r := range l.history {
		stats.TotalUsed += r.TokensUsed
		if r.Timestamp.Before(earliest) {
			earliest = r.Timestamp
		}
		s, ok := byOp[r.Operation]
		if !ok {
			s = &OperationStat{Operation: r.Operation}
			byOp[r.Operation] = s
			order = append(order, r.Operation)
		}
		s.Tokens += r.TokensUsed
		s.Count++
	}

	ops := make([]OperationStat, 0, len(order))
	for _, name := range order {
		ops = append(ops, *byOp[name])
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Tokens > ops[j].Tokens })
	if len(ops) > topOperations {
		ops = ops[:topOperations]
	}
	stats.TopOperations = ops

	days := math.Ceil(l.opts.Now().Sub(earliest).Hours() / 24)
	stats.AveragePerDay = float64(stats.TotalUsed) / math.Max(1, days)
	return stats
}

// Reset zeroes the used tokens and advances the reset date by one period,
// or as many periods as needed to land in the future. History is kept.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
	return l.persist(ctx)
}

func (l *Ledger) reset() {
	now := l.opts.Now()
	next := l.balance.ResetDate.Add(l.opts.ResetPeriod)
	for !next.After(now) {
		next = next.Add(l.opts.ResetPeriod)
	}
	l.balance.Used = 0
	l.balance.Available = l.balance.Limit
	l.balance.ResetDate = next
	slog.Info("Token balance reset", "limit", l.balance.Limit, "next_reset", next)
}

// ResetIfDue resets the balance when the reset date has passed.
func (l *Ledger) ResetIfDue(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.opts.Now().Before(l.balance.ResetDate) {
		return false, nil
	}
	l.reset()
	return true, l.persist(ctx)
}
