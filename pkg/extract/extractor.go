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

package extract

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RuleExtractor evaluates its rules in registration order. Rules are
// independent: every matching rule contributes one event.
type RuleExtractor struct {
	mu    sync.RWMutex
	rules []*Rule

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a RuleExtractor.
type Option func(*options)

type options struct {
	rng      *rand.Rand
	builtins bool
}

// WithRand sets the source used for confidence jitter.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithoutBuiltins starts from an empty rule table.
func WithoutBuiltins() Option {
	return func(o *options) {
		o.builtins = false
	}
}

// NewRuleExtractor creates an extractor loaded with the built-in rules.
func NewRuleExtractor(opts ...Option) *RuleExtractor {
	o := options{builtins: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &RuleExtractor{rng: o.rng}
	if o.builtins {
		for _, r := range BuiltinRules() {
			if err := e.Register(r); err != nil {
				// Built-in rules are static; failing here is a programming error.
				panic(err)
			}
		}
	}
	return e
}

// Register appends a rule to the table.
func (e *RuleExtractor) Register(rule Rule) error {
	if err := rule.compile(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, &rule)
	return nil
}

// Rules returns the registered rule names in evaluation order.
func (e *RuleExtractor) Rules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// ExtractEvents applies every rule to text.
func (e *RuleExtractor) ExtractEvents(ctx context.Context, text string) ([]ParsedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	rules := append([]*Rule(nil), e.rules...)
	e.mu.RUnlock()

	events := []ParsedEvent{}
	var whole *Details
	for _, r := range rules {
		if !r.Matches(text) {
			continue
		}
		if whole == nil {
			d := DetectDetails(text)
			whole = &d
		}
		events = append(events, e.build(r, text, *whole))
	}

	slog.Debug("Extracted events", "count", len(events), "chars", len(text))
	return events, nil
}

func (e *RuleExtractor) build(r *Rule, text string, whole Details) ParsedEvent {
	sentence := r.focus(text)
	d := DetectDetails(sentence).merge(whole)

	ev := r.Template
	ev.Attendees = append([]string{}, r.Template.Attendees...)
	if d.Date != "" {
		ev.Date = d.Date
	}
	if d.Time != "" {
		ev.Time = d.Time
	}
	if d.Location != "" {
		ev.Location = d.Location
	}
	if len(d.Attendees) > 0 {
		ev.Attendees = append([]string{}, d.Attendees...)
	}
	if r.Enrich != nil {
		r.Enrich(&ev, sentence, d)
	}

	ev.Confidence = e.confidence(ev.Confidence, r.Jitter)
	return ev
}

func (e *RuleExtractor) confidence(base, jitter float64) float64 {
	c := base
	if jitter > 0 {
		e.rngMu.Lock()
		c -= e.rng.Float64() * jitter
		e.rngMu.Unlock()
	}
	c = math.Round(c*100) / 100
	return math.Min(1, math.Max(0, c))
}

var _ Extractor = (*RuleExtractor)(nil)
