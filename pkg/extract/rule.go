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
	"fmt"
	"regexp"
	"strings"
)

// Rule appends one event when its triggers appear in the text.
type Rule struct {
	// Name identifies the rule.
	Name string

	// Triggers are groups of phrases. Every group must have at least one
	// phrase present; phrases match whole words, ignoring case.
	Triggers [][]string

	// Template is the event emitted on a match. Detected date, time,
	// location and attendees replace its fields.
	Template ParsedEvent

	// Jitter lowers the template confidence by a random amount up to Jitter.
	Jitter float64

	// Enrich adjusts the event after detected details are applied.
	// sentence is the part of the text that matched.
	Enrich func(ev *ParsedEvent, sentence string, d Details)

	patterns [][]*regexp.Regexp
}

func (r *Rule) compile() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Triggers) == 0 {
		return fmt.Errorf("rule %s: at least one trigger group is required", r.Name)
	}
	if r.Template.Confidence < 0 || r.Template.Confidence > 1 {
		return fmt.Errorf("rule %s: confidence must be in [0,1]", r.Name)
	}
	if r.Jitter < 0 || r.Jitter > r.Template.Confidence {
		return fmt.Errorf("rule %s: jitter must be in [0,confidence]", r.Name)
	}

	r.patterns = make([][]*regexp.Regexp, len(r.Triggers))
	for i, group := range r.Triggers {
		if len(group) == 0 {
			return fmt.Errorf("rule %s: trigger group %d is empty", r.Name, i)
		}
		for _, phrase := range group {
			words := strings.Fields(phrase)
			for j, w := range words {
				words[j] = regexp.QuoteMeta(w)
			}
			re, err := regexp.Compile(`(?i)\b` + strings.Join(words, `[\s-]+`) + `\b`)
			if err != nil {
				return fmt.Errorf("rule %s: trigger %q: %w", r.Name, phrase, err)
			}
			r.patterns[i] = append(r.patterns[i], re)
		}
	}
	return nil
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Matches reports whether every trigger group appears in text.
func (r *Rule) Matches(text string) bool {
	for _, group := range r.patterns {
		if !matchesAny(group, text) {
			return false
		}
	}
	return len(r.patterns) > 0
}

// focus returns the sentence the event is about: the first sentence that
// matches the whole rule, else the first one holding the primary trigger,
// else the full text.
func (r *Rule) focus(text string) string {
	parts := sentences(text)
	for _, s := range parts {
		if r.Matches(s) {
			return s
		}
	}
	for _, s := range parts {
		if matchesAny(r.patterns[0], s) {
			return s
		}
	}
	return text
}
