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

// Package extract turns free-form text into calendar events.
//
// Extraction is a strategy behind the Extractor interface. RuleExtractor
// is the local heuristic implementation: an ordered table of independent
// rules, each of which appends one event when its triggers appear in the
// text. Other strategies, such as the remote agent connector, implement
// the same interface.
package extract

import "context"

// Category classifies an extracted event.
type Category string

const (
	CategoryEvent    Category = "event"
	CategoryDeadline Category = "deadline"
	CategoryMeeting  Category = "meeting"
)

// ParsedEvent is one event found in text. Confidence is a heuristic score
// in [0,1], not a calibrated probability.
type ParsedEvent struct {
	Title       string   `json:"title"`
	Date        string   `json:"date,omitempty"`
	Time        string   `json:"time,omitempty"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`
	Attendees   []string `json:"attendees"`
	Confidence  float64  `json:"confidence"`
}

// Extractor finds events in text. Finding none is not an error: the
// result is an empty slice.
type Extractor interface {
	ExtractEvents(ctx context.Context, text string) ([]ParsedEvent, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, text string) ([]ParsedEvent, error)

// ExtractEvents calls f.
func (f ExtractorFunc) ExtractEvents(ctx context.Context, text string) ([]ParsedEvent, error) {
	return f(ctx, text)
}
