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

package gateway

import (
	"encoding/json"
	"strings"

	"github.com/jbuican14/parentPal-06-16/pkg/extract"
)

// Operation names a gateway request type.
type Operation string

const (
	OpParseEvents     Operation = "parse_events"
	OpChat            Operation = "chat"
	OpAnalyzeDocument Operation = "analyze_document"
	OpSuggestions     Operation = "suggestions"
)

// Input is a request payload. InputText is the text billed for the request.
type Input interface {
	InputText() string
}

// ParseRequest asks for the events in free-form text.
type ParseRequest struct {
	Text string `json:"text"`
}

func (r ParseRequest) InputText() string { return r.Text }

// ChatRequest is one message to the assistant.
type ChatRequest struct {
	Message string `json:"message"`
}

func (r ChatRequest) InputText() string { return r.Message }

// AnalyzeRequest asks for a summary and the events of a document.
type AnalyzeRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (r AnalyzeRequest) InputText() string { return r.Content }

// SuggestionsRequest asks for scheduling suggestions about events.
type SuggestionsRequest struct {
	Events []extract.ParsedEvent `json:"events"`
}

func (r SuggestionsRequest) InputText() string {
	var sb strings.Builder
	for _, ev := range r.Events {
		sb.WriteString(ev.Title)
		sb.WriteByte(' ')
		sb.WriteString(ev.Description)
		sb.WriteByte(' ')
	}
	return sb.String()
}

// ParseResponse lists the events found in the text.
type ParseResponse struct {
	Events []extract.ParsedEvent `json:"events"`
}

// ChatResponse is the assistant reply.
type ChatResponse struct {
	Reply             string                `json:"reply"`
	Intent            string                `json:"intent"`
	CalendarConnected bool                  `json:"calendar_connected"`
	Events            []extract.ParsedEvent `json:"events,omitempty"`
}

// DocumentAnalysis summarizes a document.
type DocumentAnalysis struct {
	Name      string                `json:"name"`
	Summary   string                `json:"summary"`
	WordCount int                   `json:"word_count"`
	Events    []extract.ParsedEvent `json:"events"`
}

// Suggestion is one scheduling tip.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

// SuggestionsResponse lists the tips for a set of events.
type SuggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Result is the outcome of a gateway request. Data holds the JSON encoded
// handler output.
type Result struct {
	Operation  Operation       `json:"operation"`
	Data       json.RawMessage `json:"data"`
	Cached     bool            `json:"cached"`
	TokensUsed int64           `json:"tokens_used"`
}

// Response is a Result with Data decoded.
type Response[T any] struct {
	Operation  Operation `json:"operation"`
	Data       T         `json:"data"`
	Cached     bool      `json:"cached"`
	TokensUsed int64     `json:"tokens_used"`
}
