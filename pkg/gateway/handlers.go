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
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jbuican14/parentPal-06-16/pkg/extract"
)

const summaryLength = 200

var (
	reminderIntent = regexp.MustCompile(`(?i)\b(?:remind|reminder|reminders|don't forget)\b`)
	scheduleIntent = regexp.MustCompile(`(?i)\b(?:schedule|calendar|today|tomorrow|this week|next week|upcoming|agenda|busy|free)\b`)
	helpIntent     = regexp.MustCompile(`(?i)\b(?:help|what can you do|how do i)\b`)
)

func payloadError(op Operation, in Input) error {
	return fmt.Errorf("%w: %T for %s", ErrInvalidPayload, in, op)
}

func (g *Gateway) handleParse(ctx context.Context, in Input) (any, error) {
	req, ok := in.(ParseRequest)
	if !ok {
		return nil, payloadError(OpParseEvents, in)
	}
	events, err := g.extractor.ExtractEvents(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	return ParseResponse{Events: events}, nil
}

func (g *Gateway) handleChat(ctx context.Context, in Input) (any, error) {
	req, ok := in.(ChatRequest)
	if !ok {
		return nil, payloadError(OpChat, in)
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidPayload)
	}

	events, err := g.extractor.ExtractEvents(ctx, msg)
	if err != nil {
		return nil, err
	}

	resp := ChatResponse{CalendarConnected: g.calendar()}
	switch {
	case len(events) > 0:
		resp.Intent = "add_event"
		resp.Events = events
		resp.Reply = fmt.Sprintf("I found %s: %s.", plural(len(events), "event", "events"), describeEvents(events))
		if resp.CalendarConnected {
			resp.Reply += " Want me to add them to your calendar?"
		} else {
			resp.Reply += " Connect your calendar to sync them automatically."
		}
	case reminderIntent.MatchString(msg):
		resp.Intent = "reminder"
		resp.Reply = "Tell me what to remind you about and when, for example \"Remind me about picture day next Monday\"."
	case scheduleIntent.MatchString(msg):
		resp.Intent = "schedule"
		if resp.CalendarConnected {
			resp.Reply = "Your calendar is connected. Open the dashboard to see this week's events, or paste a school email and I'll add what's in it."
		} else {
			resp.Reply = "Connect your calendar so I can check your schedule. In the meantime, paste an email or newsletter and I'll pull out the events."
		}
	case helpIntent.MatchString(msg):
		resp.Intent = "help"
		resp.Reply = "I can read school emails, newsletters, voice notes and documents and turn them into calendar events. I can also suggest reminders and spot scheduling conflicts."
	default:
		resp.Intent = "general"
		resp.Reply = "I'm here to help organize your family's schedule. Paste an email or describe an event and I'll take care of the details."
	}
	return resp, nil
}

func (g *Gateway) handleAnalyze(ctx context.Context, in Input) (any, error) {
	req, ok := in.(AnalyzeRequest)
	if !ok {
		return nil, payloadError(OpAnalyzeDocument, in)
	}
	events, err := g.extractor.ExtractEvents(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	summary := summarize(req.Content)
	if len(events) == 0 {
		summary = strings.TrimSpace(summary + " No events were found.")
	} else {
		summary = strings.TrimSpace(fmt.Sprintf("%s Found %s: %s.", summary,
			plural(len(events), "event", "events"), describeEvents(events)))
	}

	return DocumentAnalysis{
		Name:      req.Name,
		Summary:   summary,
		WordCount: len(strings.Fields(req.Content)),
		Events:    events,
	}, nil
}

func (g *Gateway) handleSuggestions(_ context.Context, in Input) (any, error) {
	req, ok := in.(SuggestionsRequest)
	if !ok {
		return nil, payloadError(OpSuggestions, in)
	}
	return SuggestionsResponse{Suggestions: suggest(req.Events)}, nil
}

// suggest derives tips per event, then one per pair of events sharing a
// date and time.
func suggest(events []extract.ParsedEvent) []Suggestion {
	out := []Suggestion{}
	for _, ev := range events {
		when := ""
		if ev.Date != "" {
			when = " " + ev.Date
		}
		switch {
		case ev.Category == extract.CategoryDeadline:
			out = append(out, Suggestion{
				Title:       "Set a reminder for " + ev.Title,
				Description: "Add a reminder two days before the deadline" + on(ev.Date) + ".",
				Kind:        "reminder",
			})
		case ev.Category == extract.CategoryMeeting:
			out = append(out, Suggestion{
				Title:       "Prepare for " + ev.Title,
				Description: "Write down questions and paperwork to bring" + when + ".",
				Kind:        "prepare",
			})
		case ev.Location != "":
			out = append(out, Suggestion{
				Title:       "Plan travel to " + ev.Location,
				Description: "Leave 15 minutes early for " + ev.Title + ".",
				Kind:        "travel",
			})
		default:
			out = append(out, Suggestion{
				Title:       "Add " + ev.Title + " to the family calendar",
				Description: "Share it with everyone who needs to be there.",
				Kind:        "calendar",
			})
		}
	}

	for i := range events {
		for j := i + 1; j < len(events); j++ {
			a, b := events[i], events[j]
			if a.Date == "" || a.Time == "" || !strings.EqualFold(a.Date, b.Date) || a.Time != b.Time {
				continue
			}
			out = append(out, Suggestion{
				Title:       "Schedule conflict",
				Description: fmt.Sprintf("%s and %s are both %s at %s.", a.Title, b.Title, a.Date, a.Time),
				Kind:        "conflict",
			})
		}
	}
	return out
}

func on(date string) string {
	if date == "" {
		return ""
	}
	return " (" + date + ")"
}

func describeEvents(events []extract.ParsedEvent) string {
	parts := make([]string, len(events))
	for i, ev := range events {
		s := ev.Title
		if ev.Date != "" {
			s += " " + ev.Date
		}
		if ev.Time != "" {
			s += " at " + ev.Time
		}
		parts[i] = s
	}
	return strings.Join(parts, "; ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// summarize returns the leading text of content cut at a word boundary.
func summarize(content string) string {
	text := strings.Join(strings.Fields(content), " ")
	if len(text) <= summaryLength {
		return text
	}
	cut := strings.LastIndexByte(text[:summaryLength], ' ')
	if cut <= 0 {
		cut = summaryLength
	}
	return text[:cut] + "..."
}
