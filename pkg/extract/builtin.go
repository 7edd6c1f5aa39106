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
	"regexp"
	"strings"
)

var (
	namedMuseum      = regexp.MustCompile(`\b((?:[A-Z][A-Za-z]+\s+){1,3}Museum)\b`)
	museumWord       = regexp.MustCompile(`(?i)\bmuseum\b`)
	recitalKind      = regexp.MustCompile(`(?i)\b([a-z]+)\s+recital\b`)
	birthdayOwner    = regexp.MustCompile(`\b([A-Z][a-z]+)'s\s+(?:\d+(?:st|nd|rd|th)\s+)?birthday\b`)
	soccerMatch      = regexp.MustCompile(`(?i)\b(?:game|match|tournament)\b`)
	dentalWord       = regexp.MustCompile(`(?i)\b(?:dentist|dental|orthodontist)\b`)
	permissionSlip   = regexp.MustCompile(`(?i)\bpermission[\s-]+slips?\b`)
	rsvpWord         = regexp.MustCompile(`(?i)\brsvp\b`)
	registrationWord = regexp.MustCompile(`(?i)\b(?:sign[\s-]+up|register|registration)\b`)
)

// notRecitalKind are words that precede "recital" without naming it.
var notRecitalKind = toSet("a", "an", "the", "his", "her", "their", "our", "your", "my", "its", "big", "first")

// BuiltinRules returns the default rule table in evaluation order.
func BuiltinRules() []Rule {
	return []Rule{
		{
			Name:     "field_trip",
			Triggers: [][]string{{"field trip", "class trip"}},
			Template: ParsedEvent{
				Title:       "Field Trip",
				Description: "School field trip. Check whether a permission slip and packed lunch are needed.",
				Category:    CategoryEvent,
				Confidence:  0.9,
			},
			Jitter: 0.05,
			Enrich: func(ev *ParsedEvent, sentence string, _ Details) {
				if !museumWord.MatchString(sentence) {
					return
				}
				ev.Title = "Museum Field Trip"
				if ev.Location == "" {
					ev.Location = "Museum"
					if m := namedMuseum.FindStringSubmatch(sentence); m != nil {
						ev.Location = m[1]
					}
				}
			},
		},
		{
			Name:     "parent_teacher_conference",
			Triggers: [][]string{{"conference", "conferences"}},
			Template: ParsedEvent{
				Title:       "Parent-Teacher Conference",
				Description: "Meeting with the teacher to discuss progress.",
				Location:    "School",
				Category:    CategoryMeeting,
				Confidence:  0.85,
			},
			Jitter: 0.05,
		},
		{
			Name:     "soccer",
			Triggers: [][]string{{"soccer"}},
			Template: ParsedEvent{
				Title:       "Soccer Practice",
				Description: "Bring cleats, shin guards and a water bottle.",
				Category:    CategoryEvent,
				Confidence:  0.8,
			},
			Jitter: 0.1,
			Enrich: func(ev *ParsedEvent, sentence string, _ Details) {
				if soccerMatch.MatchString(sentence) {
					ev.Title = "Soccer Game"
				}
			},
		},
		{
			Name:     "recital",
			Triggers: [][]string{{"recital", "recitals"}},
			Template: ParsedEvent{
				Title:       "Music Recital",
				Description: "Recital performance. Arrive early to warm up.",
				Category:    CategoryEvent,
				Confidence:  0.85,
			},
			Jitter: 0.1,
			Enrich: func(ev *ParsedEvent, sentence string, _ Details) {
				m := recitalKind.FindStringSubmatch(sentence)
				if m == nil || notRecitalKind[strings.ToLower(m[1])] {
					return
				}
				ev.Title = capitalize(strings.ToLower(m[1])) + " Recital"
			},
		},
		{
			Name:     "birthday_party",
			Triggers: [][]string{{"birthday"}},
			Template: ParsedEvent{
				Title:       "Birthday Party",
				Description: "Birthday celebration. Remember a gift.",
				Category:    CategoryEvent,
				Confidence:  0.8,
			},
			Jitter: 0.1,
			Enrich: func(ev *ParsedEvent, sentence string, _ Details) {
				if m := birthdayOwner.FindStringSubmatch(sentence); m != nil {
					ev.Title = m[1] + "'s Birthday Party"
				}
			},
		},
		{
			Name:     "book_fair",
			Triggers: [][]string{{"book fair"}},
			Template: ParsedEvent{
				Title:       "Book Fair",
				Description: "School book fair. Send money or set up an online wallet.",
				Location:    "School Library",
				Category:    CategoryEvent,
				Confidence:  0.8,
			},
		},
		{
			Name:     "picture_day",
			Triggers: [][]string{{"picture day", "photo day", "school photos", "school pictures"}},
			Template: ParsedEvent{
				Title:       "Picture Day",
				Description: "School photos are taken. Return the order form.",
				Location:    "School",
				Category:    CategoryEvent,
				Confidence:  0.85,
			},
		},
		{
			Name:     "early_dismissal",
			Triggers: [][]string{{"early dismissal", "early release", "half day", "minimum day"}},
			Template: ParsedEvent{
				Title:       "Early Dismissal",
				Description: "School lets out early. Arrange pickup.",
				Location:    "School",
				Category:    CategoryEvent,
				Confidence:  0.85,
			},
		},
		{
			Name: "medical_appointment",
			Triggers: [][]string{
				{"dentist", "dental", "orthodontist", "doctor", "pediatrician", "checkup", "check up"},
				{"appointment", "appt", "checkup", "check up", "visit", "cleaning"},
			},
			Template: ParsedEvent{
				Title:       "Doctor Appointment",
				Description: "Bring the insurance card.",
				Category:    CategoryMeeting,
				Confidence:  0.8,
			},
			Jitter: 0.1,
			Enrich: func(ev *ParsedEvent, sentence string, _ Details) {
				if dentalWord.MatchString(sentence) {
					ev.Title = "Dentist Appointment"
				}
			},
		},
		{
			Name:     "pta_meeting",
			Triggers: [][]string{{"pta", "pto", "board meeting", "parent meeting", "school meeting"}},
			Template: ParsedEvent{
				Title:       "PTA Meeting",
				Description: "Parent association meeting.",
				Location:    "School",
				Category:    CategoryMeeting,
				Confidence:  0.8,
			},
			Jitter: 0.05,
		},
		{
			Name:     "deadline",
			Triggers: [][]string{{"permission slip", "permission slips", "is due", "are due", "due by", "due on", "due date", "deadline", "sign up by", "register by", "rsvp", "return by", "submit by"}},
			Template: ParsedEvent{
				Title:       "Deadline",
				Description: "Something needs to be returned or submitted.",
				Category:    CategoryDeadline,
				Confidence:  0.75,
			},
			Jitter: 0.1,
			Enrich: func(ev *ParsedEvent, sentence string, _ Details) {
				switch {
				case permissionSlip.MatchString(sentence):
					ev.Title = "Permission Slip Due"
					ev.Description = "Return the signed permission slip."
				case rsvpWord.MatchString(sentence):
					ev.Title = "RSVP Deadline"
				case registrationWord.MatchString(sentence):
					ev.Title = "Registration Deadline"
				}
				// A deadline has no venue.
				ev.Location = ""
			},
		},
	}
}
