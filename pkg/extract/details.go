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
	"unicode"
)

// Details are the fields detected in a piece of text.
type Details struct {
	Date      string
	Time      string
	Location  string
	Attendees []string
}

// merge fills empty fields of d from other.
func (d Details) merge(other Details) Details {
	if d.Date == "" {
		d.Date = other.Date
	}
	if d.Time == "" {
		d.Time = other.Time
	}
	if d.Location == "" {
		d.Location = other.Location
	}
	if len(d.Attendees) == 0 {
		d.Attendees = other.Attendees
	}
	return d
}

// DetectDetails finds the first date, time and location phrases in text
// and every attendee name.
func DetectDetails(text string) Details {
	return Details{
		Date:      detectDate(text),
		Time:      detectTime(text),
		Location:  detectLocation(text),
		Attendees: detectAttendees(text),
	}
}

const (
	weekdays = `monday|tuesday|wednesday|thursday|friday|saturday|sunday`
	months   = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`
)

var (
	isoDatePattern      = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	numericDatePattern  = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	monthDayPattern     = regexp.MustCompile(`(?i)\b(?:` + months + `)\.?\s+\d{1,2}(?:st|nd|rd|th)?\b`)
	relativeDatePattern = regexp.MustCompile(`(?i)\b(?:today|tonight|tomorrow)\b`)
	weekdayPattern      = regexp.MustCompile(`(?i)\b(?:(?:this|next)\s+)?(?:` + weekdays + `)\b`)

	clockPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	twentyFourClock = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	namedTime       = regexp.MustCompile(`(?i)\b(?:noon|midday|midnight)\b`)
	meridiemDots    = regexp.MustCompile(`(?i)([\d\s])([ap])\.m\.?`)
)

type candidate struct {
	start int
	value string
}

// earliest returns the candidate that starts first; ties keep the earlier
// pattern.
func earliest(cands []candidate) string {
	best := -1
	for i, c := range cands {
		if c.start < 0 {
			continue
		}
		if best < 0 || c.start < cands[best].start {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return cands[best].value
}

func find(re *regexp.Regexp, text string, format func(string) string) candidate {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return candidate{start: -1}
	}
	return candidate{start: loc[0], value: format(text[loc[0]:loc[1]])}
}

func detectDate(text string) string {
	keep := func(s string) string { return s }
	return earliest([]candidate{
		find(isoDatePattern, text, keep),
		find(monthDayPattern, text, titleWords),
		find(numericDatePattern, text, keep),
		find(relativeDatePattern, text, titleWords),
		find(weekdayPattern, text, formatWeekday),
	})
}

// formatWeekday capitalises the day and keeps a lower-case qualifier:
// "this friday" becomes "this Friday".
func formatWeekday(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if i == len(fields)-1 {
			fields[i] = capitalize(strings.ToLower(f))
		} else {
			fields[i] = strings.ToLower(f)
		}
	}
	return strings.Join(fields, " ")
}

func detectTime(text string) string {
	text = normalizeMeridiem(text)
	return earliest([]candidate{
		find(clockPattern, text, formatClock),
		find(twentyFourClock, text, func(s string) string { return s }),
		find(namedTime, text, func(s string) string {
			if strings.EqualFold(s, "midnight") {
				return "12:00 AM"
			}
			return "12:00 PM"
		}),
	})
}

// normalizeMeridiem rewrites "p.m." as "pm" so clock and sentence patterns
// do not trip over the dots.
func normalizeMeridiem(text string) string {
	return meridiemDots.ReplaceAllString(text, "${1}${2}m")
}

func formatClock(s string) string {
	m := clockPattern.FindStringSubmatch(s)
	minutes := m[2]
	if minutes == "" {
		minutes = "00"
	}
	return m[1] + ":" + minutes + " " + strings.ToUpper(m[3])
}

var (
	locationIntro = regexp.MustCompile(`(?i)\b(at|in)\s+(the\s+)?`)
	locationWord  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9'&.-]*`)
)

// locationStop ends a location phrase; a phrase starting with one is not
// a location.
var locationStop = toSet(
	"on", "at", "in", "this", "next", "from", "to", "until", "by", "for", "with",
	"and", "or", "but", "after", "before", "during", "starting", "then", "please",
	"so", "where", "when", "which", "who", "that", "is", "are", "will", "be", "was",
	"today", "tonight", "tomorrow", "noon", "midday", "midnight", "am", "pm",
	"morning", "afternoon", "evening", "night", "weekend", "end", "beginning",
	"start", "same", "latest", "least", "time", "home",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december",
)

const maxLocationWords = 5

func detectLocation(text string) string {
	for _, m := range locationIntro.FindAllStringSubmatchIndex(text, -1) {
		rest := text[m[1]:]
		withThe := m[4] >= 0

		var words []string
		for len(words) < maxLocationWords {
			w := locationWord.FindString(rest)
			// The first word must be a word, not "7" in "at 7 PM".
			if w == "" || (len(words) == 0 && !unicode.IsLetter(rune(w[0]))) {
				break
			}
			bare := strings.TrimRight(w, ".")
			if locationStop[strings.ToLower(bare)] {
				break
			}
			words = append(words, bare)
			rest = rest[len(w):]
			// Words are separated by a single space; anything else ends the phrase.
			if !strings.HasPrefix(rest, " ") || strings.HasSuffix(w, ".") {
				break
			}
			rest = rest[1:]
		}
		if len(words) == 0 {
			continue
		}
		// Without an article only a capitalised name counts ("in Room B", not "in class").
		if !withThe && !unicode.IsUpper(rune(words[0][0])) {
			continue
		}
		return titleWords(strings.TrimSuffix(strings.Join(words, " "), "'s"))
	}
	return ""
}

var (
	namesBeforeVerb = regexp.MustCompile(`\b([A-Z][a-z]+(?:(?:,\s*|,?\s+and\s+)[A-Z][a-z]+)*)\s+(?:has|have|is|are|will|needs|need|must|should|can|gets|plays)\b`)
	possessiveName  = regexp.MustCompile(`\b([A-Z][a-z]+)'s\b`)
	nameSeparator   = regexp.MustCompile(`,\s*|,?\s+and\s+`)
)

// notNames are capitalised words that start sentences or name things
// other than people.
var notNames = toSet(
	"the", "this", "that", "there", "these", "those", "please", "dear", "reminder",
	"our", "your", "we", "it", "school", "class", "practice", "parents", "students",
	"everyone", "today", "tomorrow", "tonight", "she", "he", "they", "who", "what",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december", "mom", "dad", "coach", "teacher",
	"conferences", "tickets", "lunch", "tryouts", "registration", "forms", "slips",
	"pictures", "photos", "all", "homework", "payment", "fees", "games", "recitals",
)

func detectAttendees(text string) []string {
	type hit struct {
		start int
		name  string
	}
	var hits []hit
	for _, m := range namesBeforeVerb.FindAllStringSubmatchIndex(text, -1) {
		group := text[m[2]:m[3]]
		from := 0
		for _, name := range nameSeparator.Split(group, -1) {
			at := from + strings.Index(group[from:], name)
			hits = append(hits, hit{start: m[2] + at, name: name})
			from = at + len(name)
		}
	}
	for _, m := range possessiveName.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{start: m[2], name: text[m[2]:m[3]]})
	}

	// Order by first appearance.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].start < hits[j-1].start; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, h := range hits {
		if notNames[strings.ToLower(h.name)] || seen[h.name] {
			continue
		}
		seen[h.name] = true
		names = append(names, h.name)
	}
	return names
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// titleWords capitalises each word, leaving the rest of the word alone so
// "YMCA" stays intact.
func titleWords(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = capitalize(f)
	}
	return strings.Join(fields, " ")
}

var sentenceBreak = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)

// sentences splits text into trimmed, non-empty sentences.
func sentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(normalizeMeridiem(text), -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
