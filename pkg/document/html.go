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

package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var (
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true,
		"iframe": true, "template": true, "title": true,
	}
	blockTags = map[string]bool{
		"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
		"article": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
		"h6": true, "table": true, "ul": true, "ol": true, "blockquote": true,
	}
)

type htmlParser struct{}

func (p *htmlParser) Extensions() []string {
	return []string{".html", ".htm"}
}

// Parse keeps the visible text, one line per block element.
func (p *htmlParser) Parse(ctx context.Context, data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var (
		sb    strings.Builder
		title string
		walk  func(*html.Node)
	)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && n.FirstChild != nil && title == "" {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if skipTags[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			sb.WriteByte('\n')
		}
	}
	walk(root)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &Document{
		Format:  "html",
		Content: collapseLines(sb.String()),
	}
	if title != "" {
		doc.Metadata = map[string]string{"title": title}
	}
	return doc, nil
}

// collapseLines collapses runs of spaces within lines and drops blank lines.
func collapseLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
