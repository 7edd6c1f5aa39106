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
	"context"
	"strings"
)

type textParser struct{}

func (p *textParser) Extensions() []string {
	return []string{".txt", ".md", ".eml", ".csv", ".ics"}
}

func (p *textParser) Parse(_ context.Context, data []byte) (*Document, error) {
	content := strings.ToValidUTF8(string(data), "\uFFFD")
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return &Document{
		Format:  "text",
		Content: strings.TrimSpace(content),
	}, nil
}
