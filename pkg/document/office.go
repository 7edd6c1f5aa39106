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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// maxCells bounds the cells read per sheet.
const maxCells = 1000

type wordParser struct{}

func (p *wordParser) Extensions() []string {
	return []string{".docx"}
}

func (p *wordParser) Parse(ctx context.Context, data []byte) (*Document, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read Word document: %w", err)
	}
	defer r.Close()

	paragraphs, err := wordText(r.Editable().GetContent())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Document{
		Format:   "docx",
		Content:  strings.Join(paragraphs, "\n"),
		Metadata: map[string]string{"paragraphs": fmt.Sprintf("%d", len(paragraphs))},
	}, nil
}

// wordText returns the non-empty paragraphs of a WordprocessingML body.
func wordText(body string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			paragraphs = append(paragraphs, s)
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid document XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	flush()
	return paragraphs, nil
}

type excelParser struct{}

func (p *excelParser) Extensions() []string {
	return []string{".xlsx"}
}

// Parse renders each sheet as one line per row with cells joined by " | ".
func (p *excelParser) Parse(ctx context.Context, data []byte) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var parts []string
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		var lines []string
		cells := 0
	rowLoop:
		for _, row := range rows {
			var values []string
			for _, cell := range row {
				if cells >= maxCells {
					break rowLoop
				}
				if v := strings.TrimSpace(cell); v != "" {
					values = append(values, v)
					cells++
				}
			}
			if len(values) > 0 {
				lines = append(lines, strings.Join(values, " | "))
			}
		}
		if len(lines) > 0 {
			parts = append(parts, sheet+"\n"+strings.Join(lines, "\n"))
		}
	}

	return &Document{
		Format:   "xlsx",
		Content:  strings.Join(parts, "\n\n"),
		Metadata: map[string]string{"sheets": fmt.Sprintf("%d", len(sheets))},
	}, nil
}
