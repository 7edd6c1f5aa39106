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

	"github.com/jbuican14/parentPal-06-16/pkg/extract"
)

// Input kinds of a ProcessResult.
const (
	KindText     = "text"
	KindVoice    = "voice"
	KindDocument = "document"
)

// ProcessResult is the answer to a text, voice or document submission.
type ProcessResult struct {
	Kind       string                `json:"kind"`
	Events     []extract.ParsedEvent `json:"events"`
	Summary    string                `json:"summary,omitempty"`
	Source     string                `json:"source"`
	Fallback   bool                  `json:"fallback"`
	Cached     bool                  `json:"cached"`
	TokensUsed int64                 `json:"tokens_used"`
}

// Processor turns user submissions into events. The local gateway and the
// remote agent connector both implement it.
type Processor interface {
	ProcessText(ctx context.Context, text string) (*ProcessResult, error)
	ProcessVoice(ctx context.Context, transcript string) (*ProcessResult, error)
	ProcessDocument(ctx context.Context, name, content string) (*ProcessResult, error)
}

// LocalProcessor answers submissions with the gateway.
type LocalProcessor struct {
	gw *Gateway
}

// NewLocalProcessor wraps gw.
func NewLocalProcessor(gw *Gateway) *LocalProcessor {
	return &LocalProcessor{gw: gw}
}

// ProcessText parses events from text.
func (p *LocalProcessor) ProcessText(ctx context.Context, text string) (*ProcessResult, error) {
	return p.parse(ctx, KindText, text)
}

// ProcessVoice parses events from a voice transcript.
func (p *LocalProcessor) ProcessVoice(ctx context.Context, transcript string) (*ProcessResult, error) {
	return p.parse(ctx, KindVoice, transcript)
}

func (p *LocalProcessor) parse(ctx context.Context, kind, text string) (*ProcessResult, error) {
	resp, err := p.gw.ParseEvents(ctx, text)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{
		Kind:       kind,
		Events:     resp.Data.Events,
		Source:     SourceLocal,
		Cached:     resp.Cached,
		TokensUsed: resp.TokensUsed,
	}, nil
}

// ProcessDocument analyzes the text content of a document.
func (p *LocalProcessor) ProcessDocument(ctx context.Context, name, content string) (*ProcessResult, error) {
	resp, err := p.gw.AnalyzeDocument(ctx, name, content)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{
		Kind:       KindDocument,
		Events:     resp.Data.Events,
		Summary:    resp.Data.Summary,
		Source:     SourceLocal,
		Cached:     resp.Cached,
		TokensUsed: resp.TokensUsed,
	}, nil
}

var _ Processor = (*LocalProcessor)(nil)
