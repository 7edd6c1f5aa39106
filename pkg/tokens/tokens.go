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

// Package tokens estimates the token cost of request input.
package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
)

// Estimator returns the token cost of text.
type Estimator interface {
	Estimate(text string) int64
}

// CharEstimator charges one token per four characters, rounded up.
type CharEstimator struct{}

// Estimate returns ceil(chars/4).
func (CharEstimator) Estimate(text string) int64 {
	n := int64(utf8.RuneCountInString(text))
	return (n + 3) / 4
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.Mutex
)

// TiktokenEstimator counts BPE tokens with the encoding of a model.
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTiktokenEstimator loads the encoding for model, falling back to
// cl100k_base for unknown models. Encodings are cached per model.
func NewTiktokenEstimator(model string) (*TiktokenEstimator, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &TiktokenEstimator{encoding: enc, model: model}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}
	encodingCache[model] = enc

	return &TiktokenEstimator{encoding: enc, model: model}, nil
}

// Estimate returns the number of BPE tokens in text.
func (e *TiktokenEstimator) Estimate(text string) int64 {
	return int64(len(e.encoding.Encode(text, nil, nil)))
}

// Model returns the model the encoding was chosen for.
func (e *TiktokenEstimator) Model() string {
	return e.model
}

// NewFromConfig returns the estimator selected by cfg.TokenEstimator.
func NewFromConfig(cfg *config.AIConfig) (Estimator, error) {
	switch cfg.TokenEstimator {
	case config.EstimatorChars, "":
		return CharEstimator{}, nil
	case config.EstimatorTiktoken:
		return NewTiktokenEstimator(cfg.Model)
	default:
		return nil, fmt.Errorf("unknown token estimator: %s", cfg.TokenEstimator)
	}
}
