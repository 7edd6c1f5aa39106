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

package config

import "fmt"

// Processing modes.
const (
	// AIModeLocal answers every request with the local rule-based pipeline.
	AIModeLocal = "local"

	// AIModeRemote routes requests to the remote agent and falls back locally.
	AIModeRemote = "remote"
)

// Token estimators.
const (
	EstimatorChars    = "chars"
	EstimatorTiktoken = "tiktoken"
)

// AIConfig configures request processing.
type AIConfig struct {
	// Mode is "local" or "remote". Default: local.
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=local,enum=remote"`

	// TokenEstimator is "chars" (one token per four characters) or "tiktoken". Default: chars.
	TokenEstimator string `yaml:"token_estimator,omitempty" json:"token_estimator,omitempty" jsonschema:"enum=chars,enum=tiktoken"`

	// Model selects the tiktoken encoding. Default: gpt-4o.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
}

// SetDefaults applies default values to AIConfig.
func (c *AIConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = AIModeLocal
	}
	if c.TokenEstimator == "" {
		c.TokenEstimator = EstimatorChars
	}
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
}

// Validate checks the AI configuration.
func (c *AIConfig) Validate() error {
	switch c.Mode {
	case AIModeLocal, AIModeRemote:
	default:
		return fmt.Errorf("invalid mode %q (valid: local, remote)", c.Mode)
	}
	switch c.TokenEstimator {
	case EstimatorChars, EstimatorTiktoken:
	default:
		return fmt.Errorf("invalid token_estimator %q (valid: chars, tiktoken)", c.TokenEstimator)
	}
	return nil
}
