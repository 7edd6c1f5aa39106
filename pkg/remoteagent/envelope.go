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

// Package remoteagent connects ParentPal to an optional remote processing
// agent over WebSocket and serves that agent.
//
// The Connector retries with exponential backoff, queues outbound messages
// while disconnected and answers every operation locally when the agent is
// unreachable or unconfigured.
package remoteagent

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is the type of an envelope.
type MessageType string

const (
	TypeRequest     MessageType = "request"
	TypeResponse    MessageType = "response"
	TypeError       MessageType = "error"
	TypeTokenUpdate MessageType = "token_update"
)

// Remote operations.
const (
	OpProcessText     = "process_text"
	OpProcessVoice    = "process_voice"
	OpProcessDocument = "process_document"
	OpExtractEvents   = "extract_events"
)

// Envelope is the unit exchanged with the agent. Inbound envelopes echo the
// id of the request they answer.
type Envelope struct {
	ID         string          `json:"id"`
	Type       MessageType     `json:"type"`
	Operation  string          `json:"operation"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	TokenUsage *TokenUsage     `json:"tokenUsage,omitempty"`
}

// TokenUsage is the token cost reported by the agent.
type TokenUsage struct {
	TokensUsed int64    `json:"tokensUsed"`
	Cost       *float64 `json:"cost,omitempty"`
}

// ErrorData is the payload of an error envelope.
type ErrorData struct {
	Message string `json:"message"`
}

// RemoteError is returned when the agent answers with an error envelope.
type RemoteError struct {
	Operation string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Operation, e.Message)
}

type textPayload struct {
	Text string `json:"text"`
}

type voicePayload struct {
	Transcript string `json:"transcript"`
}

type documentPayload struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// NewRequest builds a request envelope. Data is marshaled to JSON.
func NewRequest(id, operation string, data any, now time.Time) (*Envelope, error) {
	env := &Envelope{
		ID:        id,
		Type:      TypeRequest,
		Operation: operation,
		Timestamp: now,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		env.Data = raw
	}
	return env, nil
}

func (e *Envelope) remoteError() error {
	var data ErrorData
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Message == "" {
		data.Message = "unknown error"
	}
	return &RemoteError{Operation: e.Operation, Message: data.Message}
}
