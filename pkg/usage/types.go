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

// Package usage keeps the token ledger: balance, append-only history and
// aggregate statistics. The whole ledger is persisted as one JSON record
// after every mutation.
package usage

import "time"

// StorageKey is the durable record holding the ledger.
const StorageKey = "parentpal_token_usage"

// Defaults for a fresh ledger.
const (
	DefaultLimit        = 10000
	DefaultResetPeriod  = 30 * 24 * time.Hour
	DefaultHistoryLimit = 1000

	topOperations = 5
)

// Record is one billed request.
type Record struct {
	Operation  string    `json:"operation"`
	TokensUsed int64     `json:"tokensUsed"`
	Timestamp  time.Time `json:"timestamp"`
	Cost       *float64  `json:"cost,omitempty"`
}

// Balance is the token quota state. Available is always max(0, Limit-Used).
type Balance struct {
	Available int64     `json:"available"`
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	ResetDate time.Time `json:"resetDate"`
}

// OperationStat aggregates history for one operation.
type OperationStat struct {
	Operation string `json:"operation"`
	Tokens    int64  `json:"tokens"`
	Count     int    `json:"count"`
}

// Stats summarises the retained history.
type Stats struct {
	TotalUsed     int64           `json:"totalUsed"`
	AveragePerDay float64         `json:"averagePerDay"`
	TopOperations []OperationStat `json:"topOperations"`
}

// snapshot is the persisted form.
type snapshot struct {
	Balance Balance  `json:"balance"`
	History []Record `json:"history"`
}
