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
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperation is returned for operations without a handler.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidPayload is returned when a payload does not fit the operation.
	ErrInvalidPayload = errors.New("invalid payload")
)

// OperationError wraps a failure of an operation handler.
type OperationError struct {
	Operation Operation
	Err       error
}

// Error returns the error message.
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsOperationError checks if an error is an OperationError.
func IsOperationError(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}
