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

// Package server exposes the ParentPal processing core over HTTP.
//
// Routes:
//
//	POST /api/events/parse              {text}
//	POST /api/voice                     {transcript}
//	POST /api/documents                 multipart "file"
//	POST /api/chat                      {message}
//	POST /api/suggestions               {events}
//	POST /api/voice/recordings          {max_seconds}
//	POST /api/voice/recordings/{id}/stop {transcript}
//	GET  /api/jobs, /api/jobs/{id}
//	GET  /api/usage, /api/usage/history, /api/usage/stats
//	POST /api/usage/reset
//	GET  /api/agent/status
//	POST /api/agent/reconnect
//	GET  /health, /metrics
//	GET  /agent/ws                      when the agent endpoint is exposed
//
// Rate limit errors map to 429 with Retry-After, an insufficient token
// balance to 402 and invalid input to 400.
package server
