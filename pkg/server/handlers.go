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

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jbuican14/parentPal-06-16/pkg/extract"
	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/job"
	"github.com/jbuican14/parentPal-06-16/pkg/remoteagent"
	"github.com/jbuican14/parentPal-06-16/pkg/voice"
)

const (
	maxInputDescriptor = 80
	multipartMemory    = 10 << 20
	defaultHistory     = 50
	staleRecording     = time.Hour
)

type parseRequest struct {
	Text string `json:"text"`
}

type voiceRequest struct {
	Transcript string `json:"transcript"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type suggestionsRequest struct {
	Events []extract.ParsedEvent `json:"events"`
}

type startRecordingRequest struct {
	MaxSeconds int `json:"max_seconds"`
}

type stopRecordingRequest struct {
	Transcript string `json:"transcript"`
}

type processResponse struct {
	JobID  string                 `json:"job_id"`
	Status job.Status             `json:"status"`
	Result *gateway.ProcessResult `json:"result"`
}

type recordingResponse struct {
	ID               string                 `json:"id"`
	StartedAt        time.Time              `json:"started_at"`
	MaxSeconds       float64                `json:"max_seconds"`
	RemainingSeconds float64                `json:"remaining_seconds"`
	DurationSeconds  float64                `json:"duration_seconds,omitempty"`
	AutoStopped      bool                   `json:"auto_stopped,omitempty"`
	JobID            string                 `json:"job_id,omitempty"`
	Result           *gateway.ProcessResult `json:"result,omitempty"`
}

type agentStatusResponse struct {
	Connected bool               `json:"connected"`
	Status    remoteagent.Status `json:"status"`
}

func describe(input string) string {
	input = strings.Join(strings.Fields(input), " ")
	if len(input) <= maxInputDescriptor {
		return input
	}
	cut := maxInputDescriptor
	for cut > 0 && !isRuneStart(input[cut]) {
		cut--
	}
	return input[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// handleHealth returns server health status.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// process runs fn as a tracked job and writes its result.
func (s *HTTPServer) process(w http.ResponseWriter, r *http.Request, kind job.Kind, input string,
	fn func(ctx context.Context) (*gateway.ProcessResult, error)) {
	deps := s.current()

	var result *gateway.ProcessResult
	j, err := deps.Jobs.Run(r.Context(), kind, input, func(ctx context.Context) (any, error) {
		res, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		result = res
		return res, nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{JobID: j.ID, Status: j.Status, Result: result})
}

func (s *HTTPServer) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	processor := s.current().Processor
	s.process(w, r, job.KindText, describe(req.Text), func(ctx context.Context) (*gateway.ProcessResult, error) {
		return processor.ProcessText(ctx, req.Text)
	})
}

func (s *HTTPServer) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	processor := s.current().Processor
	s.process(w, r, job.KindVoice, describe(req.Transcript), func(ctx context.Context) (*gateway.ProcessResult, error) {
		return processor.ProcessVoice(ctx, req.Transcript)
	})
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, err)
		return
	}

	deps := s.current()
	name := header.Filename
	s.process(w, r, job.KindDocument, name, func(ctx context.Context) (*gateway.ProcessResult, error) {
		doc, err := deps.Documents.Parse(ctx, name, data)
		if err != nil {
			return nil, err
		}
		return deps.Processor.ProcessDocument(ctx, doc.Name, doc.Content)
	})
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.current().Gateway.Chat(r.Context(), req.Message)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := s.current().Gateway.Suggestions(r.Context(), req.Events)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req startRecordingRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if req.MaxSeconds < 0 {
		writeError(w, http.StatusBadRequest, "max_seconds must be non-negative")
		return
	}

	rec := s.current().Recorder.Start(time.Duration(req.MaxSeconds) * time.Second)

	s.mu.Lock()
	for id, old := range s.recordings {
		// Auto-stopped recordings nobody collected.
		if old.Stopped() && time.Since(old.StartedAt) > old.Max+staleRecording {
			delete(s.recordings, id)
		}
	}
	s.recordings[rec.ID] = rec
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, recordingResponse{
		ID:               rec.ID,
		StartedAt:        rec.StartedAt,
		MaxSeconds:       rec.Max.Seconds(),
		RemainingSeconds: rec.Remaining().Seconds(),
	})
}

// handleStopRecording stops a recording started by this server. Stopping a
// recording that reached its limit returns its final duration.
func (s *HTTPServer) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// A bad body leaves the recording running so the client can retry.
	var req stopRecordingRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	s.mu.Lock()
	rec, ok := s.recordings[id]
	delete(s.recordings, id)
	s.mu.Unlock()
	if !ok {
		writeFailure(w, voice.ErrNotFound)
		return
	}

	deps := s.current()
	elapsed, err := deps.Recorder.Stop(rec)
	if err != nil {
		writeFailure(w, err)
		return
	}

	resp := recordingResponse{
		ID:              rec.ID,
		StartedAt:       rec.StartedAt,
		MaxSeconds:      rec.Max.Seconds(),
		DurationSeconds: elapsed.Seconds(),
		AutoStopped:     rec.AutoStopped(),
	}

	if strings.TrimSpace(req.Transcript) != "" {
		var result *gateway.ProcessResult
		j, err := deps.Jobs.Run(r.Context(), job.KindVoice, describe(req.Transcript), func(ctx context.Context) (any, error) {
			res, err := deps.Processor.ProcessVoice(ctx, req.Transcript)
			if err != nil {
				return nil, err
			}
			result = res
			return res, nil
		})
		if err != nil {
			writeFailure(w, err)
			return
		}
		resp.JobID = j.ID
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.current().Jobs.List(limit)})
}

func (s *HTTPServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.current().Jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (s *HTTPServer) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.current().Gateway.Ledger().Balance())
}

func (s *HTTPServer) handleUsageHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultHistory)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": s.current().Gateway.Ledger().History(limit)})
}

func (s *HTTPServer) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.current().Gateway.Ledger().Stats())
}

func (s *HTTPServer) handleUsageReset(w http.ResponseWriter, r *http.Request) {
	ledger := s.current().Gateway.Ledger()
	if err := ledger.Reset(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Balance())
}

func (s *HTTPServer) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	conn := s.current().Connector
	if conn == nil {
		writeJSON(w, http.StatusOK, agentStatusResponse{
			Status: remoteagent.Status{State: remoteagent.StateFallback},
		})
		return
	}
	writeJSON(w, http.StatusOK, agentStatusResponse{Connected: conn.IsConnected(), Status: conn.Status()})
}

func (s *HTTPServer) handleAgentReconnect(w http.ResponseWriter, r *http.Request) {
	conn := s.current().Connector
	if conn == nil {
		writeFailure(w, remoteagent.ErrNoEndpoint)
		return
	}
	if err := conn.Reconnect(r.Context()); err != nil {
		if statusFor(err) == http.StatusConflict {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, agentStatusResponse{Connected: false, Status: conn.Status()})
		return
	}
	writeJSON(w, http.StatusOK, agentStatusResponse{Connected: conn.IsConnected(), Status: conn.Status()})
}

// queryInt parses a non-negative integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
