package remoteagent

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
)

func dialAgent(t *testing.T) (*websocket.Conn, *Server) {
	t.Helper()
	local, _ := newLocal(t)
	agent := NewServer(local, WithServerClock(func() time.Time {
		return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	}))
	srv := httptest.NewServer(agent)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, agent
}

func roundTrip(t *testing.T, conn *websocket.Conn, req *Envelope) *Envelope {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp Envelope
	require.NoError(t, conn.ReadJSON(&resp))
	return &resp
}

func TestServer_ProcessText(t *testing.T) {
	conn, agent := dialAgent(t)

	req, err := NewRequest("req-1", OpProcessText, textPayload{Text: pianoText}, time.Now())
	require.NoError(t, err)
	resp := roundTrip(t, conn, req)

	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, TypeResponse, resp.Type)
	assert.Equal(t, OpProcessText, resp.Operation)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, int64(17), resp.TokenUsage.TokensUsed)
	assert.True(t, resp.Timestamp.Equal(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)))

	var res gateway.ProcessResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	require.NotEmpty(t, res.Events)
	assert.Equal(t, "Music Academy", res.Events[0].Location)

	assert.Eventually(t, func() bool { return agent.Connections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_CachedResultCarriesNoUsage(t *testing.T) {
	conn, _ := dialAgent(t)

	first, err := NewRequest("a", OpProcessVoice, voicePayload{Transcript: pianoText}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, roundTrip(t, conn, first).TokenUsage)

	second, err := NewRequest("b", OpProcessVoice, voicePayload{Transcript: pianoText}, time.Now())
	require.NoError(t, err)
	resp := roundTrip(t, conn, second)
	assert.Equal(t, TypeResponse, resp.Type)
	assert.Nil(t, resp.TokenUsage)
}

func TestServer_ProcessDocument(t *testing.T) {
	conn, _ := dialAgent(t)

	req, err := NewRequest("doc", OpProcessDocument, documentPayload{
		Name:    "newsletter.txt",
		Content: "The book fair is next week in the library.",
	}, time.Now())
	require.NoError(t, err)
	resp := roundTrip(t, conn, req)
	require.Equal(t, TypeResponse, resp.Type)

	var res gateway.ProcessResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, gateway.KindDocument, res.Kind)
	assert.NotEmpty(t, res.Summary)
	assert.Len(t, res.Events, 1)
}

func TestServer_ExtractEvents(t *testing.T) {
	conn, _ := dialAgent(t)

	req, err := NewRequest("x", OpExtractEvents, textPayload{Text: pianoText}, time.Now())
	require.NoError(t, err)
	resp := roundTrip(t, conn, req)
	require.Equal(t, TypeResponse, resp.Type)

	var out struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.NotEmpty(t, out.Events)
}

func TestServer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     *Envelope
		wantMsg string
	}{
		{
			name:    "unknown operation",
			req:     &Envelope{ID: "u", Type: TypeRequest, Operation: "dance"},
			wantMsg: `unknown operation "dance"`,
		},
		{
			name:    "missing data",
			req:     &Envelope{ID: "m", Type: TypeRequest, Operation: OpProcessText},
			wantMsg: "no data",
		},
		{
			name:    "bad payload",
			req:     &Envelope{ID: "b", Type: TypeRequest, Operation: OpProcessText, Data: json.RawMessage(`"text"`)},
			wantMsg: "invalid process_text payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _ := dialAgent(t)
			resp := roundTrip(t, conn, tt.req)

			assert.Equal(t, tt.req.ID, resp.ID)
			assert.Equal(t, TypeError, resp.Type)
			err := resp.remoteError()
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestServer_MalformedEnvelope(t *testing.T) {
	conn, _ := dialAgent(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var resp Envelope
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, TypeError, resp.Type)
	assert.Contains(t, resp.remoteError().Error(), "malformed envelope")
}

func TestServer_IgnoresNonRequests(t *testing.T) {
	conn, _ := dialAgent(t)

	require.NoError(t, conn.WriteJSON(&Envelope{ID: "t", Type: TypeTokenUpdate, Operation: "sync"}))

	req, err := NewRequest("r", OpProcessText, textPayload{Text: "hello"}, time.Now())
	require.NoError(t, err)
	resp := roundTrip(t, conn, req)
	assert.Equal(t, "r", resp.ID)
}

func TestServer_Close(t *testing.T) {
	conn, agent := dialAgent(t)
	require.Eventually(t, func() bool { return agent.Connections() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, agent.Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Eventually(t, func() bool { return agent.Connections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRemoteError(t *testing.T) {
	env := &Envelope{Operation: OpProcessText, Type: TypeError}
	err := env.remoteError()

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "unknown error", remote.Message)
	assert.Equal(t, "remote process_text failed: unknown error", err.Error())
}
