package remoteagent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/ratelimit"
	"github.com/jbuican14/parentPal-06-16/pkg/storage"
	"github.com/jbuican14/parentPal-06-16/pkg/usage"
)

const pianoText = "Jake has a piano recital this Friday at 7 PM at the music academy"

func newLocal(t *testing.T) (*gateway.LocalProcessor, *usage.Ledger) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ledger := usage.NewLedger(context.Background(), store, usage.Options{DefaultLimit: 10000})
	gw, err := gateway.New(gateway.Options{Ledger: ledger})
	require.NoError(t, err)
	return gateway.NewLocalProcessor(gw), ledger
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newConnector(t *testing.T, url string, mutate func(*Options)) (*Connector, *usage.Ledger) {
	t.Helper()
	local, _ := newLocal(t)
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ledger := usage.NewLedger(context.Background(), store, usage.Options{DefaultLimit: 10000})

	opts := Options{
		URL:         url,
		BaseDelay:   time.Millisecond,
		MaxAttempts: 3,
		Local:       local,
		Ledger:      ledger,
		Store:       store,
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewConnector(opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, ledger
}

// scriptedAgent serves each WebSocket connection with fn.
func scriptedAgent(t *testing.T, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func realAgent(t *testing.T) *httptest.Server {
	t.Helper()
	local, _ := newLocal(t)
	agent := NewServer(local)
	srv := httptest.NewServer(agent)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { agent.Close() })
	return srv
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func readRequest(t *testing.T, conn *websocket.Conn) (*Envelope, bool) {
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return nil, false
	}
	return &env, true
}

func respond(conn *websocket.Conn, req *Envelope, data any, tu *TokenUsage) error {
	raw, _ := json.Marshal(data)
	return conn.WriteJSON(&Envelope{
		ID:         req.ID,
		Type:       TypeResponse,
		Operation:  req.Operation,
		Data:       raw,
		Timestamp:  time.Now(),
		TokenUsage: tu,
	})
}

func TestCheckEndpoint(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want error
	}{
		{"valid ws", "ws://agent.internal:8090/agent/ws", nil},
		{"valid wss", "wss://agent.parentpal.app/ws", nil},
		{"empty", "", ErrNoEndpoint},
		{"blank", "   ", ErrNoEndpoint},
		{"template", "wss://your-agent-url/ws", ErrPlaceholderEndpoint},
		{"placeholder word", "ws://PLACEHOLDER:8090", ErrPlaceholderEndpoint},
		{"angle brackets", "wss://<agent-host>/ws", ErrPlaceholderEndpoint},
		{"http scheme", "http://agent.internal:8090", ErrInvalidEndpoint},
		{"no scheme", "agent.internal:8090", ErrInvalidEndpoint},
		{"no host", "ws:///ws", ErrInvalidEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEndpoint(tt.url)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBackoff(t *testing.T) {
	var got []time.Duration
	for attempt := 1; attempt <= 5; attempt++ {
		got = append(got, Backoff(time.Second, attempt))
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, got)
	assert.Equal(t, time.Second, Backoff(time.Second, 0))
}

func TestBackoff_Capped(t *testing.T) {
	for _, base := range []time.Duration{time.Second, 9 * time.Second, time.Minute} {
		for attempt := 1; attempt <= 100; attempt++ {
			d := Backoff(base, attempt)
			require.Positive(t, d, "base %s attempt %d", base, attempt)
			require.LessOrEqual(t, d, MaxBackoff, "base %s attempt %d", base, attempt)
		}
	}
	assert.Equal(t, MaxBackoff, Backoff(9*time.Second, 40))
	assert.Equal(t, MaxBackoff, Backoff(2*time.Hour, 1))
}

func TestNewConnector_RequiresLocal(t *testing.T) {
	_, err := NewConnector(Options{URL: "ws://agent.internal"})
	assert.Error(t, err)
}

func TestConnector_NoEndpointUsesLocal(t *testing.T) {
	c, _ := newConnector(t, "", nil)

	assert.Equal(t, StateFallback, c.State())
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrNoEndpoint)
	assert.ErrorIs(t, c.Reconnect(context.Background()), ErrNoEndpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := c.ProcessText(ctx, pianoText)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, gateway.SourceLocal, res.Source)
	require.NotEmpty(t, res.Events)
	assert.Contains(t, strings.ToLower(res.Events[0].Title), "piano")
	assert.False(t, c.IsConnected())

	st := c.Status()
	assert.False(t, st.Configured)
	assert.NotEmpty(t, st.Reason)
}

func TestConnector_PlaceholderNeverDials(t *testing.T) {
	c, _ := newConnector(t, "wss://your-agent-url.example.com/ws", nil)
	assert.Equal(t, StateFallback, c.State())

	res, err := c.ProcessVoice(context.Background(), "Soccer practice tomorrow at 4:30 PM")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, gateway.KindVoice, res.Kind)
}

func TestConnector_FlushesQueueInOrder(t *testing.T) {
	received := make(chan string, 3)
	srv := scriptedAgent(t, func(conn *websocket.Conn) {
		for {
			env, ok := readRequest(t, conn)
			if !ok {
				return
			}
			received <- env.Operation
		}
	})

	c, _ := newConnector(t, wsURL(srv), nil)
	assert.Equal(t, StateDisconnected, c.State())

	for _, op := range []string{"note_1", "note_2", "note_3"} {
		_, err := c.Send(context.Background(), op, map[string]string{"op": op})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, c.Status().Queued)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case op := <-received:
			got = append(got, op)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for flushed messages")
		}
	}
	assert.Equal(t, []string{"note_1", "note_2", "note_3"}, got)
	assert.Equal(t, 0, c.Status().Queued)
}

func TestConnector_ProcessTextRemote(t *testing.T) {
	srv := realAgent(t)
	c, ledger := newConnector(t, wsURL(srv), nil)
	require.NoError(t, c.Connect(context.Background()))

	res, err := c.ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
	assert.False(t, res.Fallback)
	assert.Equal(t, gateway.KindText, res.Kind)
	assert.Equal(t, int64(17), res.TokensUsed)
	require.NotEmpty(t, res.Events)
	assert.Contains(t, strings.ToLower(res.Events[0].Location), "music academy")

	assert.Equal(t, int64(17), ledger.Balance().Used)
	assert.Equal(t, 0, c.Status().Pending)

	doc, err := c.ProcessDocument(context.Background(), "notice.txt", "Picture day is Monday.")
	require.NoError(t, err)
	assert.Equal(t, gateway.KindDocument, doc.Kind)
	assert.NotEmpty(t, doc.Summary)
}

func TestConnector_PersistsConnectionRecord(t *testing.T) {
	srv := realAgent(t)
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	c, _ := newConnector(t, wsURL(srv), func(o *Options) {
		o.Store = store
		o.Now = func() time.Time { return now }
	})
	session := c.Status().SessionID
	require.NotEmpty(t, session)
	require.NoError(t, c.Connect(context.Background()))

	data, err := store.Get(context.Background(), ConnectionKey)
	require.NoError(t, err)

	var rec ConnectionRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, session, rec.SessionID)
	assert.Equal(t, wsURL(srv), rec.Endpoint)
	assert.True(t, rec.LastConnected.Equal(now))

	again, _ := newConnector(t, "", func(o *Options) { o.Store = store })
	assert.Equal(t, session, again.Status().SessionID)
}

func TestConnector_CorruptRecordStartsFreshSession(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), ConnectionKey, []byte("{not json")))

	c, _ := newConnector(t, "", func(o *Options) { o.Store = store })
	assert.NotEmpty(t, c.Status().SessionID)
}

func TestConnector_CorrelatesByRequestID(t *testing.T) {
	srv := scriptedAgent(t, func(conn *websocket.Conn) {
		var reqs []*Envelope
		for len(reqs) < 2 {
			env, ok := readRequest(t, conn)
			if !ok {
				return
			}
			reqs = append(reqs, env)
		}
		for i := len(reqs) - 1; i >= 0; i-- {
			var p textPayload
			_ = json.Unmarshal(reqs[i].Data, &p)
			_ = respond(conn, reqs[i], gateway.ProcessResult{Summary: p.Text}, nil)
		}
		drain(conn)
	})

	c, _ := newConnector(t, wsURL(srv), nil)
	require.NoError(t, c.Connect(context.Background()))

	texts := []string{"first request", "second request"}
	results := make([]*gateway.ProcessResult, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.ProcessText(context.Background(), text)
			if assert.NoError(t, err) {
				results[i] = res
			}
		}()
	}
	wg.Wait()

	for i, text := range texts {
		require.NotNil(t, results[i])
		assert.Equal(t, text, results[i].Summary)
		assert.Equal(t, SourceRemote, results[i].Source)
	}
}

func TestConnector_TimeoutFallsBackAndDropsLateResponse(t *testing.T) {
	release := make(chan struct{})
	srv := scriptedAgent(t, func(conn *websocket.Conn) {
		env, ok := readRequest(t, conn)
		if !ok {
			return
		}
		<-release
		_ = respond(conn, env, gateway.ProcessResult{Summary: "late"}, &TokenUsage{TokensUsed: 99})
		drain(conn)
	})

	c, ledger := newConnector(t, wsURL(srv), func(o *Options) {
		o.Timeouts.Text = 50 * time.Millisecond
	})
	require.NoError(t, c.Connect(context.Background()))

	var mu sync.Mutex
	var fallbacks []Event
	c.On(EventFallback, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		fallbacks = append(fallbacks, ev)
	})

	res, err := c.ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, gateway.SourceLocal, res.Source)
	assert.NotEmpty(t, res.Events)
	assert.Equal(t, 0, c.Status().Pending)

	mu.Lock()
	require.Len(t, fallbacks, 1)
	assert.Equal(t, OpProcessText, fallbacks[0].Operation)
	assert.Contains(t, fallbacks[0].Reason, "timed out")
	mu.Unlock()

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, c.IsConnected())
	assert.Zero(t, ledger.Balance().Used)
	assert.Equal(t, 0, c.Status().Pending)
}

func TestConnector_RemoteErrorFallsBack(t *testing.T) {
	srv := scriptedAgent(t, func(conn *websocket.Conn) {
		for {
			env, ok := readRequest(t, conn)
			if !ok {
				return
			}
			data, _ := json.Marshal(ErrorData{Message: "model overloaded"})
			_ = conn.WriteJSON(&Envelope{ID: env.ID, Type: TypeError, Operation: env.Operation, Data: data})
		}
	})

	c, _ := newConnector(t, wsURL(srv), nil)
	require.NoError(t, c.Connect(context.Background()))

	res, err := c.ProcessDocument(context.Background(), "note.txt", "Book fair next week in the library")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, gateway.KindDocument, res.Kind)
}

func TestConnector_RecordsTokenUsageOnce(t *testing.T) {
	srv := scriptedAgent(t, func(conn *websocket.Conn) {
		env, ok := readRequest(t, conn)
		if !ok {
			return
		}
		_ = respond(conn, env, gateway.ProcessResult{}, &TokenUsage{TokensUsed: 5})
		_ = conn.WriteJSON(&Envelope{ID: "push", Type: TypeTokenUpdate, Operation: "background_sync", TokenUsage: &TokenUsage{TokensUsed: 8}})
		_ = conn.WriteJSON(&Envelope{ID: "push", Type: TypeTokenUpdate, Operation: "background_sync"})
		drain(conn)
	})

	c, ledger := newConnector(t, wsURL(srv), nil)

	var updates atomic.Int64
	c.On(EventTokenUpdate, func(ev Event) { updates.Add(ev.Tokens) })

	require.NoError(t, c.Connect(context.Background()))

	res, err := c.ProcessText(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.TokensUsed)

	assert.Eventually(t, func() bool { return ledger.Balance().Used == 13 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return updates.Load() == 13 }, 2*time.Second, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, ledger.History(0), 2)
}

func TestConnector_BackoffThenFallbackThenManualReconnect(t *testing.T) {
	var accept atomic.Bool
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accept.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		drain(conn)
	}))
	t.Cleanup(srv.Close)

	c, _ := newConnector(t, wsURL(srv), nil)

	var mu sync.Mutex
	var delays []time.Duration
	var fellBack atomic.Bool
	c.On(EventReconnectScheduled, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, ev.Delay)
	})
	c.On(EventFallback, func(ev Event) { fellBack.Store(true) })

	assert.Error(t, c.Connect(context.Background()))
	assert.Eventually(t, func() bool { return c.State() == StateFallback }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, fellBack.Load())

	mu.Lock()
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}, delays)
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateFallback, c.State())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrFallback)

	accept.Store(true)
	require.NoError(t, c.Reconnect(context.Background()))
	assert.True(t, c.IsConnected())
	assert.Equal(t, 0, c.Status().Attempts)
}

func TestConnector_ReconnectsAfterClosure(t *testing.T) {
	var connections atomic.Int32
	srv := scriptedAgent(t, func(conn *websocket.Conn) {
		if connections.Add(1) == 1 {
			return
		}
		drain(conn)
	})

	c, _ := newConnector(t, wsURL(srv), nil)

	var mu sync.Mutex
	var states []State
	c.On(EventStateChanged, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, ev.State)
	})

	require.NoError(t, c.Connect(context.Background()))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		if connections.Load() != 2 || !c.IsConnected() || len(states) == 0 {
			return false
		}
		return states[len(states)-1] == StateConnected && contains(states, StateDisconnected)
	}, 5*time.Second, 5*time.Millisecond)
}

func contains(states []State, want State) bool {
	for _, s := range states {
		if s == want {
			return true
		}
	}
	return false
}

func TestConnector_OnOff(t *testing.T) {
	c, _ := newConnector(t, "", nil)

	var calls atomic.Int32
	id := c.On(EventFallback, func(Event) { calls.Add(1) })

	_, err := c.ProcessText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	assert.True(t, c.Off(id))
	assert.False(t, c.Off(id))

	_, err = c.ProcessText(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnector_ExtractEvents(t *testing.T) {
	t.Run("fallback extractor", func(t *testing.T) {
		c, _ := newConnector(t, "", nil)
		events, err := c.ExtractEvents(context.Background(), pianoText)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Contains(t, strings.ToLower(events[0].Title), "piano")
	})

	t.Run("remote", func(t *testing.T) {
		srv := realAgent(t)
		c, _ := newConnector(t, wsURL(srv), nil)
		require.NoError(t, c.Connect(context.Background()))

		events, err := c.ExtractEvents(context.Background(), pianoText)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Contains(t, strings.ToLower(events[0].Location), "music academy")
	})

	t.Run("usage left to caller", func(t *testing.T) {
		srv := scriptedAgent(t, func(conn *websocket.Conn) {
			env, ok := readRequest(t, conn)
			if !ok {
				return
			}
			_ = respond(conn, env, map[string]any{"events": []any{}}, &TokenUsage{TokensUsed: 17})
			drain(conn)
		})
		c, ledger := newConnector(t, wsURL(srv), nil)
		require.NoError(t, c.Connect(context.Background()))

		_, err := c.ExtractEvents(context.Background(), pianoText)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int64(0), ledger.Balance().Used)
		assert.Empty(t, ledger.History(0))
	})
}

func TestConnector_TrimsEndpoint(t *testing.T) {
	srv := realAgent(t)
	c, _ := newConnector(t, "  "+wsURL(srv)+"\n", nil)
	assert.Equal(t, wsURL(srv), c.Status().Endpoint)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
}

func TestConnector_RemoteRequestsAreRateLimited(t *testing.T) {
	srv := realAgent(t)
	c, _ := newConnector(t, wsURL(srv), func(o *Options) {
		o.Limiter = ratelimit.NewSlidingWindow(ratelimit.Config{Quota: 1, Window: time.Minute})
	})
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.ProcessText(context.Background(), pianoText)
	require.NoError(t, err)

	_, err = c.ProcessText(context.Background(), pianoText)
	require.Error(t, err)
	assert.True(t, ratelimit.IsRateLimitError(err))
}

func TestConnector_InsufficientBalance(t *testing.T) {
	srv := realAgent(t)
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	poor := usage.NewLedger(context.Background(), store, usage.Options{DefaultLimit: 2})

	c, _ := newConnector(t, wsURL(srv), func(o *Options) { o.Ledger = poor })
	require.NoError(t, c.Connect(context.Background()))

	_, err = c.ProcessText(context.Background(), pianoText)
	assert.True(t, errors.Is(err, usage.ErrInsufficientBalance))
}

func TestConnector_Close(t *testing.T) {
	srv := realAgent(t)
	c, _ := newConnector(t, wsURL(srv), nil)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.Reconnect(context.Background()), ErrClosed)

	_, err := c.Send(context.Background(), "note", nil)
	assert.ErrorIs(t, err, ErrClosed)

	res, err := c.ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
}
