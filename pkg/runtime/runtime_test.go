package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbuican14/parentPal-06-16/pkg/config"
	"github.com/jbuican14/parentPal-06-16/pkg/gateway"
	"github.com/jbuican14/parentPal-06-16/pkg/remoteagent"
	"github.com/jbuican14/parentPal-06-16/pkg/server"
)

const pianoText = "Jake has a piano recital this Friday at 7 PM at the music academy"

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfigBytes([]byte(yaml))
	require.NoError(t, err)
	cfg.Storage.Path = t.TempDir()
	return cfg
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_LocalMode(t *testing.T) {
	cfg := testConfig(t, "usage:\n  default_limit: 500\n")
	rt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, rt.Close()) })

	assert.Nil(t, rt.Connector())
	assert.NotNil(t, rt.Agent())
	assert.IsType(t, &gateway.LocalProcessor{}, rt.Processor())
	assert.Equal(t, int64(500), rt.Ledger().Balance().Limit)

	res, err := rt.Processor().ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	require.NotEmpty(t, res.Events)
	assert.Equal(t, gateway.SourceLocal, res.Source)
	assert.Equal(t, int64(17), rt.Ledger().Balance().Used)
}

func TestNew_LedgerPersistsAcrossRuntimes(t *testing.T) {
	cfg := testConfig(t, "")

	rt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	_, err = rt.Processor().ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	again, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { again.Close() })
	assert.Equal(t, int64(17), again.Ledger().Balance().Used)
	assert.Len(t, again.Ledger().History(10), 1)
}

func TestNew_SQLStorage(t *testing.T) {
	cfg := testConfig(t, `
databases:
  local:
    driver: sqlite
    database: `+t.TempDir()+`/parentpal.db
storage:
  backend: sql
  database: local
`)
	rt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	_, err = rt.Processor().ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	assert.Equal(t, int64(17), rt.Ledger().Balance().Used)
}

func TestNew_RemoteModeFallsBack(t *testing.T) {
	cfg := testConfig(t, "ai:\n  mode: remote\nagent:\n  url: wss://your-agent-host/ws\n")
	rt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	require.NotNil(t, rt.Connector())
	assert.Equal(t, remoteagent.StateFallback, rt.Connector().State())

	res, err := rt.Processor().ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.NotEmpty(t, res.Events)

	chat, err := rt.Gateway().Chat(context.Background(), "Maya has soccer practice Tuesday at 4pm")
	require.NoError(t, err)
	assert.Equal(t, "add_event", chat.Data.Intent)
}

func TestNew_RemoteModeUsesAgent(t *testing.T) {
	agentRT, err := New(context.Background(), testConfig(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { agentRT.Close() })
	agent := httptest.NewServer(agentRT.Agent())
	t.Cleanup(agent.Close)

	url := "ws" + strings.TrimPrefix(agent.URL, "http")
	cfg := testConfig(t, "ai:\n  mode: remote\nagent:\n  url: "+url+"\n  base_delay: 10ms\n")
	rt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	require.NoError(t, rt.Connector().Connect(context.Background()))
	require.Eventually(t, rt.Connector().IsConnected, 5*time.Second, 10*time.Millisecond)

	res, err := rt.Processor().ProcessText(context.Background(), pianoText)
	require.NoError(t, err)
	assert.Equal(t, remoteagent.SourceRemote, res.Source)
	assert.False(t, res.Fallback)
	assert.Equal(t, int64(17), rt.Ledger().Balance().Used)
}

func TestNew_RemoteModeBillsGatewayRequestsOnce(t *testing.T) {
	agentRT, err := New(context.Background(), testConfig(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { agentRT.Close() })
	agent := httptest.NewServer(agentRT.Agent())
	t.Cleanup(agent.Close)

	url := "ws" + strings.TrimPrefix(agent.URL, "http")
	rt, err := New(context.Background(), testConfig(t, "ai:\n  mode: remote\nagent:\n  url: "+url+"\n"))
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	require.NoError(t, rt.Connector().Connect(context.Background()))
	require.Eventually(t, rt.Connector().IsConnected, 5*time.Second, 10*time.Millisecond)

	_, err = rt.Gateway().Chat(context.Background(), pianoText)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int64(17), rt.Ledger().Balance().Used)
	history := rt.Ledger().History(0)
	require.Len(t, history, 1)
	assert.Equal(t, string(gateway.OpChat), history[0].Operation)

	res, err := rt.Gateway().ParseEvents(context.Background(), "Soccer practice tomorrow at 4pm at Riverside Park")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Data.Events)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rt.Ledger().History(0), 2)
}

func TestServerDeps(t *testing.T) {
	cfg := testConfig(t, "")
	rt, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	srv, err := server.NewHTTPServer(&cfg.Server, rt.ServerDeps(), server.WithObservability(rt.Observability()))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/events/parse", strings.NewReader(`{"text":"`+pianoText+`"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, rt.Jobs().List(0), 1)
}

func TestNew_InvalidCacheBackend(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Cache.Backend = "memcached"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
