package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipcscope/internal/config"
	"ipcscope/internal/ingest"
	"ipcscope/internal/logging"
	"ipcscope/internal/stats"
	"ipcscope/internal/store"
	"ipcscope/internal/types"
	"ipcscope/internal/ws"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fixture struct {
	store   *store.Store
	gateway *ingest.Gateway
	hub     *ws.Hub
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewDevelopment()
	st := store.New()
	eng := stats.New(st)
	hub := ws.NewHub(st, eng, logger, config.BroadcastConfig{
		SendBuffer:     64,
		SnapshotEvents: 100,
		TopProcesses:   5,
	})
	gw := ingest.New(st, eng, hub, logger, 5)
	hub.SetCreator(gw)

	router := gin.New()
	router.GET("/ws", ws.NewHandler(hub).Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	return &fixture{store: st, gateway: gw, hub: hub, server: srv}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestSnapshotPrecedesIncrements(t *testing.T) {
	f := newFixture(t)

	_, err := f.gateway.RegisterProcess(types.ProcessSpec{PID: 100, Name: "alpha"})
	require.NoError(t, err)
	_, err = f.gateway.CreateEvent(types.EventSpec{SourcePID: 100, TargetPID: 200, MessageType: types.MessagePipe, Status: types.StatusSuccess})
	require.NoError(t, err)

	conn := f.dial(t)

	env := readEnvelope(t, conn)
	require.Equal(t, ws.TypeInitialData, env.Type, "first message must be the snapshot")

	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Len(t, snap.Processes, 1)
	assert.Len(t, snap.Events, 1)
	assert.Equal(t, 1, snap.Stats.TotalMessages)

	// Every subsequent message is an incremental push.
	_, err = f.gateway.CreateEvent(types.EventSpec{SourcePID: 100, TargetPID: 200, MessageType: types.MessageSocket, Status: types.StatusSuccess})
	require.NoError(t, err)

	env = readEnvelope(t, conn)
	assert.Equal(t, ws.TypeNewEvent, env.Type)
	env = readEnvelope(t, conn)
	assert.Equal(t, ws.TypeStatsUpdate, env.Type)
}

func TestJoinDuringCommitsMissesNothing(t *testing.T) {
	f := newFixture(t)

	// Commit a burst of events while an observer joins. Every committed id
	// must reach the observer through the snapshot, an increment, or both.
	const burst = 20
	ids := make(chan int64, burst)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range burst {
			ev, err := f.gateway.CreateEvent(types.EventSpec{SourcePID: 1, TargetPID: 2, MessageType: types.MessagePipe, Status: types.StatusSuccess})
			if err == nil {
				ids <- ev.ID
			}
		}
	}()

	conn := f.dial(t)
	wg.Wait()
	close(ids)

	committed := make(map[int64]bool)
	for id := range ids {
		committed[id] = true
	}
	require.Len(t, committed, burst)

	env := readEnvelope(t, conn)
	require.Equal(t, ws.TypeInitialData, env.Type)
	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))

	seen := make(map[int64]bool)
	for _, ev := range snap.Events {
		seen[ev.ID] = true
	}

	remaining := func() int {
		n := 0
		for id := range committed {
			if !seen[id] {
				n++
			}
		}
		return n
	}
	// readEnvelope fails the test on its deadline, so a lost id cannot hang
	// the loop.
	for remaining() > 0 {
		env = readEnvelope(t, conn)
		if env.Type != ws.TypeNewEvent {
			continue
		}
		var ev types.IpcEvent
		require.NoError(t, json.Unmarshal(env.Data, &ev))
		seen[ev.ID] = true
	}
}

func TestMutationBroadcasts(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	require.Equal(t, ws.TypeInitialData, readEnvelope(t, conn).Type)

	_, err := f.gateway.RegisterProcess(types.ProcessSpec{PID: 100, Name: "alpha"})
	require.NoError(t, err)

	env := readEnvelope(t, conn)
	require.Equal(t, ws.TypeNewProcess, env.Type)
	var p types.Process
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 100, p.PID)
	assert.Equal(t, "alpha", p.Name)

	env = readEnvelope(t, conn)
	require.Equal(t, ws.TypeStatsUpdate, env.Type)

	f.gateway.Clear()
	env = readEnvelope(t, conn)
	assert.Equal(t, ws.TypeEventsCleared, env.Type)
	env = readEnvelope(t, conn)
	require.Equal(t, ws.TypeStatsUpdate, env.Type)
	var st types.Stats
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 0, st.TotalMessages)
}

func TestInboundCreateEvent(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	require.Equal(t, ws.TypeInitialData, readEnvelope(t, conn).Type)

	msg := `{"type":"create_event","data":{"sourcePid":100,"targetPid":200,"messageType":"SIGNAL","status":"SUCCESS"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))

	env := readEnvelope(t, conn)
	require.Equal(t, ws.TypeNewEvent, env.Type)
	var ev types.IpcEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, types.MessageSignal, ev.MessageType)
	assert.Equal(t, 1, f.store.TotalEventCount())
}

func TestMalformedInboundKeepsConnectionOpen(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	require.Equal(t, ws.TypeInitialData, readEnvelope(t, conn).Type)

	// Garbage, an unknown type, and an invalid event spec: all dropped.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"create_event","data":{"sourcePid":1}}`)))

	// The connection still accepts a valid submission afterwards.
	msg := `{"type":"create_event","data":{"sourcePid":1,"targetPid":2,"messageType":"PIPE","status":"SUCCESS"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))

	env := readEnvelope(t, conn)
	assert.Equal(t, ws.TypeNewEvent, env.Type)
	assert.Equal(t, 1, f.store.TotalEventCount())
}

func TestDisconnectRemovesObserver(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	require.Equal(t, ws.TypeInitialData, readEnvelope(t, conn).Type)
	require.Equal(t, 1, f.hub.Count())

	conn.Close()

	require.Eventually(t, func() bool {
		return f.hub.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Publishing after the disconnect must not fail or block.
	_, err := f.gateway.CreateEvent(types.EventSpec{SourcePID: 1, TargetPID: 2, MessageType: types.MessagePipe, Status: types.StatusSuccess})
	require.NoError(t, err)
}
