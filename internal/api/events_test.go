// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/api"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	test "github.com/jaycherian/gcp-go-ugc-studio/internal/testutil"
)

func newEventsServer(t *testing.T, origins []string) (*httptest.Server, *model.Store, *api.EventHub) {
	t.Helper()
	store := model.NewStore(nil)
	hub := api.NewEventHub(origins)
	store.Subscribe(hub)
	r := api.NewRouter("test", nil)
	api.EventsRouter(r, hub, store.Snapshot)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, store, hub
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/campaign/events"
}

func readSnapshot(t *testing.T, conn *websocket.Conn) model.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var snap model.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	return snap
}

func TestEventsStreamSnapshots(t *testing.T) {
	server, store, hub := newEventsServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readSnapshot(t, conn)
	assert.Empty(t, first.RunID)
	assert.Equal(t, model.StatusPending(), first.Scenes[0].Status)
	assert.Equal(t, 1, hub.Len())

	started, err := store.BeginRun("run-1", test.GetExampleInput())
	require.NoError(t, err)
	require.True(t, started)

	next := readSnapshot(t, conn)
	assert.Equal(t, "run-1", next.RunID)
	assert.True(t, next.IsGenerating)

	// The mailbox keeps only the newest snapshot.
	require.NoError(t, store.AssignScripts(test.GetExampleScriptParts(), "full"))
	store.EndRun()
	last := readSnapshot(t, conn)
	if last.IsGenerating {
		last = readSnapshot(t, conn)
	}
	assert.False(t, last.IsGenerating)
	assert.Equal(t, model.StatusScriptReady(), last.Scenes[0].Status)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestEventsRejectForeignOrigins(t *testing.T) {
	server, _, hub := newEventsServer(t, []string{"http://studio.example.com"})

	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Len())

	header = http.Header{"Origin": []string{"http://studio.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	require.NoError(t, err)
	defer conn.Close()
	readSnapshot(t, conn)
}
