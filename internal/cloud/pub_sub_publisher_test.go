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

package cloud_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
)

type runEvent struct {
	RunID string `json:"runId"`
	Done  bool   `json:"done"`
}

func newFakePubSub(t *testing.T) *pubsub.Client {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestPubSubEventPublisher publishes two events to an in-process Pub/Sub
// server and reads them back through a subscription.
func TestPubSubEventPublisher(t *testing.T) {
	ctx := context.Background()
	client := newFakePubSub(t)

	topic, err := client.CreateTopic(ctx, "campaign-events")
	require.NoError(t, err)
	sub, err := client.CreateSubscription(ctx, "campaign-events-sub", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	publisher := cloud.NewPubSubEventPublisher(ctx, client, "campaign-events", func(e runEvent) map[string]string {
		return map[string]string{"run_id": e.RunID}
	})
	publisher.OnChange(runEvent{RunID: "run-1"})
	publisher.OnChange(runEvent{RunID: "run-1", Done: true})
	publisher.Stop()

	receiveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var mu sync.Mutex
	received := make(map[string]runEvent)
	err = sub.Receive(receiveCtx, func(_ context.Context, m *pubsub.Message) {
		m.Ack()
		var e runEvent
		if json.Unmarshal(m.Data, &e) != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		received[m.Attributes["sequence"]] = e
		if m.Attributes["run_id"] != "run-1" {
			t.Errorf("unexpected run_id attribute %q", m.Attributes["run_id"])
		}
		if len(received) == 2 {
			cancel()
		}
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, map[string]runEvent{
		"1": {RunID: "run-1"},
		"2": {RunID: "run-1", Done: true},
	}, received)
}
