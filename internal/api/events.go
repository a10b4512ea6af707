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

// Package api contains the HTTP surface of the server. This file holds the
// websocket stream of campaign snapshots.
//
// Logic Flow:
//  1. EventHub is a store observer. Every change is offered to each connected
//     client through a one-slot mailbox; a slow client only ever misses
//     intermediate snapshots, never the latest one, and never blocks the store.
//  2. A new connection first receives the current snapshot, then every change.
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
)

const writeTimeout = 10 * time.Second

// EventHub fans store snapshots out to websocket clients.
type EventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan model.Snapshot]struct{}
}

// NewEventHub creates a hub accepting connections from any origin in
// allowedOrigins; an empty list accepts all of them.
func NewEventHub(allowedOrigins []string) *EventHub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return len(allowed) == 0 || allowed[r.Header.Get("Origin")]
			},
		},
		clients: make(map[chan model.Snapshot]struct{}),
	}
}

// OnChange implements model.Observer.
func (h *EventHub) OnChange(snapshot model.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for mailbox := range h.clients {
		select {
		case <-mailbox:
		default:
		}
		mailbox <- snapshot
	}
}

func (h *EventHub) add() chan model.Snapshot {
	mailbox := make(chan model.Snapshot, 1)
	h.mu.Lock()
	h.clients[mailbox] = struct{}{}
	h.mu.Unlock()
	return mailbox
}

func (h *EventHub) remove(mailbox chan model.Snapshot) {
	h.mu.Lock()
	delete(h.clients, mailbox)
	h.mu.Unlock()
}

// Len returns the number of connected clients.
func (h *EventHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// EventsRouter registers the websocket endpoint. current supplies the
// snapshot sent on connect.
func EventsRouter(r gin.IRouter, hub *EventHub, current func() model.Snapshot) {
	r.GET("/campaign/events", func(c *gin.Context) {
		conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already answered the client.
			slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		mailbox := hub.add()
		defer hub.remove(mailbox)

		// The reader only notices the client going away.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		send := func(s model.Snapshot) bool {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			return conn.WriteJSON(s) == nil
		}
		if !send(current()) {
			return
		}
		for {
			select {
			case <-closed:
				return
			case <-c.Request.Context().Done():
				return
			case s := <-mailbox:
				if !send(s) {
					return
				}
			}
		}
	})
}
