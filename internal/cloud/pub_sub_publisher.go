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

// Package cloud provides components for interacting with Google Cloud services.
// This file defines the publisher that fans campaign state changes out to a
// Pub/Sub topic, so other services can follow a run without polling the API.
//
// Logic Flow:
//  1. The publisher is registered as an observer of the campaign store.
//  2. Each change is encoded as JSON and handed to topic.Publish, which batches
//     and sends in the background. OnChange never waits for the broker.
//  3. Publish results are collected in a goroutine and failures are logged.
//  4. Stop flushes pending messages.
package cloud

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PubSubEventPublisher publishes values to a topic. It is generic over the
// payload so the cloud package does not depend on the domain model.
type PubSubEventPublisher[T any] struct {
	ctx   context.Context
	topic *pubsub.Topic
	attrs func(T) map[string]string
	seq   atomic.Int64
	wg    sync.WaitGroup
}

// NewPubSubEventPublisher binds a publisher to topicID. attrs, when not nil,
// derives message attributes (used for subscription filters) from a payload.
func NewPubSubEventPublisher[T any](ctx context.Context, client *pubsub.Client, topicID string, attrs func(T) map[string]string) *PubSubEventPublisher[T] {
	return &PubSubEventPublisher[T]{
		ctx:   ctx,
		topic: client.Topic(topicID),
		attrs: attrs,
	}
}

// OnChange publishes value. Ordering across messages is not guaranteed by the
// topic; consumers use the sequence attribute.
func (p *PubSubEventPublisher[T]) OnChange(value T) {
	p.Publish(value)
}

// Publish encodes value and sends it asynchronously.
func (p *PubSubEventPublisher[T]) Publish(value T) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("failed to encode event", "error", err)
		return
	}
	attributes := map[string]string{"sequence": strconv.FormatInt(p.seq.Add(1), 10)}
	if p.attrs != nil {
		for k, v := range p.attrs(value) {
			attributes[k] = v
		}
	}

	tracer := otel.Tracer("event-publisher")
	spanCtx, span := tracer.Start(p.ctx, "publish-event")
	span.SetAttributes(attribute.String("topic", p.topic.ID()))
	result := p.topic.Publish(spanCtx, &pubsub.Message{Data: data, Attributes: attributes})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer span.End()
		if _, err := result.Get(spanCtx); err != nil {
			span.SetStatus(codes.Error, "publish failed")
			slog.Error("failed to publish event", "topic", p.topic.ID(), "error", err)
			return
		}
		span.SetStatus(codes.Ok, "published")
	}()
}

// Stop flushes pending messages and waits for their results.
func (p *PubSubEventPublisher[T]) Stop() {
	p.topic.Stop()
	p.wg.Wait()
}
