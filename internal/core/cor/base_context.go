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

// Package cor (Chain of Responsibility) is the runtime every campaign pipeline
// is built on. This file defines `BaseContext`, the default `Context`.
//
// A context is created for each execution of a chain and is handed to every
// command in it. Commands read their inputs from it, write their outputs to
// it and record their failures in it. It holds:
//   - A map of arbitrary values keyed by parameter name (`data`).
//   - A map of errors keyed by the name of the command that failed (`errors`).
//   - The Go `context.Context` of the execution, which carries cancellation
//     and the current OpenTelemetry span.
//
// Fan-out commands report into the context from several goroutines, so all
// access goes through one RWMutex.
package cor

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
)

// BaseContext is the default Context. A single RWMutex guards the data, the
// errors and the Go context, so workers started by a command may report into
// it directly.
type BaseContext struct {
	mu      sync.RWMutex     // Guards every field below.
	data    map[string]any   // Values keyed by parameter name.
	errors  map[string]error // Failures keyed by command name.
	context context.Context  // Cancellation and the current span.
}

// NewBaseContext is the constructor for BaseContext.
//
// Inputs:
//   - ctx: The Go context of the execution. Cancelling it stops the commands
//     that honour it, such as the video poller.
//
// Outputs:
//   - Context: An empty context bound to ctx.
func NewBaseContext(ctx context.Context) Context {
	return &BaseContext{
		data:    make(map[string]any),
		errors:  make(map[string]error),
		context: ctx,
	}
}

// SetContext replaces the Go context. BaseChain uses it to hand each command
// a context carrying its own span.
//
// Inputs:
//   - ctx: The new Go context.
func (c *BaseContext) SetContext(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.context = ctx
}

// GetContext returns the current Go context.
func (c *BaseContext) GetContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.context
}

// Add stores value under key, replacing any previous value.
//
// Inputs:
//   - key: The parameter name.
//   - value: The value to store.
//
// Outputs:
//   - Context: The receiver, so calls can be chained.
func (c *BaseContext) Add(key string, value any) Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c
}

// Get returns the value stored under key, or nil.
func (c *BaseContext) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

// Remove deletes key. A missing key is ignored.
func (c *BaseContext) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// AddError records err under key. A second error for the same key is joined
// with the first rather than replacing it. A nil err is ignored.
//
// Inputs:
//   - key: The name of the failing command.
//   - err: The failure.
func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.errors[key]; ok {
		err = errors.Join(prev, err)
	}
	c.errors[key] = err
}

// GetErrors returns a copy of the recorded errors.
func (c *BaseContext) GetErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.errors)
}

// HasErrors reports whether any command has failed.
func (c *BaseContext) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors) > 0
}

// Err joins every recorded error in key order, or returns nil.
func Err(c Context) error {
	errs := c.GetErrors()
	if len(errs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	joined := make([]error, 0, len(keys))
	for _, k := range keys {
		joined = append(joined, errs[k])
	}
	return errors.Join(joined...)
}
