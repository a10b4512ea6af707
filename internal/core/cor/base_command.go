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
// is built on. This file defines `BaseCommand`, the part of a `Command` that
// does not depend on what the command does.
//
// Every step of the run chain and of the scene pipelines embeds `BaseCommand`
// and so gets:
//   - A name used in spans, logs and as the key of its chain errors.
//   - An OpenTelemetry tracer, a meter and a success and an error counter.
//   - Default input and output keys (`CtxIn`, `CtxOut`) so a `BaseChain` can
//     pipe the output of one step into the next one.
//   - `Fail` and `Succeed`, which record the outcome in the context and in
//     the counters in one call.
package cor

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MeterName is the instrumentation scope of every command metric.
const MeterName = "github.com/jaycherian/gcp-go-ugc-studio"

// BaseCommand is the default, embeddable part of a Command.
type BaseCommand struct {
	Name            string              // Unique name of the step, used for spans, metrics and error keys.
	InputParamName  string              // Context key of the step input. Empty means CtxIn.
	OutputParamName string              // Context key of the step output. Empty means CtxOut.
	Tracer          trace.Tracer        // Tracer named after the step.
	Meter           metric.Meter        // Meter of the MeterName scope.
	SuccessCounter  metric.Int64Counter // Incremented by Succeed.
	ErrorCounter    metric.Int64Counter // Incremented by Fail.
}

// NewBaseCommand is the constructor for BaseCommand. It names the command and
// creates its OpenTelemetry instruments from the global providers. A counter
// that cannot be created is logged and left nil; Fail and Succeed skip it.
//
// Inputs:
//   - name: The name of the step. The counters are registered as
//     <name>.counter.success and <name>.counter.error.
//
// Outputs:
//   - *BaseCommand: The command, ready to be embedded by value.
func NewBaseCommand(name string) *BaseCommand {
	// All commands share one instrumentation scope; the name tells them apart.
	meter := otel.Meter(MeterName)

	successCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.success", name))
	if err != nil {
		slog.Error("failed to create success counter", "command", name, "error", err)
	}
	errorCounter, err := meter.Int64Counter(fmt.Sprintf("%s.counter.error", name))
	if err != nil {
		slog.Error("failed to create error counter", "command", name, "error", err)
	}

	return &BaseCommand{
		Name:           name,
		Tracer:         otel.Tracer(name),
		Meter:          meter,
		SuccessCounter: successCounter,
		ErrorCounter:   errorCounter,
	}
}

// GetName returns the name of the command.
func (c *BaseCommand) GetName() string {
	return c.Name
}

// IsExecutable is the default readiness check. Commands with extra inputs,
// such as a scene id, add their own checks on top of it.
//
// Inputs:
//   - context: The chain context the command would run with.
//
// Outputs:
//   - bool: True when the context carries a Go context and a value under the
//     input key.
func (c *BaseCommand) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(c.GetInputParam()) != nil
}

// GetInputParam returns the context key of the command input. It defaults
// to CtxIn, which is where a BaseChain puts the output of the previous step.
func (c *BaseCommand) GetInputParam() string {
	if len(c.InputParamName) == 0 {
		return CtxIn
	}
	return c.InputParamName
}

// GetOutputParam returns the context key the command writes its output to.
// It defaults to CtxOut, which a BaseChain moves to CtxIn for the next step.
func (c *BaseCommand) GetOutputParam() string {
	if len(c.OutputParamName) == 0 {
		return CtxOut
	}
	return c.OutputParamName
}

// GetTracer returns the tracer of the command.
func (c *BaseCommand) GetTracer() trace.Tracer {
	return c.Tracer
}

// GetMeter returns the meter of the command.
func (c *BaseCommand) GetMeter() metric.Meter {
	return c.Meter
}

// GetSuccessCounter returns the success counter. It may be nil.
func (c *BaseCommand) GetSuccessCounter() metric.Int64Counter {
	return c.SuccessCounter
}

// GetErrorCounter returns the error counter. It may be nil.
func (c *BaseCommand) GetErrorCounter() metric.Int64Counter {
	return c.ErrorCounter
}

// Fail records err in the context under the command name and counts it.
// A command failing more than once in one execution ends up with its errors
// joined under its name.
//
// Inputs:
//   - context: The chain context of the current execution.
//   - err: The failure to record.
func (c *BaseCommand) Fail(context Context, err error) {
	context.AddError(c.GetName(), err)
	if c.ErrorCounter != nil {
		c.ErrorCounter.Add(context.GetContext(), 1)
	}
}

// Succeed counts a successful execution. It does not touch the context.
//
// Inputs:
//   - context: The chain context of the current execution.
func (c *BaseCommand) Succeed(context Context) {
	if c.SuccessCounter != nil {
		c.SuccessCounter.Add(context.GetContext(), 1)
	}
}
