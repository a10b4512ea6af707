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

// Package workflow defines the high-level business logic orchestrations,
// combining commands into pipelines. This file implements the campaign run.
//
// Logic Flow:
//  1. StartRun validates the input and takes the single-flight lock on the
//     store (BeginRun). A second call while a run is active reports
//     AlreadyRunning and changes nothing. A scene regenerate or video
//     started before the run must settle first; until then StartRun fails
//     with model.ErrSceneBusy.
//  2. The run chain executes: script, then the image fan-out, then the
//     voice-over. A script failure stops the chain. Scene failures stay on
//     their scenes. A voice-over failure is reported without undoing the
//     earlier stages.
//  3. EndRun is deferred, so the lock is released on every exit path.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// Command names of the run chain. Chain errors are keyed by these names.
const (
	ScriptCommandName    = "generate-script"
	ImagesCommandName    = "generate-scene-images"
	VoiceOverCommandName = "generate-voice-over"
)

// ErrInvalidInput is returned when a run is started without a product name or vibe.
var ErrInvalidInput = fmt.Errorf("%w: productName and vibe are required", services.ErrInvalidInput)

// RunReport is the outcome of one run.
type RunReport struct {
	RunID          string
	AlreadyRunning bool
	ScriptErr      error
	SceneErrs      map[int]error
	AudioErr       error
	Snapshot       model.Snapshot
}

// Err joins every failure of the run, scenes in id order.
func (r *RunReport) Err() error {
	if r == nil {
		return nil
	}
	errs := []error{r.ScriptErr}
	for id := 1; id <= model.SceneCount; id++ {
		errs = append(errs, r.SceneErrs[id])
	}
	errs = append(errs, r.AudioErr)
	return errors.Join(errs...)
}

// CampaignCoordinator runs campaign generation against a Generation Service.
type CampaignCoordinator struct {
	cor.BaseCommand
	store           *model.Store
	client          services.GenerationClient
	handles         commands.AudioAcquirer
	numberOfWorkers int
	chain           cor.Chain
	wg              sync.WaitGroup
}

// NewCampaignCoordinator creates the coordinator. handles may be nil when
// the audio provider always answers with a URL.
func NewCampaignCoordinator(
	store *model.Store,
	client services.GenerationClient,
	handles commands.AudioAcquirer,
	numberOfWorkers int) *CampaignCoordinator {
	c := &CampaignCoordinator{
		BaseCommand:     *cor.NewBaseCommand("campaign-run"),
		store:           store,
		client:          client,
		handles:         handles,
		numberOfWorkers: numberOfWorkers,
	}
	c.initializeChain()
	return c
}

func (c *CampaignCoordinator) initializeChain() {
	out := cor.NewBaseChain(c.GetName())

	// Step 1: the four part script. Failure aborts the run.
	out.AddCommand(commands.NewScriptGenerate(ScriptCommandName, c.client, c.store))

	// Step 2: one image per scene, concurrently, behind a barrier.
	out.AddCommand(commands.NewSceneImageFanOut(ImagesCommandName, c.client, c.store, c.numberOfWorkers))

	// Step 3: the voice-over, best effort.
	out.AddCommand(commands.NewVoiceOver(VoiceOverCommandName, c.client, c.store, c.handles))

	c.chain = out
}

// Execute runs the chain on a prepared context. The caller must hold the run.
func (c *CampaignCoordinator) Execute(context cor.Context) {
	c.chain.Execute(context)
}

// Store returns the state the coordinator mutates.
func (c *CampaignCoordinator) Store() *model.Store {
	return c.store
}

func (c *CampaignCoordinator) begin(ctx context.Context, input model.CampaignInput) (string, bool, error) {
	if strings.TrimSpace(input.ProductName) == "" || strings.TrimSpace(input.Vibe) == "" {
		return "", false, ErrInvalidInput
	}
	runID := uuid.NewString()
	started, err := c.store.BeginRun(runID, input)
	if !started {
		// err is nil when another run holds the campaign, and reports the busy
		// scene when an earlier scene operation is still in flight.
		return "", false, err
	}
	if err != nil {
		// The run is started; only the previous voice-over could not be removed.
		slog.WarnContext(ctx, "failed to release previous voice-over", "run", runID, "error", err)
	}
	slog.InfoContext(ctx, "campaign run started", "run", runID, "product", input.ProductName, "vibe", input.Vibe)
	return runID, true, nil
}

// StartRun executes a whole run and returns its report. It returns the
// script error when the run was aborted. A call made while another run is
// in flight returns a report with AlreadyRunning set and a nil error. A call
// made while a scene operation is in flight fails with model.ErrSceneBusy.
func (c *CampaignCoordinator) StartRun(ctx context.Context, input model.CampaignInput) (*RunReport, error) {
	runID, started, err := c.begin(ctx, input)
	if err != nil {
		return nil, err
	}
	if !started {
		return &RunReport{AlreadyRunning: true, Snapshot: c.store.Snapshot()}, nil
	}
	report := c.run(ctx, runID, input)
	return report, report.ScriptErr
}

// StartRunAsync validates and acquires the run synchronously, then runs the
// stages in the background. ctx must outlive the run; request contexts do not.
func (c *CampaignCoordinator) StartRunAsync(ctx context.Context, input model.CampaignInput) (runID string, started bool, err error) {
	runID, started, err = c.begin(ctx, input)
	if err != nil || !started {
		return runID, started, err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, runID, input)
	}()
	return runID, true, nil
}

// Wait blocks until every background run has finished.
func (c *CampaignCoordinator) Wait() {
	c.wg.Wait()
}

func (c *CampaignCoordinator) run(ctx context.Context, runID string, input model.CampaignInput) (report *RunReport) {
	report = &RunReport{RunID: runID, SceneErrs: make(map[int]error)}
	defer func() {
		c.store.EndRun()
		report.Snapshot = c.store.Snapshot()
	}()

	chainCtx := cor.NewBaseContext(ctx)
	chainCtx.Add(cor.CtxIn, input)
	chainCtx.Add(commands.GetRunIDParameterName(), runID)
	c.Execute(chainCtx)

	errs := chainCtx.GetErrors()
	report.ScriptErr = errs[ScriptCommandName]
	report.AudioErr = errs[VoiceOverCommandName]
	if sceneErrs, ok := chainCtx.Get(commands.GetSceneErrorsParameterName()).(map[int]error); ok {
		report.SceneErrs = sceneErrs
	}

	switch {
	case report.ScriptErr != nil:
		slog.ErrorContext(ctx, "campaign run aborted", "run", runID, "error", report.ScriptErr)
	case len(report.SceneErrs) > 0 || report.AudioErr != nil:
		slog.WarnContext(ctx, "campaign run finished with failures", "run", runID, "failed_scenes", len(report.SceneErrs), "error", report.Err())
	default:
		slog.InfoContext(ctx, "campaign run finished", "run", runID)
	}
	return report
}
