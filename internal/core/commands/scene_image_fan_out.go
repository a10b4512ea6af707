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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// second stage of a campaign run: one image per scene, rendered concurrently.
//
// Logic Flow:
//  1. Every scene is moved to generating_image before any request is sent, so
//     the guard is settled synchronously. The guard is scoped to the run id;
//     a scene it rejects is reported but does not count as a failed call.
//  2. A worker pool drains a jobs channel; each job is one scene image call.
//     Workers record the outcome on their scene and report on a results channel.
//  3. The command waits for every worker (the barrier), then collects the
//     per-scene errors into the context. A failed scene never fails the chain,
//     so the voice-over stage still runs.
package commands

import (
	goctx "context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// SceneImageFanOut renders the images of all scenes in parallel.
type SceneImageFanOut struct {
	cor.BaseCommand
	client          services.GenerationClient
	store           *model.Store
	numberOfWorkers int
}

// NewSceneImageFanOut creates the fan-out. A worker count below one, or above
// the number of scenes, means one worker per scene.
func NewSceneImageFanOut(name string, client services.GenerationClient, store *model.Store, numberOfWorkers int) *SceneImageFanOut {
	if numberOfWorkers < 1 || numberOfWorkers > model.SceneCount {
		numberOfWorkers = model.SceneCount
	}
	return &SceneImageFanOut{
		BaseCommand:     *cor.NewBaseCommand(name),
		client:          client,
		store:           store,
		numberOfWorkers: numberOfWorkers,
	}
}

// SceneImageJob is one scene image call handed to a worker.
type SceneImageJob struct {
	sceneID int
	ctx     goctx.Context
	span    trace.Span
	request model.ImageRequest
}

// SceneImageResult is the outcome of one job.
type SceneImageResult struct {
	sceneID int
	err     error
}

func (s *SceneImageFanOut) Execute(context cor.Context) {
	input := context.Get(s.GetInputParam()).(model.CampaignInput)
	runID, _ := context.Get(GetRunIDParameterName()).(string)
	snapshot := s.store.Snapshot()
	sceneErrs := make(map[int]error)

	jobs := make(chan *SceneImageJob, model.SceneCount)
	results := make(chan *SceneImageResult, model.SceneCount)

	var wg sync.WaitGroup
	for w := 1; w <= s.numberOfWorkers; w++ {
		wg.Add(1)
		go s.sceneImageWorker(jobs, results, &wg)
	}

	for _, scene := range snapshot.Scenes {
		if err := s.store.BeginRunImage(runID, scene.ID); err != nil {
			trace.SpanFromContext(context.GetContext()).AddEvent("scene image rejected", trace.WithAttributes(
				attribute.Int("scene", scene.ID),
				attribute.String("reason", err.Error())))
			sceneErrs[scene.ID] = err
			continue
		}
		sceneCtx, sceneSpan := s.Tracer.Start(context.GetContext(), fmt.Sprintf("%s_scene_%d", s.GetName(), scene.ID))
		jobs <- &SceneImageJob{
			sceneID: scene.ID,
			ctx:     sceneCtx,
			span:    sceneSpan,
			request: NewSceneImageRequest(input, scene),
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			sceneErrs[r.sceneID] = r.err
			if s.GetErrorCounter() != nil {
				s.GetErrorCounter().Add(context.GetContext(), 1, metric.WithAttributes(attribute.Int("scene", r.sceneID)))
			}
		}
	}
	if len(sceneErrs) == 0 {
		s.Succeed(context)
	}

	context.Add(GetSceneErrorsParameterName(), sceneErrs)
	context.Add(s.GetOutputParam(), input)
}

func (s *SceneImageFanOut) sceneImageWorker(jobs <-chan *SceneImageJob, results chan<- *SceneImageResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		err := paintScene(j.ctx, j.span, s.client, s.store, j.sceneID, j.request)
		j.span.End()
		results <- &SceneImageResult{sceneID: j.sceneID, err: err}
	}
}
