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
// combining commands into pipelines. This file implements the per-scene
// actions that run outside of a campaign run.
//
// Logic Flow:
//  1. Each action first moves the scene through its store guard. The guard
//     runs synchronously, so a scene never has two operations in flight.
//  2. The remote work then runs in a tracked goroutine on the pipeline's root
//     context, not on the caller's request context.
//  3. Video generation is two chained commands: job submission, then the
//     poller, which owns the scene until it reaches video_ready or error.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// ScenePipeline regenerates scene images and turns scene images into videos.
type ScenePipeline struct {
	ctx        context.Context
	store      *model.Store
	imageChain cor.Chain
	videoChain cor.Chain
	wg         sync.WaitGroup
}

// NewScenePipeline creates the pipeline. ctx is the lifetime of every
// background operation; cancelling it stops pollers and marks their scenes
// as failed.
func NewScenePipeline(
	ctx context.Context,
	store *model.Store,
	client services.GenerationClient,
	interval time.Duration,
	maxAttempts int) *ScenePipeline {
	p := &ScenePipeline{ctx: ctx, store: store}

	p.imageChain = cor.NewBaseChain("scene-image").
		AddCommand(commands.NewSceneImage("regenerate-scene-image", client, store))

	p.videoChain = cor.NewBaseChain("scene-video").
		AddCommand(commands.NewVideoSubmit("submit-scene-video", client, store)).
		AddCommand(commands.NewVideoPoll("poll-scene-video", client, store, interval, maxAttempts))

	return p
}

// RegenerateImage replaces the image of a scene. It returns the guard error
// when the scene is busy or has no script; nothing is started then.
func (p *ScenePipeline) RegenerateImage(sceneID int) error {
	if err := p.store.BeginImage(sceneID); err != nil {
		return err
	}
	p.start(p.imageChain, sceneID)
	return nil
}

// GenerateVideo admits a video job for a scene. When the scene is busy, has
// no image or already has a video the call is a no-op: admitted is false and
// err tells why.
func (p *ScenePipeline) GenerateVideo(sceneID int) (admitted bool, err error) {
	if err := p.store.BeginVideo(sceneID); err != nil {
		return false, err
	}
	p.start(p.videoChain, sceneID)
	return true, nil
}

// Wait blocks until all background scene operations have ended.
func (p *ScenePipeline) Wait() {
	p.wg.Wait()
}

func (p *ScenePipeline) start(chain cor.Chain, sceneID int) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		chainCtx := cor.NewBaseContext(p.ctx)
		chainCtx.Add(cor.CtxIn, sceneID)
		chainCtx.Add(commands.GetSceneIDParameterName(), sceneID)
		chain.Execute(chainCtx)
		if err := cor.Err(chainCtx); err != nil {
			slog.WarnContext(p.ctx, "scene operation failed", "pipeline", chain.GetName(), "scene", sceneID, "error", err)
		}
	}()
}
