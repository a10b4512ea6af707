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
// video job poller.
//
// Logic Flow:
//  1. The scene enters polling(0, max) as soon as the job is admitted.
//  2. On every tick of a fixed interval the attempt count increases, the scene
//     shows polling(k, max) and the job status is checked once.
//  3. A finished job stores the video and the scene is video_ready. A failed
//     job, a failed check or running past the attempt ceiling mark the scene
//     as error. There are no retries and no backoff.
//  4. Only the process context stops the loop early; the scene is then marked
//     as error so it never stays in polling.
package commands

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

var (
	ErrVideoTimedOut = errors.New("video generation timed out")
	ErrVideoFailed   = errors.New("video generation failed")
)

// VideoPoll polls an admitted video job until it reaches a terminal state.
type VideoPoll struct {
	cor.BaseCommand
	checker     services.VideoStatusChecker
	store       *model.Store
	interval    time.Duration
	maxAttempts int
}

func NewVideoPoll(name string, checker services.VideoStatusChecker, store *model.Store, interval time.Duration, maxAttempts int) *VideoPoll {
	out := &VideoPoll{
		BaseCommand: *cor.NewBaseCommand(name),
		checker:     checker,
		store:       store,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
	out.InputParamName = GetVideoJobParameterName()
	return out
}

func (v *VideoPoll) IsExecutable(context cor.Context) bool {
	return v.BaseCommand.IsExecutable(context) && context.Get(GetSceneIDParameterName()) != nil
}

func (v *VideoPoll) Execute(context cor.Context) {
	jobID := context.Get(v.GetInputParam()).(string)
	sceneID := context.Get(GetSceneIDParameterName()).(int)
	ctx := context.GetContext()

	fail := func(err error) {
		err = fmt.Errorf("scene %d video: %w", sceneID, err)
		_ = v.store.FailScene(sceneID, err)
		v.Fail(context, err)
	}

	if err := v.store.SetPolling(sceneID, 0, v.maxAttempts); err != nil {
		v.Fail(context, err)
		return
	}

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			fail(fmt.Errorf("polling stopped: %w", ctx.Err()))
			return
		case <-ticker.C:
		}
		if err := v.store.SetPolling(sceneID, attempt, v.maxAttempts); err != nil {
			v.Fail(context, err)
			return
		}

		attemptCtx, span := v.Tracer.Start(ctx, fmt.Sprintf("%s_attempt_%d", v.GetName(), attempt))
		span.SetAttributes(attribute.String("job", jobID), attribute.Int("scene", sceneID))
		status, err := v.checker.CheckVideo(attemptCtx, jobID)
		if err != nil {
			span.SetStatus(codes.Error, "status check failed")
			span.End()
			fail(err)
			return
		}
		span.SetAttributes(attribute.String("state", string(status.State)))
		span.End()

		switch status.State {
		case model.VideoStateDone:
			if status.VideoURL == "" {
				fail(fmt.Errorf("%w: job %s finished without a video url", ErrVideoFailed, jobID))
				return
			}
			if err := v.store.CompleteVideo(sceneID, status.VideoURL); err != nil {
				v.Fail(context, err)
				return
			}
			v.Succeed(context)
			context.Add(v.GetOutputParam(), status.VideoURL)
			return
		case model.VideoStateFailed:
			fail(fmt.Errorf("%w: %s", ErrVideoFailed, status.Error))
			return
		}
	}
	fail(fmt.Errorf("%w after %d attempts", ErrVideoTimedOut, v.maxAttempts))
}
