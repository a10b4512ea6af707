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

package workflow_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-ugc-studio/internal/testutil"
)

const pollInterval = time.Millisecond

// newPaintedStore returns a store whose first three scenes have an image and
// whose last scene only has a script.
func newPaintedStore(t *testing.T) *model.Store {
	t.Helper()
	store := model.NewStore(nil)
	started, err := store.BeginRun("run-1", test.GetExampleInput())
	require.NoError(t, err)
	require.True(t, started)
	require.NoError(t, store.AssignScripts(test.GetExampleScriptParts(), "full"))
	for id := 1; id <= 3; id++ {
		require.NoError(t, store.BeginRunImage("run-1", id))
		require.NoError(t, store.CompleteImage(id, "https://assets.example.com/images/still.png"))
	}
	store.EndRun()
	return store
}

// TestGenerateVideoPollsUntilDone checks that observers see each polling
// attempt in order before the scene reaches video_ready.
func TestGenerateVideoPollsUntilDone(t *testing.T) {
	var checks atomic.Int32
	client := &test.FakeGenerationClient{
		CheckFunc: func(_ context.Context, jobID string) (model.VideoStatus, error) {
			if checks.Add(1) < 3 {
				return model.VideoStatus{JobID: jobID, State: model.VideoStatePending}, nil
			}
			return model.VideoStatus{JobID: jobID, State: model.VideoStateDone, VideoURL: "https://assets.example.com/videos/1.mp4"}, nil
		},
	}
	store := newPaintedStore(t)
	recorder := &test.Recorder{}
	store.Subscribe(recorder)
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	admitted, err := pipeline.GenerateVideo(1)
	require.NoError(t, err)
	assert.True(t, admitted)
	pipeline.Wait()

	scene, err := store.Scene(1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVideoReady(), scene.Status)
	assert.Equal(t, "https://assets.example.com/videos/1.mp4", scene.VideoURL)

	assert.Equal(t, []model.SceneStatus{
		model.StatusGeneratingVideo(),
		model.StatusPolling(0, 10),
		model.StatusPolling(1, 10),
		model.StatusPolling(2, 10),
		model.StatusPolling(3, 10),
		model.StatusVideoReady(),
	}, recorder.SceneStatuses(1))

	require.Len(t, client.VideoCalls(), 1)
	assert.Equal(t, model.VideoRequest{
		SceneScript: test.GetExampleScriptParts()[0],
		ImageURL:    "https://assets.example.com/images/still.png",
	}, client.VideoCalls()[0])
	assert.Equal(t, []string{"operations/video-1", "operations/video-1", "operations/video-1"}, client.CheckedJobIDs())
}

// TestGenerateVideoTimesOut never finishes the job and expects the scene to
// fail after the configured number of checks.
func TestGenerateVideoTimesOut(t *testing.T) {
	client := &test.FakeGenerationClient{
		CheckFunc: func(_ context.Context, jobID string) (model.VideoStatus, error) {
			return model.VideoStatus{JobID: jobID, State: model.VideoStatePending}, nil
		},
	}
	store := newPaintedStore(t)
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	admitted, err := pipeline.GenerateVideo(2)
	require.NoError(t, err)
	require.True(t, admitted)
	pipeline.Wait()

	scene, _ := store.Scene(2)
	assert.Equal(t, model.StatusError(), scene.Status)
	assert.Contains(t, scene.Error, "timed out")
	assert.Empty(t, scene.VideoURL)
	assert.Len(t, client.CheckedJobIDs(), 10)
}

func TestGenerateVideoFailures(t *testing.T) {
	t.Run("job failed", func(t *testing.T) {
		client := &test.FakeGenerationClient{
			CheckFunc: func(_ context.Context, jobID string) (model.VideoStatus, error) {
				return model.VideoStatus{JobID: jobID, State: model.VideoStateFailed, Error: "content rejected"}, nil
			},
		}
		store := newPaintedStore(t)
		pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

		_, err := pipeline.GenerateVideo(1)
		require.NoError(t, err)
		pipeline.Wait()

		scene, _ := store.Scene(1)
		assert.Equal(t, model.StatusError(), scene.Status)
		assert.Contains(t, scene.Error, "content rejected")
		assert.Len(t, client.CheckedJobIDs(), 1)
	})

	t.Run("submission rejected", func(t *testing.T) {
		client := &test.FakeGenerationClient{
			SubmitFunc: func(context.Context, model.VideoRequest) (string, error) {
				return "", &services.UpstreamError{Status: 402, Message: "insufficient credits"}
			},
		}
		store := newPaintedStore(t)
		pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

		admitted, err := pipeline.GenerateVideo(3)
		require.NoError(t, err)
		assert.True(t, admitted)
		pipeline.Wait()

		scene, _ := store.Scene(3)
		assert.Equal(t, model.StatusError(), scene.Status)
		assert.Contains(t, scene.Error, "insufficient credits")
		assert.Empty(t, client.CheckedJobIDs())
	})

	t.Run("missing job id", func(t *testing.T) {
		client := &test.FakeGenerationClient{
			SubmitFunc: func(context.Context, model.VideoRequest) (string, error) {
				return "", nil
			},
		}
		store := newPaintedStore(t)
		pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

		_, err := pipeline.GenerateVideo(1)
		require.NoError(t, err)
		pipeline.Wait()

		scene, _ := store.Scene(1)
		assert.Equal(t, model.StatusError(), scene.Status)
		assert.Empty(t, client.CheckedJobIDs())
	})
}

func TestGenerateVideoGuards(t *testing.T) {
	release := make(chan struct{})
	client := &test.FakeGenerationClient{
		SubmitFunc: func(context.Context, model.VideoRequest) (string, error) {
			<-release
			return "operations/slow", nil
		},
	}
	store := newPaintedStore(t)
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	admitted, err := pipeline.GenerateVideo(1)
	require.NoError(t, err)
	require.True(t, admitted)

	// While the job is in flight the scene accepts nothing else.
	admitted, err = pipeline.GenerateVideo(1)
	assert.False(t, admitted)
	assert.ErrorIs(t, err, model.ErrSceneBusy)
	assert.ErrorIs(t, pipeline.RegenerateImage(1), model.ErrSceneBusy)

	// Scene 4 never got an image.
	admitted, err = pipeline.GenerateVideo(4)
	assert.False(t, admitted)
	assert.ErrorIs(t, err, model.ErrSceneNoImage)

	_, err = pipeline.GenerateVideo(9)
	assert.ErrorIs(t, err, model.ErrUnknownScene)

	close(release)
	pipeline.Wait()

	scene, _ := store.Scene(1)
	require.Equal(t, model.StatusVideoReady(), scene.Status)
	admitted, err = pipeline.GenerateVideo(1)
	assert.False(t, admitted)
	assert.ErrorIs(t, err, model.ErrSceneHasVideo)
	assert.Len(t, client.VideoCalls(), 1)
}

func TestRegenerateImageDropsVideo(t *testing.T) {
	client := &test.FakeGenerationClient{}
	store := newPaintedStore(t)
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	_, err := pipeline.GenerateVideo(1)
	require.NoError(t, err)
	pipeline.Wait()
	scene, _ := store.Scene(1)
	require.NotEmpty(t, scene.VideoURL)

	require.NoError(t, pipeline.RegenerateImage(1))
	pipeline.Wait()

	scene, _ = store.Scene(1)
	assert.Equal(t, model.StatusReady(), scene.Status)
	assert.Equal(t, "https://assets.example.com/images/1.png", scene.ImageURL)
	assert.Empty(t, scene.VideoURL)

	require.Len(t, client.ImageCalls(), 1)
	call := client.ImageCalls()[0]
	assert.Equal(t, model.SceneTemplates[0].Role, call.SceneRole)
	assert.Equal(t, test.GetExampleScriptParts()[0], call.Script)

	// A new video can be made from the new image.
	admitted, err := pipeline.GenerateVideo(1)
	require.NoError(t, err)
	assert.True(t, admitted)
	pipeline.Wait()
}

func TestRegenerateImageFailure(t *testing.T) {
	client := &test.FakeGenerationClient{
		ImageFunc: func(context.Context, model.ImageRequest) (string, error) {
			return "", nil
		},
	}
	store := newPaintedStore(t)
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	require.NoError(t, pipeline.RegenerateImage(4))
	pipeline.Wait()

	scene, _ := store.Scene(4)
	assert.Equal(t, model.StatusError(), scene.Status)
	assert.Contains(t, scene.Error, services.ErrMissingImageURL.Error())
}

// TestGenerateVideoStopsOnShutdown cancels the pipeline context while the
// poller waits for its first tick. The scene must not stay in polling.
func TestGenerateVideoStopsOnShutdown(t *testing.T) {
	client := &test.FakeGenerationClient{}
	store := newPaintedStore(t)
	recorder := &test.Recorder{}
	store.Subscribe(recorder)

	pipelineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pipeline := workflow.NewScenePipeline(pipelineCtx, store, client, time.Hour, 10)

	admitted, err := pipeline.GenerateVideo(1)
	require.NoError(t, err)
	require.True(t, admitted)
	require.Eventually(t, func() bool {
		scene, _ := store.Scene(1)
		return scene.Status == model.StatusPolling(0, 10)
	}, 5*time.Second, time.Millisecond)

	cancel()
	pipeline.Wait()

	scene, err := store.Scene(1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError(), scene.Status)
	assert.Contains(t, scene.Error, "polling stopped")
	assert.Empty(t, scene.VideoURL)
	assert.Empty(t, client.CheckedJobIDs())
	assert.Equal(t, []model.SceneStatus{
		model.StatusGeneratingVideo(),
		model.StatusPolling(0, 10),
		model.StatusError(),
	}, recorder.SceneStatuses(1))
}

// TestStartRunWaitsForRegenerate keeps a regenerate of the previous product
// in flight while a new run is requested.
func TestStartRunWaitsForRegenerate(t *testing.T) {
	release := make(chan struct{})
	var hold atomic.Bool
	client := &test.FakeGenerationClient{
		ImageFunc: func(_ context.Context, req model.ImageRequest) (string, error) {
			if req.ProductName == "OldProduct" && hold.Load() {
				<-release
				return "https://assets.example.com/stale.png", nil
			}
			return "https://assets.example.com/" + req.ProductName + ".png", nil
		},
	}
	coordinator, _ := newCoordinator(t, client)
	store := coordinator.Store()
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	old := test.GetExampleInput()
	old.ProductName = "OldProduct"
	_, err := coordinator.StartRun(ctx, old)
	require.NoError(t, err)

	hold.Store(true)
	require.NoError(t, pipeline.RegenerateImage(2))

	report, err := coordinator.StartRun(ctx, test.GetExampleInput())
	assert.ErrorIs(t, err, model.ErrSceneBusy)
	assert.Nil(t, report)
	assert.Equal(t, "OldProduct", store.Input().ProductName)

	close(release)
	pipeline.Wait()
	scene, _ := store.Scene(2)
	require.Equal(t, model.StatusReady(), scene.Status)
	require.Equal(t, "https://assets.example.com/stale.png", scene.ImageURL)

	report, err = coordinator.StartRun(ctx, test.GetExampleInput())
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	for _, scene := range report.Snapshot.Scenes {
		assert.Equal(t, model.StatusReady(), scene.Status)
		assert.Equal(t, "https://assets.example.com/EcoBottle.png", scene.ImageURL)
	}
}

// TestStartRunWaitsForVideo keeps a status check in flight while a new run
// is requested. The late failure lands on the scene it belongs to.
func TestStartRunWaitsForVideo(t *testing.T) {
	checking := make(chan struct{})
	release := make(chan struct{})
	client := &test.FakeGenerationClient{
		CheckFunc: func(context.Context, string) (model.VideoStatus, error) {
			close(checking)
			<-release
			return model.VideoStatus{}, &services.UpstreamError{Status: 503, Message: "vendor 503"}
		},
	}
	coordinator, _ := newCoordinator(t, client)
	store := coordinator.Store()
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	_, err := coordinator.StartRun(ctx, test.GetExampleInput())
	require.NoError(t, err)
	admitted, err := pipeline.GenerateVideo(1)
	require.NoError(t, err)
	require.True(t, admitted)
	<-checking

	_, err = coordinator.StartRun(ctx, test.GetExampleInput())
	assert.ErrorIs(t, err, model.ErrSceneBusy)
	scene, _ := store.Scene(1)
	assert.Equal(t, model.StatusPolling(1, 10), scene.Status)

	close(release)
	pipeline.Wait()
	scene, _ = store.Scene(1)
	require.Equal(t, model.StatusError(), scene.Status)
	require.Contains(t, scene.Error, "vendor 503")

	report, err := coordinator.StartRun(ctx, test.GetExampleInput())
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	scene, _ = store.Scene(1)
	assert.Equal(t, model.StatusReady(), scene.Status)
	assert.Empty(t, scene.Error)
}

// TestSceneActionsWaitForRun asks for a regenerate and a video on a scene
// that is already painted while the rest of the run is still rendering.
func TestSceneActionsWaitForRun(t *testing.T) {
	release := make(chan struct{})
	client := &test.FakeGenerationClient{
		ImageFunc: func(_ context.Context, req model.ImageRequest) (string, error) {
			if req.SceneRole == model.SceneTemplates[1].Role {
				<-release
			}
			return "https://assets.example.com/still.png", nil
		},
	}
	coordinator, _ := newCoordinator(t, client)
	store := coordinator.Store()
	pipeline := workflow.NewScenePipeline(ctx, store, client, pollInterval, 10)

	_, started, err := coordinator.StartRunAsync(ctx, test.GetExampleInput())
	require.NoError(t, err)
	require.True(t, started)
	require.Eventually(t, func() bool {
		scene, _ := store.Scene(1)
		return scene.Status == model.StatusReady()
	}, 5*time.Second, time.Millisecond)

	assert.ErrorIs(t, pipeline.RegenerateImage(1), model.ErrRunInProgress)
	admitted, err := pipeline.GenerateVideo(1)
	assert.False(t, admitted)
	assert.ErrorIs(t, err, model.ErrRunInProgress)

	close(release)
	coordinator.Wait()
	snap := store.Snapshot()
	assert.False(t, snap.IsGenerating)
	for _, scene := range snap.Scenes {
		assert.Equal(t, model.StatusReady(), scene.Status)
	}
	assert.Len(t, client.ImageCalls(), model.SceneCount)
	assert.Empty(t, client.VideoCalls())
}
