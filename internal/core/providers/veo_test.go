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

package providers_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/providers"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fakeVeo struct {
	mu         sync.Mutex
	prompt     string
	image      *genai.Image
	config     *genai.GenerateVideosConfig
	operations map[string]*genai.GenerateVideosOperation
	lookups    int
}

func (f *fakeVeo) GenerateVideos(_ context.Context, _ string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompt, f.image, f.config = prompt, image, config
	return &genai.GenerateVideosOperation{Name: "models/veo/operations/op-1"}, nil
}

func (f *fakeVeo) GetVideosOperation(_ context.Context, name string) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	op, ok := f.operations[name]
	if !ok {
		return nil, errors.New("operation not found")
	}
	return op, nil
}

func (f *fakeVeo) Download(context.Context, *genai.Video) ([]byte, error) {
	return []byte("downloaded-mp4"), nil
}

type memoryAssets struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryAssets) Put(_ context.Context, name string, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[name] = data
	return "https://assets.example.com/" + name, nil
}

func newVeoProvider(t *testing.T, api *fakeVeo, assets cloud.AssetStore) *providers.VeoVideoProvider {
	t.Helper()
	p := providers.NewVeoVideoProvider(nil, assets, cloud.VideoModel{Model: "veo-test"}, "campaigns", newPrompts(t))
	p.API = api
	return p
}

func TestVeoSubmitVideo(t *testing.T) {
	api := &fakeVeo{}
	p := newVeoProvider(t, api, &memoryAssets{})
	require.NoError(t, p.CheckCredentials())

	imageURL, err := providers.EncodeDataURL(pngHeader)
	require.NoError(t, err)

	jobID, err := p.SubmitVideo(context.Background(), model.VideoRequest{SceneScript: "grab yours today", ImageURL: imageURL})
	require.NoError(t, err)
	assert.Equal(t, "models/veo/operations/op-1", jobID)
	assert.Contains(t, api.prompt, "grab yours today")
	assert.Equal(t, "image/png", api.image.MIMEType)
	assert.Equal(t, pngHeader, api.image.ImageBytes)
	assert.Equal(t, providers.AspectRatio, api.config.AspectRatio)
	assert.Equal(t, int32(providers.VideoDurationSeconds), *api.config.DurationSeconds)
}

func TestVeoSubmitRejectsNonImages(t *testing.T) {
	p := newVeoProvider(t, &fakeVeo{}, &memoryAssets{})
	_, err := p.SubmitVideo(context.Background(), model.VideoRequest{SceneScript: "s", ImageURL: "data:image/png;base64,cHJvZHVjdA=="})
	assert.ErrorIs(t, err, providers.ErrNotAnImage)
}

// TestVeoCheckVideo covers the ways a finished operation can hand back a
// clip, and the cache of resolved URLs.
func TestVeoCheckVideo(t *testing.T) {
	api := &fakeVeo{operations: map[string]*genai.GenerateVideosOperation{
		"op-running": {Name: "op-running"},
		"op-inline": {Name: "op-inline", Done: true, Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{VideoBytes: []byte("mp4"), MIMEType: "video/mp4"}}},
		}},
		"op-remote": {Name: "op-remote", Done: true, Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{{Video: &genai.Video{URI: "https://generativelanguage.googleapis.com/files/abc"}}},
		}},
		"op-filtered": {Name: "op-filtered", Done: true, Response: &genai.GenerateVideosResponse{
			RAIMediaFilteredCount:   1,
			RAIMediaFilteredReasons: []string{"celebrity likeness"},
		}},
		"op-error": {Name: "op-error", Done: true, Error: map[string]any{"code": 3, "message": "bad image"}},
	}}
	assets := &memoryAssets{}
	p := newVeoProvider(t, api, assets)

	status, err := p.CheckVideo(context.Background(), "op-running")
	require.NoError(t, err)
	assert.Equal(t, model.VideoStatePending, status.State)

	status, err = p.CheckVideo(context.Background(), "op-inline")
	require.NoError(t, err)
	assert.Equal(t, model.VideoStateDone, status.State)
	assert.Regexp(t, `^https://assets\.example\.com/campaigns/videos/.+\.mp4$`, status.VideoURL)

	// A finished job is answered from the cache.
	lookups := api.lookups
	again, err := p.CheckVideo(context.Background(), "op-inline")
	require.NoError(t, err)
	assert.Equal(t, status.VideoURL, again.VideoURL)
	assert.Equal(t, lookups, api.lookups)

	status, err = p.CheckVideo(context.Background(), "op-remote")
	require.NoError(t, err)
	assert.Equal(t, model.VideoStateDone, status.State)
	assert.Len(t, assets.objects, 2)

	status, err = p.CheckVideo(context.Background(), "op-filtered")
	require.NoError(t, err)
	assert.Equal(t, model.VideoStateFailed, status.State)
	assert.Contains(t, status.Error, "celebrity likeness")

	status, err = p.CheckVideo(context.Background(), "op-error")
	require.NoError(t, err)
	assert.Equal(t, model.VideoStateFailed, status.State)
	assert.Contains(t, status.Error, "bad image")
}

func TestVeoWithoutClient(t *testing.T) {
	p := providers.NewVeoVideoProvider(nil, &memoryAssets{}, cloud.VideoModel{}, "", newPrompts(t))
	assert.ErrorIs(t, p.CheckCredentials(), providers.ErrMissingCredential)
}
