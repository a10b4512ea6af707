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

package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// GetExampleInput returns the campaign input of the end-to-end scenario.
func GetExampleInput() model.CampaignInput {
	return model.CampaignInput{
		ProductName: "EcoBottle",
		Vibe:        "energetic",
		ReferenceImages: model.ReferenceImages{
			Product: "data:image/png;base64,cHJvZHVjdA==",
			Model:   "data:image/png;base64,bW9kZWw=",
		},
	}
}

// GetExampleScript returns a well formed four part script, with the surrounding
// whitespace a model typically adds.
func GetExampleScript() string {
	return "\n  Tired of lukewarm water by noon?\n\n" +
		"Plastic bottles sweat, leak and end up in the ocean.\n\n" +
		"EcoBottle keeps it ice cold for 24 hours, made from recycled steel.\n\n" +
		"Grab yours today and hydrate like you mean it!\n"
}

// GetExampleScriptParts returns the parts of GetExampleScript, trimmed.
func GetExampleScriptParts() []string {
	return []string{
		"Tired of lukewarm water by noon?",
		"Plastic bottles sweat, leak and end up in the ocean.",
		"EcoBottle keeps it ice cold for 24 hours, made from recycled steel.",
		"Grab yours today and hydrate like you mean it!",
	}
}

// GetExampleAudio returns a few bytes that sniff as MPEG audio (an ID3 tag).
func GetExampleAudio() []byte {
	return []byte{'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xfb, 0x90, 0x00}
}

// FakeGenerationClient is a GenerationClient whose answers are set per test.
// A nil function falls back to a successful canned answer. Calls are recorded.
type FakeGenerationClient struct {
	ScriptFunc func(ctx context.Context, req model.ScriptRequest) (string, error)
	ImageFunc  func(ctx context.Context, req model.ImageRequest) (string, error)
	AudioFunc  func(ctx context.Context, req model.AudioRequest) (services.AudioResult, error)
	SubmitFunc func(ctx context.Context, req model.VideoRequest) (string, error)
	CheckFunc  func(ctx context.Context, jobID string) (model.VideoStatus, error)

	mu            sync.Mutex
	scriptCalls   []model.ScriptRequest
	imageCalls    []model.ImageRequest
	audioCalls    []model.AudioRequest
	videoCalls    []model.VideoRequest
	checkedJobIDs []string
}

func (f *FakeGenerationClient) GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error) {
	f.mu.Lock()
	f.scriptCalls = append(f.scriptCalls, req)
	f.mu.Unlock()
	if f.ScriptFunc != nil {
		return f.ScriptFunc(ctx, req)
	}
	return GetExampleScript(), nil
}

func (f *FakeGenerationClient) GenerateImage(ctx context.Context, req model.ImageRequest) (string, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, req)
	n := len(f.imageCalls)
	f.mu.Unlock()
	if f.ImageFunc != nil {
		return f.ImageFunc(ctx, req)
	}
	return fmt.Sprintf("https://assets.example.com/images/%d.png", n), nil
}

func (f *FakeGenerationClient) GenerateAudio(ctx context.Context, req model.AudioRequest) (services.AudioResult, error) {
	f.mu.Lock()
	f.audioCalls = append(f.audioCalls, req)
	f.mu.Unlock()
	if f.AudioFunc != nil {
		return f.AudioFunc(ctx, req)
	}
	return services.AudioResult{Data: GetExampleAudio(), ContentType: "audio/mpeg"}, nil
}

func (f *FakeGenerationClient) SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, req)
	n := len(f.videoCalls)
	f.mu.Unlock()
	if f.SubmitFunc != nil {
		return f.SubmitFunc(ctx, req)
	}
	return fmt.Sprintf("operations/video-%d", n), nil
}

func (f *FakeGenerationClient) CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error) {
	f.mu.Lock()
	f.checkedJobIDs = append(f.checkedJobIDs, jobID)
	f.mu.Unlock()
	if f.CheckFunc != nil {
		return f.CheckFunc(ctx, jobID)
	}
	return model.VideoStatus{JobID: jobID, State: model.VideoStateDone, VideoURL: "https://assets.example.com/videos/" + jobID + ".mp4"}, nil
}

func (f *FakeGenerationClient) ScriptCalls() []model.ScriptRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ScriptRequest(nil), f.scriptCalls...)
}

func (f *FakeGenerationClient) ImageCalls() []model.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ImageRequest(nil), f.imageCalls...)
}

func (f *FakeGenerationClient) AudioCalls() []model.AudioRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.AudioRequest(nil), f.audioCalls...)
}

func (f *FakeGenerationClient) VideoCalls() []model.VideoRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.VideoRequest(nil), f.videoCalls...)
}

func (f *FakeGenerationClient) CheckedJobIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checkedJobIDs...)
}

// Recorder is a store observer keeping every snapshot it receives.
type Recorder struct {
	mu        sync.Mutex
	snapshots []model.Snapshot
}

func (r *Recorder) OnChange(s model.Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	r.mu.Unlock()
}

func (r *Recorder) Snapshots() []model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Snapshot(nil), r.snapshots...)
}

// SceneStatuses returns the distinct consecutive statuses one scene went through.
func (r *Recorder) SceneStatuses(id int) []model.SceneStatus {
	var out []model.SceneStatus
	for _, s := range r.Snapshots() {
		scene, ok := s.Scene(id)
		if !ok {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != scene.Status {
			out = append(out, scene.Status)
		}
	}
	return out
}
