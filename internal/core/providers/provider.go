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

// Package providers contains the vendor implementations behind the four
// generation endpoints. Each concern (script, image, audio, video) has an
// interface and one or more providers; the [providers] section of the
// configuration selects which one a Set uses.
//
// Credentials are read from the process environment at request time, so a
// server with a missing key still starts and answers that concern with a
// configuration error.
package providers

import (
	"context"
	"fmt"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// ErrMissingCredential is the configuration error of every provider.
var ErrMissingCredential = cloud.ErrMissingCredential

// CredentialChecker is implemented by every provider.
type CredentialChecker interface {
	CheckCredentials() error
}

type ScriptProvider interface {
	CredentialChecker
	GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error)
}

type ImageProvider interface {
	CredentialChecker
	GenerateImage(ctx context.Context, req model.ImageRequest) (string, error)
}

type AudioProvider interface {
	CredentialChecker
	GenerateAudio(ctx context.Context, req model.AudioRequest) (services.AudioResult, error)
}

type VideoProvider interface {
	CredentialChecker
	SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error)
	CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error)
}

// Set is the selected provider of each concern. It implements services.Backend.
type Set struct {
	Script ScriptProvider
	Image  ImageProvider
	Audio  AudioProvider
	Video  VideoProvider
}

var _ services.Backend = (*Set)(nil)

// CheckCredentials checks the provider of concern.
func (s *Set) CheckCredentials(concern services.Concern) error {
	var p CredentialChecker
	switch concern {
	case services.ConcernScript:
		if s.Script != nil {
			p = s.Script
		}
	case services.ConcernImage:
		if s.Image != nil {
			p = s.Image
		}
	case services.ConcernAudio:
		if s.Audio != nil {
			p = s.Audio
		}
	case services.ConcernVideo:
		if s.Video != nil {
			p = s.Video
		}
	}
	if p == nil {
		return fmt.Errorf("%w: no %s provider configured", ErrMissingCredential, concern)
	}
	return p.CheckCredentials()
}

func (s *Set) GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error) {
	return s.Script.GenerateScript(ctx, req)
}

func (s *Set) GenerateImage(ctx context.Context, req model.ImageRequest) (string, error) {
	return s.Image.GenerateImage(ctx, req)
}

func (s *Set) GenerateAudio(ctx context.Context, req model.AudioRequest) (services.AudioResult, error) {
	return s.Audio.GenerateAudio(ctx, req)
}

func (s *Set) SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error) {
	return s.Video.SubmitVideo(ctx, req)
}

func (s *Set) CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error) {
	return s.Video.CheckVideo(ctx, jobID)
}

// NewSet builds the providers selected in config. clients may lack the genai
// client or the asset store when the matching credentials are missing; the
// affected providers then fail their credential check.
func NewSet(config *cloud.Config, clients *cloud.ServiceClients) (*Set, error) {
	prompts, err := NewPrompts(config.PromptTemplates)
	if err != nil {
		return nil, err
	}
	set := &Set{}

	switch config.Providers.Script {
	case cloud.ProviderGemini:
		set.Script = NewGeminiScriptProvider(clients.AgentModels[cloud.ScriptModelKey], prompts)
	case cloud.ProviderOpenAI, cloud.ProviderOpenRouter:
		set.Script = NewOpenAIScriptProvider(config.OpenAI[config.Providers.Script], prompts)
	default:
		return nil, fmt.Errorf("unknown script provider %q", config.Providers.Script)
	}

	switch config.Providers.Image {
	case cloud.ProviderGemini:
		set.Image = NewGeminiImageProvider(clients.AgentModels[cloud.ImageModelKey], clients.Assets, config.Storage.ObjectPrefix, prompts)
	case cloud.ProviderVendor:
		set.Image = NewVendorImageProvider(config.Vendors["image"], prompts)
	default:
		return nil, fmt.Errorf("unknown image provider %q", config.Providers.Image)
	}

	switch config.Providers.Audio {
	case cloud.ProviderVendor:
		set.Audio = NewVendorAudioProvider(config.Vendors["audio"])
	case cloud.ProviderElevenLabs:
		set.Audio = NewElevenLabsAudioProvider(config.Vendors["elevenlabs"])
	default:
		return nil, fmt.Errorf("unknown audio provider %q", config.Providers.Audio)
	}

	switch config.Providers.Video {
	case cloud.ProviderVeo:
		set.Video = NewVeoVideoProvider(clients.GenAIClient, clients.Assets, config.VideoModel, config.Storage.ObjectPrefix, prompts)
	case cloud.ProviderVendor:
		set.Video = NewVendorVideoProvider(config.Vendors["video"], prompts)
	default:
		return nil, fmt.Errorf("unknown video provider %q", config.Providers.Video)
	}

	return set, nil
}
