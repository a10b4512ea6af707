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

// Package providers contains the vendor implementations of the generation
// endpoints. This file holds the generic REST vendors for images, speech and
// image-to-video. Their payloads carry the fixed creative parameters of the
// campaign format: 9:16 portrait, four second clips, medium motion.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

const (
	AspectRatio          = "9:16"
	VideoDurationSeconds = 4
	MotionStrength       = "medium"
	DefaultVoice         = "id-ID-Standard-A"
	DefaultVoiceModel    = "high-quality"
	DefaultAudioFormat   = "mp3"
	DefaultSpeechSpeed   = 1.0
)

// VendorImageProvider calls a text-to-image API that answers with a URL.
type VendorImageProvider struct {
	vendorClient
	Prompts *Prompts
}

func NewVendorImageProvider(cfg cloud.Vendor, prompts *Prompts) *VendorImageProvider {
	return &VendorImageProvider{vendorClient: newVendorClient(cfg), Prompts: prompts}
}

type vendorImagePayload struct {
	Prompt                string `json:"prompt"`
	Model                 string `json:"model,omitempty"`
	AspectRatio           string `json:"aspect_ratio"`
	ReferenceImageProduct string `json:"reference_image_product,omitempty"`
	ReferenceImageModel   string `json:"reference_image_model,omitempty"`
}

type vendorImageResponse struct {
	URL    string `json:"url"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

func (p *VendorImageProvider) GenerateImage(ctx context.Context, req model.ImageRequest) (string, error) {
	prompt, err := p.Prompts.Image(req)
	if err != nil {
		return "", err
	}
	resp, err := p.do(ctx, http.MethodPost, p.cfg.URL, vendorImagePayload{
		Prompt:                prompt,
		Model:                 p.cfg.Model,
		AspectRatio:           AspectRatio,
		ReferenceImageProduct: req.ReferenceImageProduct,
		ReferenceImageModel:   req.ReferenceImageModel,
	})
	if err != nil {
		return "", err
	}
	var out vendorImageResponse
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	url := out.URL
	if url == "" && len(out.Images) > 0 {
		url = out.Images[0].URL
	}
	if url == "" {
		return "", &services.UpstreamError{Status: http.StatusBadGateway, Message: services.ErrMissingImageURL.Error(), Details: vendorDetails(resp.Body)}
	}
	return url, nil
}

// VendorAudioProvider calls a text-to-speech API that answers with {url}.
type VendorAudioProvider struct {
	vendorClient
}

func NewVendorAudioProvider(cfg cloud.Vendor) *VendorAudioProvider {
	return &VendorAudioProvider{vendorClient: newVendorClient(cfg)}
}

type vendorAudioPayload struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Model  string  `json:"model"`
	Format string  `json:"format"`
	Speed  float64 `json:"speed"`
}

func orDefault[T comparable](v T, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func (p *VendorAudioProvider) GenerateAudio(ctx context.Context, req model.AudioRequest) (services.AudioResult, error) {
	resp, err := p.do(ctx, http.MethodPost, p.cfg.URL, vendorAudioPayload{
		Text:   req.FullScript,
		Voice:  orDefault(p.cfg.Voice, DefaultVoice),
		Model:  orDefault(p.cfg.Model, DefaultVoiceModel),
		Format: orDefault(p.cfg.Format, DefaultAudioFormat),
		Speed:  orDefault(p.cfg.Speed, DefaultSpeechSpeed),
	})
	if err != nil {
		return services.AudioResult{}, err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return services.AudioResult{}, err
	}
	if out.URL == "" {
		return services.AudioResult{}, &services.UpstreamError{Status: http.StatusBadGateway, Message: "audio response has no url", Details: vendorDetails(resp.Body)}
	}
	return services.AudioResult{URL: out.URL}, nil
}

// VendorVideoProvider submits image-to-video jobs to a REST API and checks
// them through its status endpoint.
type VendorVideoProvider struct {
	vendorClient
	Prompts *Prompts
}

func NewVendorVideoProvider(cfg cloud.Vendor, prompts *Prompts) *VendorVideoProvider {
	return &VendorVideoProvider{vendorClient: newVendorClient(cfg), Prompts: prompts}
}

type vendorVideoPayload struct {
	InputImageURL  string `json:"input_image_url"`
	MotionPrompt   string `json:"motion_prompt"`
	Model          string `json:"model,omitempty"`
	Duration       int    `json:"duration"`
	AspectRatio    string `json:"aspect_ratio"`
	MotionStrength string `json:"motion_strength"`
}

func (p *VendorVideoProvider) SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error) {
	prompt, err := p.Prompts.Motion(req)
	if err != nil {
		return "", err
	}
	resp, err := p.do(ctx, http.MethodPost, p.cfg.URL, vendorVideoPayload{
		InputImageURL:  req.ImageURL,
		MotionPrompt:   prompt,
		Model:          p.cfg.Model,
		Duration:       VideoDurationSeconds,
		AspectRatio:    AspectRatio,
		MotionStrength: MotionStrength,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		JobID string `json:"job_id"`
		ID    string `json:"id"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	jobID := orDefault(out.JobID, out.ID)
	if jobID == "" {
		return "", fmt.Errorf("%w: %v", services.ErrMissingJobID, vendorDetails(resp.Body))
	}
	return jobID, nil
}

// vendorVideoStatus accepts the usual spellings of job states.
type vendorVideoStatus struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	URL      string `json:"url"`
	Error    string `json:"error"`
}

func (s vendorVideoStatus) state() model.VideoState {
	switch strings.ToLower(s.Status) {
	case "completed", "complete", "succeeded", "success", "done":
		return model.VideoStateDone
	case "failed", "error", "cancelled", "canceled":
		return model.VideoStateFailed
	default:
		return model.VideoStatePending
	}
}

func (p *VendorVideoProvider) CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error) {
	if p.cfg.StatusURL == "" {
		return model.VideoStatus{}, fmt.Errorf("%w: video status url is not configured", ErrMissingCredential)
	}
	statusURL := p.cfg.StatusURL
	if strings.Contains(statusURL, "%s") {
		statusURL = fmt.Sprintf(statusURL, jobID)
	} else {
		statusURL = strings.TrimSuffix(statusURL, "/") + "/" + jobID
	}
	resp, err := p.do(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return model.VideoStatus{}, err
	}
	var out vendorVideoStatus
	if err := decodeJSON(resp, &out); err != nil {
		return model.VideoStatus{}, err
	}
	status := model.VideoStatus{JobID: jobID, State: out.state(), Error: out.Error}
	if status.State == model.VideoStateDone {
		status.VideoURL = orDefault(out.VideoURL, out.URL)
		if status.VideoURL == "" {
			status.State = model.VideoStateFailed
			status.Error = "job completed without a video url"
		}
	}
	return status, nil
}
