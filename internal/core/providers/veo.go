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
// endpoints. This file holds the Veo image-to-video provider.
//
// Logic Flow:
//  1. SubmitVideo fetches the scene still, starts a GenerateVideos operation
//     and returns the operation name as the job id. It does not wait.
//  2. CheckVideo reloads the operation by name. A finished operation yields
//     either a gs:// URI (Vertex with an output bucket), inline bytes, or a
//     Files API URI; each is turned into a URL through the asset store.
//  3. Resolved URLs are cached per job so repeated checks do not re-upload.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// VeoAPI is the part of the genai client the provider uses.
type VeoAPI interface {
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, name string) (*genai.GenerateVideosOperation, error)
	Download(ctx context.Context, video *genai.Video) ([]byte, error)
}

type genaiVeo struct {
	client *genai.Client
}

func (g genaiVeo) GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return g.client.Models.GenerateVideos(ctx, model, prompt, image, config)
}

func (g genaiVeo) GetVideosOperation(ctx context.Context, name string) (*genai.GenerateVideosOperation, error) {
	return g.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: name}, nil)
}

func (g genaiVeo) Download(ctx context.Context, video *genai.Video) ([]byte, error) {
	return g.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
}

// VeoVideoProvider generates scene clips with Veo.
type VeoVideoProvider struct {
	API          VeoAPI
	Assets       cloud.AssetStore
	Config       cloud.VideoModel
	ObjectPrefix string
	Prompts      *Prompts
	HTTP         *http.Client

	mu       sync.Mutex
	resolved map[string]string
}

// NewVeoVideoProvider accepts a nil client, which fails the credential check.
func NewVeoVideoProvider(client *genai.Client, assets cloud.AssetStore, cfg cloud.VideoModel, prefix string, prompts *Prompts) *VeoVideoProvider {
	p := &VeoVideoProvider{
		Assets:       assets,
		Config:       cfg,
		ObjectPrefix: prefix,
		Prompts:      prompts,
		HTTP:         &http.Client{Timeout: cloud.Vendor{}.Timeout()},
	}
	if client != nil {
		p.API = genaiVeo{client: client}
	}
	return p
}

func (p *VeoVideoProvider) CheckCredentials() error {
	if p.API == nil {
		return fmt.Errorf("%w: %s (or application.use_vertex)", ErrMissingCredential, cloud.GeminiAPIKeyEnv)
	}
	if p.Assets == nil {
		return fmt.Errorf("%w: no asset storage configured", ErrMissingCredential)
	}
	return nil
}

// fetchImage loads the scene still from a URL or a data URL.
func (p *VeoVideoProvider) fetchImage(ctx context.Context, imageURL string) (*genai.Image, error) {
	if strings.HasPrefix(imageURL, "data:") {
		mimeType, data, err := DecodeImageDataURL(imageURL)
		if err != nil {
			return nil, err
		}
		return &genai.Image{ImageBytes: data, MIMEType: mimeType}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad imageUrl: %v", services.ErrInvalidInput, err)
	}
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch scene image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &services.UpstreamError{Status: http.StatusBadGateway, Message: "scene image could not be fetched", Details: resp.Status}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read scene image: %w", err)
	}
	mimeType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		if !filetype.IsImage(data) {
			return nil, ErrNotAnImage
		}
		kind, _ := filetype.Match(data)
		mimeType = kind.MIME.Value
	}
	return &genai.Image{ImageBytes: data, MIMEType: mimeType}, nil
}

func (p *VeoVideoProvider) SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error) {
	prompt, err := p.Prompts.Motion(req)
	if err != nil {
		return "", err
	}
	image, err := p.fetchImage(ctx, req.ImageURL)
	if err != nil {
		return "", err
	}
	config := &genai.GenerateVideosConfig{
		AspectRatio:      orDefault(p.Config.AspectRatio, AspectRatio),
		DurationSeconds:  genai.Ptr[int32](orDefault(p.Config.DurationSeconds, int32(VideoDurationSeconds))),
		PersonGeneration: p.Config.PersonGeneration,
		NumberOfVideos:   1,
		OutputGCSURI:     p.Config.OutputGCSURI,
	}
	operation, err := p.API.GenerateVideos(ctx, p.Config.Model, prompt, image, config)
	if err != nil {
		return "", asUpstream(err)
	}
	if operation == nil || operation.Name == "" {
		return "", services.ErrMissingJobID
	}
	slog.InfoContext(ctx, "veo operation started", "operation", operation.Name)
	return operation.Name, nil
}

func (p *VeoVideoProvider) cached(jobID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	url, ok := p.resolved[jobID]
	return url, ok
}

func (p *VeoVideoProvider) remember(jobID string, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved == nil {
		p.resolved = make(map[string]string)
	}
	p.resolved[jobID] = url
}

func (p *VeoVideoProvider) CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error) {
	if url, ok := p.cached(jobID); ok {
		return model.VideoStatus{JobID: jobID, State: model.VideoStateDone, VideoURL: url}, nil
	}
	operation, err := p.API.GetVideosOperation(ctx, jobID)
	if err != nil {
		return model.VideoStatus{}, asUpstream(err)
	}
	status := model.VideoStatus{JobID: jobID, State: model.VideoStatePending}
	if !operation.Done {
		return status, nil
	}

	failed := func(reason string) (model.VideoStatus, error) {
		status.State = model.VideoStateFailed
		status.Error = reason
		return status, nil
	}
	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return failed(fmt.Sprintf("video generation failed: %s", errJSON))
	}
	if operation.Response == nil {
		return failed("operation finished without a response")
	}
	if operation.Response.RAIMediaFilteredCount > 0 {
		return failed(fmt.Sprintf("video blocked by safety filters: %s", strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")))
	}
	if len(operation.Response.GeneratedVideos) == 0 || operation.Response.GeneratedVideos[0].Video == nil {
		return failed("operation finished without a video")
	}

	url, err := p.resolve(ctx, operation.Response.GeneratedVideos[0].Video)
	if err != nil {
		return model.VideoStatus{}, err
	}
	p.remember(jobID, url)
	status.State = model.VideoStateDone
	status.VideoURL = url
	return status, nil
}

// resolve turns a generated video into a fetchable URL.
func (p *VeoVideoProvider) resolve(ctx context.Context, video *genai.Video) (string, error) {
	if strings.HasPrefix(video.URI, "gs://") {
		signer, ok := p.Assets.(cloud.URISigner)
		if !ok {
			return "", fmt.Errorf("asset store cannot sign %s", video.URI)
		}
		return signer.SignURI(ctx, video.URI)
	}
	data := video.VideoBytes
	if len(data) == 0 {
		var err error
		data, err = p.API.Download(ctx, video)
		if err != nil {
			return "", asUpstream(err)
		}
	}
	mimeType := orDefault(video.MIMEType, "video/mp4")
	name := cloud.ObjectName(p.ObjectPrefix, "videos", cloud.ExtensionFor(mimeType))
	return p.Assets.Put(ctx, name, mimeType, data)
}
