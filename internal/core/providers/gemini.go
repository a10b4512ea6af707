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
// endpoints. This file holds the Gemini script and image providers, both
// built on the rate limited genai wrapper from the cloud package.
//
// The image provider sends the prompt with the two reference images as inline
// parts and asks for an IMAGE modality answer. The returned bytes are written
// to the asset store, whose URL is the provider result.
package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

const meterName = "github.com/jaycherian/gcp-go-ugc-studio/providers"

// asUpstream maps a genai API error onto a services.UpstreamError so the
// proxy can pass the vendor status through.
func asUpstream(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &services.UpstreamError{Status: apiErr.Code, Message: apiErr.Message, Details: apiErr.Status}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &services.UpstreamError{Status: apiErrPtr.Code, Message: apiErrPtr.Message, Details: apiErrPtr.Status}
	}
	return err
}

func geminiCredentials(generator cloud.ContentGenerator) error {
	if generator == nil {
		return fmt.Errorf("%w: %s (or application.use_vertex)", ErrMissingCredential, cloud.GeminiAPIKeyEnv)
	}
	return nil
}

// GeminiScriptProvider writes the four part script with a Gemini model.
type GeminiScriptProvider struct {
	Model    cloud.ContentGenerator
	Prompts  *Prompts
	Counters cloud.TokenCounters
}

// NewGeminiScriptProvider accepts a nil model, which fails the credential check.
func NewGeminiScriptProvider(m *cloud.QuotaAwareGenerativeAIModel, prompts *Prompts) *GeminiScriptProvider {
	p := &GeminiScriptProvider{
		Prompts:  prompts,
		Counters: cloud.NewTokenCounters(otel.Meter(meterName), "script"),
	}
	if m != nil {
		p.Model = m
	}
	return p
}

func (p *GeminiScriptProvider) CheckCredentials() error {
	return geminiCredentials(p.Model)
}

func (p *GeminiScriptProvider) GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error) {
	prompt, err := p.Prompts.Script(req)
	if err != nil {
		return "", err
	}
	out, err := cloud.GenerateText(ctx, p.Counters, p.Model, cloud.NewTextPart(prompt))
	if err != nil {
		return "", asUpstream(err)
	}
	return out, nil
}

// GeminiImageProvider renders scene stills with a Gemini image model.
type GeminiImageProvider struct {
	Model        cloud.ContentGenerator
	Assets       cloud.AssetStore
	ObjectPrefix string
	Prompts      *Prompts
	Counters     cloud.TokenCounters
}

func NewGeminiImageProvider(m *cloud.QuotaAwareGenerativeAIModel, assets cloud.AssetStore, prefix string, prompts *Prompts) *GeminiImageProvider {
	p := &GeminiImageProvider{
		Assets:       assets,
		ObjectPrefix: prefix,
		Prompts:      prompts,
		Counters:     cloud.NewTokenCounters(otel.Meter(meterName), "image"),
	}
	if m != nil {
		p.Model = m
	}
	return p
}

func (p *GeminiImageProvider) CheckCredentials() error {
	if err := geminiCredentials(p.Model); err != nil {
		return err
	}
	if p.Assets == nil {
		return fmt.Errorf("%w: no asset storage configured", ErrMissingCredential)
	}
	return nil
}

// referenceParts decodes the optional reference images. Images that cannot
// be decoded are skipped with a warning; the prompt alone still yields a still.
func referenceParts(ctx context.Context, refs ...string) []*genai.Part {
	var parts []*genai.Part
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		mimeType, data, err := DecodeImageDataURL(ref)
		if err != nil {
			slog.WarnContext(ctx, "skipping reference image", "error", err)
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	return parts
}

func (p *GeminiImageProvider) GenerateImage(ctx context.Context, req model.ImageRequest) (string, error) {
	prompt, err := p.Prompts.Image(req)
	if err != nil {
		return "", err
	}
	parts := append([]*genai.Part{genai.NewPartFromText(prompt)},
		referenceParts(ctx, req.ReferenceImageProduct, req.ReferenceImageModel)...)

	resp, err := p.Model.GenerateContent(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)})
	if err != nil {
		return "", asUpstream(err)
	}
	blob, err := cloud.FirstInlineData(ctx, p.Counters, resp)
	if err != nil {
		return "", &services.UpstreamError{Status: http.StatusBadGateway, Message: "image model returned no image", Details: err.Error()}
	}

	name := cloud.ObjectName(p.ObjectPrefix, "images", cloud.ExtensionFor(blob.MIMEType))
	url, err := p.Assets.Put(ctx, name, blob.MIMEType, blob.Data)
	if err != nil {
		return "", fmt.Errorf("store generated image: %w", err)
	}
	return url, nil
}
