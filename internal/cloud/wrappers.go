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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a decorator around genai.Models that binds a model name
// and generation config and throttles calls with a token bucket.
package cloud

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is the narrow surface the providers need from a model.
// QuotaAwareGenerativeAIModel satisfies it; tests substitute fakes.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// QuotaAwareGenerativeAIModel wraps genai.Models with a fixed model name,
// generation config and a rate limiter.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel creates a model that allows requestsPerSecond calls per
// second with an equal burst. A non-positive rate disables throttling.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, models *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: config,
		ModelName:               name,
		ModelHandle:             models,
		RateLimit:               NewLimiter(requestsPerSecond),
	}
}

// NewLimiter returns a token bucket refilling requestsPerSecond tokens per second.
func NewLimiter(requestsPerSecond int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Second/time.Duration(requestsPerSecond)), requestsPerSecond)
}

// GenerateContent blocks until the limiter admits the call or ctx ends, then
// forwards the request.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// NewAgentModel builds the generation config for a configured Gemini model.
func NewAgentModel(values VertexAiLLMModel, models *genai.Models) *QuotaAwareGenerativeAIModel {
	config := &genai.GenerateContentConfig{
		Temperature:        genai.Ptr[float32](values.Temperature),
		MaxOutputTokens:    values.MaxTokens,
		SafetySettings:     DefaultSafetySettings,
		ResponseMIMEType:   values.OutputFormat,
		ResponseModalities: values.Modalities,
	}
	if values.TopP > 0 {
		config.TopP = genai.Ptr[float32](values.TopP)
	}
	if values.SystemInstructions != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	return NewQuotaAwareModel(config, values.Model, models, values.RateLimit)
}
