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

package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// DefaultScriptTemperature matches the sampling the script prompt was tuned with.
const DefaultScriptTemperature = 0.7

// OpenAIScriptProvider writes the script through a chat completions API.
// OpenRouter is served by the same provider with its base URL.
type OpenAIScriptProvider struct {
	Config cloud.OpenAIModel
	// Options are appended to the client options, tests use them to point
	// the client at a local server.
	Options []option.RequestOption
	Prompts *Prompts
}

func NewOpenAIScriptProvider(cfg cloud.OpenAIModel, prompts *Prompts) *OpenAIScriptProvider {
	return &OpenAIScriptProvider{Config: cfg, Prompts: prompts}
}

func (p *OpenAIScriptProvider) CheckCredentials() error {
	_, err := cloud.Credential(p.Config.CredentialEnv)
	return err
}

func (p *OpenAIScriptProvider) GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error) {
	apiKey, err := cloud.Credential(p.Config.CredentialEnv)
	if err != nil {
		return "", err
	}
	prompt, err := p.Prompts.Script(req)
	if err != nil {
		return "", err
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.Config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.Config.BaseURL))
	}
	opts = append(opts, p.Options...)
	client := openai.NewClient(opts...)

	temperature := p.Config.Temperature
	if temperature == 0 {
		temperature = DefaultScriptTemperature
	}
	chatCompletion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(p.Config.Model),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &services.UpstreamError{Status: apiErr.StatusCode, Message: apiErr.Message, Details: apiErr.Type}
		}
		return "", err
	}
	if len(chatCompletion.Choices) == 0 || strings.TrimSpace(chatCompletion.Choices[0].Message.Content) == "" {
		return "", &services.UpstreamError{Status: http.StatusBadGateway, Message: "script model returned no content"}
	}
	return chatCompletion.Choices[0].Message.Content, nil
}
