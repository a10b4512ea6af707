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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/providers"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
	test "github.com/jaycherian/gcp-go-ugc-studio/internal/testutil"
)

func TestDefaultPrompts(t *testing.T) {
	prompts := newPrompts(t)

	script, err := prompts.Script(model.ScriptRequest{ProductName: "EcoBottle", Vibe: "energetic"})
	require.NoError(t, err)
	assert.Contains(t, script, "Product: EcoBottle")
	assert.Contains(t, script, "Vibe: energetic")
	for _, scene := range model.SceneTemplates {
		assert.Contains(t, script, scene.Name+": "+scene.Role)
	}

	image, err := prompts.Image(model.ImageRequest{ProductName: "EcoBottle", SceneRole: "role", Script: "line"})
	require.NoError(t, err)
	assert.Contains(t, image, "9:16")
	assert.Contains(t, image, `"line"`)
}

func TestCustomPrompts(t *testing.T) {
	prompts, err := providers.NewPrompts(cloud.PromptTemplates{Motion: "Move slowly. {{.SceneScript}}"})
	require.NoError(t, err)
	motion, err := prompts.Motion(model.VideoRequest{SceneScript: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Move slowly. hi", motion)

	_, err = providers.NewPrompts(cloud.PromptTemplates{Image: "{{.ProductName"})
	assert.Error(t, err)

	prompts, err = providers.NewPrompts(cloud.PromptTemplates{Script: "{{.Unknown}}"})
	require.NoError(t, err)
	_, err = prompts.Script(model.ScriptRequest{ProductName: "p", Vibe: "v"})
	assert.Error(t, err)
}

func TestDataURLs(t *testing.T) {
	encoded, err := providers.EncodeDataURL(pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgoAAAANSUhEUg==", encoded)

	mimeType, data, err := providers.DecodeImageDataURL(encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, pngHeader, data)

	mimeType, data, err = providers.DecodeDataURL(test.GetExampleInput().ReferenceImages.Model)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, "model", string(data))

	_, _, err = providers.DecodeDataURL("data:text/plain,hello")
	assert.Error(t, err)
	_, _, err = providers.DecodeImageDataURL("data:image/png;base64,cHJvZHVjdA==")
	assert.ErrorIs(t, err, providers.ErrNotAnImage)
	_, err = providers.EncodeDataURL([]byte("plain text"))
	assert.Error(t, err)
}

func TestOpenAIScriptProvider(t *testing.T) {
	t.Setenv(credentialEnv, "secret")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var payload struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-test", payload.Model)
		assert.Equal(t, providers.DefaultScriptTemperature, payload.Temperature)
		if assert.Len(t, payload.Messages, 1) {
			assert.Contains(t, payload.Messages[0].Content, "Product: EcoBottle")
		}

		writeJSON(w, http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "a\n\nb\n\nc\n\nd"}}]
		}`)
	}))
	defer server.Close()

	p := providers.NewOpenAIScriptProvider(cloud.OpenAIModel{Model: "gpt-test", BaseURL: server.URL + "/", CredentialEnv: credentialEnv}, newPrompts(t))
	p.Options = []option.RequestOption{option.WithMaxRetries(0)}
	require.NoError(t, p.CheckCredentials())

	script, err := p.GenerateScript(context.Background(), model.ScriptRequest{ProductName: "EcoBottle", Vibe: "energetic"})
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb\n\nc\n\nd", script)
}

func TestOpenAIScriptProviderErrors(t *testing.T) {
	t.Setenv(credentialEnv, "secret")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`)
	}))
	defer server.Close()

	p := providers.NewOpenAIScriptProvider(cloud.OpenAIModel{Model: "gpt-test", BaseURL: server.URL + "/", CredentialEnv: credentialEnv}, newPrompts(t))
	p.Options = []option.RequestOption{option.WithMaxRetries(0)}

	_, err := p.GenerateScript(context.Background(), model.ScriptRequest{ProductName: "p", Vibe: "v"})
	var upstream *services.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.Equal(t, "slow down", upstream.Message)

	t.Setenv(credentialEnv, "")
	assert.ErrorIs(t, p.CheckCredentials(), cloud.ErrMissingCredential)
}
