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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/api"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/telemetry"
	test "github.com/jaycherian/gcp-go-ugc-studio/internal/testutil"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	telemetry.SetupLogging("error")
	os.Exit(m.Run())
}

// fakeBackend answers with the fake client; concerns listed in missing fail
// the credential check.
type fakeBackend struct {
	*test.FakeGenerationClient
	missing map[services.Concern]bool
}

func (b *fakeBackend) CheckCredentials(concern services.Concern) error {
	if b.missing[concern] {
		return fmt.Errorf("%w: %s_API_KEY", cloud.ErrMissingCredential, concern)
	}
	return nil
}

func newGenerationServer(client *test.FakeGenerationClient, missing ...services.Concern) *gin.Engine {
	backend := &fakeBackend{FakeGenerationClient: client, missing: make(map[services.Concern]bool)}
	for _, c := range missing {
		backend.missing[c] = true
	}
	r := api.NewRouter("test", nil)
	api.GenerationRouter(r, backend)
	return r
}

func serve(r http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var out model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestGenerateScript(t *testing.T) {
	client := &test.FakeGenerationClient{}
	r := newGenerationServer(client)

	w := serve(r, http.MethodPost, services.PathScript, model.ScriptRequest{ProductName: "EcoBottle", Vibe: "energetic"})
	require.Equal(t, http.StatusOK, w.Code)
	var out model.ScriptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, test.GetExampleScript(), out.Script)
	assert.Equal(t, []model.ScriptRequest{{ProductName: "EcoBottle", Vibe: "energetic"}}, client.ScriptCalls())
}

func TestGenerationRejectsOtherMethods(t *testing.T) {
	r := newGenerationServer(&test.FakeGenerationClient{})

	for _, path := range []string{services.PathScript, services.PathImage, services.PathAudio, services.PathVideo} {
		w := serve(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
		assert.Equal(t, "method not allowed", decodeError(t, w).Error)
	}
	w := serve(r, http.MethodPost, services.PathVideoStatus+"job-1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGenerationMissingCredential(t *testing.T) {
	client := &test.FakeGenerationClient{}
	r := newGenerationServer(client, services.ConcernImage)

	w := serve(r, http.MethodPost, services.PathImage, model.ImageRequest{ProductName: "p", SceneRole: "r", Script: "s"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "configuration error", body.Error)
	assert.Contains(t, body.Details, "image_API_KEY")
	assert.Empty(t, client.ImageCalls())

	// Other concerns are unaffected.
	w = serve(r, http.MethodPost, services.PathScript, model.ScriptRequest{ProductName: "p", Vibe: "v"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerationRejectsInvalidRequests(t *testing.T) {
	client := &test.FakeGenerationClient{}
	r := newGenerationServer(client)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"script without vibe", services.PathScript, map[string]string{"productName": "EcoBottle"}},
		{"script with blank vibe", services.PathScript, map[string]string{"productName": "EcoBottle", "vibe": "  "}},
		{"image without script", services.PathImage, map[string]string{"productName": "p", "sceneRole": "r"}},
		{"audio without text", services.PathAudio, map[string]string{}},
		{"video without image", services.PathVideo, map[string]string{"sceneScript": "s"}},
		{"malformed json", services.PathScript, "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid request", decodeError(t, w).Error)
		})
	}
	assert.Empty(t, client.ScriptCalls())
	assert.Empty(t, client.ImageCalls())
	assert.Empty(t, client.AudioCalls())
	assert.Empty(t, client.VideoCalls())
}

// TestGenerationPassesUpstreamErrors keeps the vendor status code.
func TestGenerationPassesUpstreamErrors(t *testing.T) {
	client := &test.FakeGenerationClient{
		ScriptFunc: func(context.Context, model.ScriptRequest) (string, error) {
			return "", &services.UpstreamError{Status: http.StatusTooManyRequests, Message: "rate limited", Details: map[string]any{"retry_after": "30s"}}
		},
		ImageFunc: func(context.Context, model.ImageRequest) (string, error) {
			return "", nil
		},
	}
	r := newGenerationServer(client)

	w := serve(r, http.MethodPost, services.PathScript, model.ScriptRequest{ProductName: "p", Vibe: "v"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "rate limited", body.Error)
	assert.Equal(t, map[string]any{"retry_after": "30s"}, body.Details)

	w = serve(r, http.MethodPost, services.PathImage, model.ImageRequest{ProductName: "p", SceneRole: "r", Script: "s"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, services.ErrMissingImageURL.Error(), decodeError(t, w).Error)
}

func TestGenerateAudio(t *testing.T) {
	t.Run("binary", func(t *testing.T) {
		r := newGenerationServer(&test.FakeGenerationClient{})
		w := serve(r, http.MethodPost, services.PathAudio, model.AudioRequest{FullScript: "hello"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
		assert.Equal(t, test.GetExampleAudio(), w.Body.Bytes())
	})

	t.Run("url", func(t *testing.T) {
		client := &test.FakeGenerationClient{
			AudioFunc: func(context.Context, model.AudioRequest) (services.AudioResult, error) {
				return services.AudioResult{URL: "https://cdn.example.com/vo.mp3"}, nil
			},
		}
		r := newGenerationServer(client)
		w := serve(r, http.MethodPost, services.PathAudio, model.AudioRequest{FullScript: "hello"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"audioUrl":"https://cdn.example.com/vo.mp3"}`, w.Body.String())
	})
}

func TestGenerateVideoAdmission(t *testing.T) {
	client := &test.FakeGenerationClient{}
	r := newGenerationServer(client)

	w := serve(r, http.MethodPost, services.PathVideo, model.VideoRequest{SceneScript: "s", ImageURL: "https://img/1.png"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var out model.VideoAdmission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "operations/video-1", out.JobID)
	assert.NotEmpty(t, out.Message)
}

func TestVideoStatusAcceptsSlashes(t *testing.T) {
	client := &test.FakeGenerationClient{}
	r := newGenerationServer(client)

	w := serve(r, http.MethodGet, services.PathVideoStatus+"projects/demo/operations/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status model.VideoStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, model.VideoStateDone, status.State)
	assert.Equal(t, []string{"projects/demo/operations/abc"}, client.CheckedJobIDs())

	w = serve(r, http.MethodGet, services.PathVideoStatus, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// The HTTP client and the router speak the same protocol.
func TestHTTPGenerationClientRoundTrip(t *testing.T) {
	client := &test.FakeGenerationClient{}
	server := httptest.NewServer(newGenerationServer(client))
	defer server.Close()
	remote := services.NewHTTPGenerationClient(server.URL, 0)

	script, err := remote.GenerateScript(context.Background(), model.ScriptRequest{ProductName: "p", Vibe: "v"})
	require.NoError(t, err)
	assert.Equal(t, test.GetExampleScript(), script)

	audio, err := remote.GenerateAudio(context.Background(), model.AudioRequest{FullScript: "hello"})
	require.NoError(t, err)
	assert.True(t, audio.IsBinary())
	assert.Equal(t, test.GetExampleAudio(), audio.Data)

	jobID, err := remote.SubmitVideo(context.Background(), model.VideoRequest{SceneScript: "s", ImageURL: "u"})
	require.NoError(t, err)
	assert.Equal(t, "operations/video-1", jobID)

	status, err := remote.CheckVideo(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.VideoStateDone, status.State)
	assert.Equal(t, []string{jobID}, client.CheckedJobIDs())

	_, err = remote.GenerateImage(context.Background(), model.ImageRequest{ProductName: "p"})
	assert.Equal(t, http.StatusBadRequest, services.StatusCode(err))
}
