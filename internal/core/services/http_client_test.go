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

package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

func newClient(t *testing.T, handler http.HandlerFunc) *services.HTTPGenerationClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return services.NewHTTPGenerationClient(server.URL+"/", 5*time.Second)
}

func TestGenerateAudioContentTypes(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        services.AudioResult
		wantErr     error
	}{
		{
			name:        "binary",
			contentType: "audio/mpeg",
			body:        "ID3-bytes",
			want:        services.AudioResult{Data: []byte("ID3-bytes"), ContentType: "audio/mpeg"},
		},
		{
			name:        "json url",
			contentType: "application/json; charset=utf-8",
			body:        `{"audioUrl":"https://cdn.example.com/vo.mp3"}`,
			want:        services.AudioResult{URL: "https://cdn.example.com/vo.mp3"},
		},
		{name: "json without url", contentType: "application/json", body: `{}`, wantErr: services.ErrUnrecognizedAudio},
		{name: "empty binary", contentType: "audio/wav", body: "", wantErr: services.ErrUnrecognizedAudio},
		{name: "html", contentType: "text/html", body: "<html></html>", wantErr: services.ErrUnrecognizedAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, services.PathAudio, r.URL.Path)
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := client.GenerateAudio(context.Background(), model.AudioRequest{FullScript: "hello"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubmitVideoNeedsAcceptedJob(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{name: "accepted", status: http.StatusAccepted, body: `{"jobId":"operations/1","message":"video generation started"}`, want: "operations/1"},
		{name: "synchronous answer", status: http.StatusOK, body: `{"jobId":"operations/1"}`},
		{name: "no job id", status: http.StatusAccepted, body: `{}`, wantErr: services.ErrMissingJobID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				var req model.VideoRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "scene script", req.SceneScript)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			jobID, err := client.SubmitVideo(context.Background(), model.VideoRequest{SceneScript: "scene script", ImageURL: "https://img/1.png"})
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.want == "":
				var upstream *services.UpstreamError
				assert.ErrorAs(t, err, &upstream)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, jobID)
			}
		})
	}
}

func TestErrorResponsesAreDecoded(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case services.PathScript:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limited","details":{"retry":"later"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("proxy exploded"))
		}
	})

	_, err := client.GenerateScript(context.Background(), model.ScriptRequest{ProductName: "p", Vibe: "v"})
	var upstream *services.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.Equal(t, "rate limited", upstream.Message)
	assert.Equal(t, map[string]any{"retry": "later"}, upstream.Details)
	assert.Equal(t, http.StatusTooManyRequests, services.StatusCode(err))

	_, err = client.GenerateImage(context.Background(), model.ImageRequest{})
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.Status)
	assert.Equal(t, "proxy exploded", upstream.Details)
}

func TestCheckVideoEscapesJobID(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/video-status/projects/p/operations/a%20b", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(model.VideoStatus{JobID: "projects/p/operations/a b", State: model.VideoStatePending})
	})

	status, err := client.CheckVideo(context.Background(), "projects/p/operations/a b")
	require.NoError(t, err)
	assert.Equal(t, model.VideoStatePending, status.State)
	assert.Equal(t, "/api/video-status/projects/p/operations/a%20b", services.VideoStatusPath("projects/p/operations/a b"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, services.StatusCode(services.ValidateScript(model.ScriptRequest{ProductName: "p"})))
	assert.Equal(t, http.StatusInternalServerError, services.StatusCode(services.ErrMissingJobID))
	assert.Equal(t, http.StatusInternalServerError, services.StatusCode(&services.UpstreamError{Status: 200}))
	assert.NoError(t, services.ValidateVideo(model.VideoRequest{SceneScript: "s", ImageURL: "u"}))
	assert.ErrorContains(t, services.ValidateImage(model.ImageRequest{ProductName: "p"}), "sceneRole, script")
}
