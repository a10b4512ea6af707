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

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
)

// Proxy routes, relative to the server base URL.
const (
	PathScript      = "/api/generate-script"
	PathImage       = "/api/generate-image"
	PathAudio       = "/api/generate-audio"
	PathVideo       = "/api/generate-video"
	PathVideoStatus = "/api/video-status/"
)

// HTTPGenerationClient calls the proxy endpoints of a running server.
type HTTPGenerationClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPGenerationClient creates a client for baseURL, e.g. "http://localhost:8080".
func NewHTTPGenerationClient(baseURL string, timeout time.Duration) *HTTPGenerationClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPGenerationClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPGenerationClient) do(ctx context.Context, method string, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeError turns a non 2xx answer into an UpstreamError.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body model.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return &UpstreamError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Details: strings.TrimSpace(string(data))}
	}
	return &UpstreamError{Status: resp.StatusCode, Message: body.Error, Details: body.Details}
}

func (c *HTTPGenerationClient) postJSON(ctx context.Context, path string, in any, out any) error {
	resp, err := c.do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *HTTPGenerationClient) GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error) {
	var out model.ScriptResponse
	if err := c.postJSON(ctx, PathScript, req, &out); err != nil {
		return "", err
	}
	return out.Script, nil
}

func (c *HTTPGenerationClient) GenerateImage(ctx context.Context, req model.ImageRequest) (string, error) {
	var out model.ImageResponse
	if err := c.postJSON(ctx, PathImage, req, &out); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", ErrMissingImageURL
	}
	return out.ImageURL, nil
}

// GenerateAudio branches on the response content type: audio/* is read as a
// binary, application/json must carry audioUrl, anything else is rejected.
func (c *HTTPGenerationClient) GenerateAudio(ctx context.Context, req model.AudioRequest) (AudioResult, error) {
	resp, err := c.do(ctx, http.MethodPost, PathAudio, req)
	if err != nil {
		return AudioResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AudioResult{}, decodeError(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return AudioResult{}, fmt.Errorf("read audio body: %w", err)
		}
		if len(data) == 0 {
			return AudioResult{}, fmt.Errorf("%w: empty audio body", ErrUnrecognizedAudio)
		}
		return AudioResult{Data: data, ContentType: mediaType}, nil
	case mediaType == "application/json":
		var out model.AudioResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return AudioResult{}, fmt.Errorf("%w: %v", ErrUnrecognizedAudio, err)
		}
		if out.AudioURL == "" {
			return AudioResult{}, fmt.Errorf("%w: no audioUrl", ErrUnrecognizedAudio)
		}
		return AudioResult{URL: out.AudioURL}, nil
	default:
		return AudioResult{}, fmt.Errorf("%w: content type %q", ErrUnrecognizedAudio, mediaType)
	}
}

// SubmitVideo requires a 202 answer with a job id.
func (c *HTTPGenerationClient) SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, PathVideo, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", decodeError(resp)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", &UpstreamError{Status: resp.StatusCode, Message: "video job was not admitted asynchronously"}
	}
	var out model.VideoAdmission
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode video admission: %w", err)
	}
	if out.JobID == "" {
		return "", ErrMissingJobID
	}
	return out.JobID, nil
}

// VideoStatusPath returns the status route for jobID. Each segment of the id
// is escaped, slashes are kept (provider operation names contain them).
func VideoStatusPath(jobID string) string {
	segments := strings.Split(jobID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return PathVideoStatus + strings.Join(segments, "/")
}

func (c *HTTPGenerationClient) CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, VideoStatusPath(jobID), nil)
	if err != nil {
		return model.VideoStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.VideoStatus{}, decodeError(resp)
	}
	var out model.VideoStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.VideoStatus{}, fmt.Errorf("decode video status: %w", err)
	}
	return out, nil
}
