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
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
)

// LocalGenerationClient serves the contract in process, applying the same
// checks as the proxy endpoints: credentials first, then required fields.
type LocalGenerationClient struct {
	Backend Backend
}

func NewLocalGenerationClient(backend Backend) *LocalGenerationClient {
	return &LocalGenerationClient{Backend: backend}
}

func (c *LocalGenerationClient) GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error) {
	if err := c.Backend.CheckCredentials(ConcernScript); err != nil {
		return "", err
	}
	if err := ValidateScript(req); err != nil {
		return "", err
	}
	return c.Backend.GenerateScript(ctx, req)
}

func (c *LocalGenerationClient) GenerateImage(ctx context.Context, req model.ImageRequest) (string, error) {
	if err := c.Backend.CheckCredentials(ConcernImage); err != nil {
		return "", err
	}
	if err := ValidateImage(req); err != nil {
		return "", err
	}
	url, err := c.Backend.GenerateImage(ctx, req)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", ErrMissingImageURL
	}
	return url, nil
}

func (c *LocalGenerationClient) GenerateAudio(ctx context.Context, req model.AudioRequest) (AudioResult, error) {
	if err := c.Backend.CheckCredentials(ConcernAudio); err != nil {
		return AudioResult{}, err
	}
	if err := ValidateAudio(req); err != nil {
		return AudioResult{}, err
	}
	res, err := c.Backend.GenerateAudio(ctx, req)
	if err != nil {
		return AudioResult{}, err
	}
	if res.URL == "" && !res.IsBinary() {
		return AudioResult{}, ErrUnrecognizedAudio
	}
	return res, nil
}

func (c *LocalGenerationClient) SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error) {
	if err := c.Backend.CheckCredentials(ConcernVideo); err != nil {
		return "", err
	}
	if err := ValidateVideo(req); err != nil {
		return "", err
	}
	jobID, err := c.Backend.SubmitVideo(ctx, req)
	if err != nil {
		return "", err
	}
	if jobID == "" {
		return "", ErrMissingJobID
	}
	slog.DebugContext(ctx, "video job admitted", "job_id", jobID)
	return jobID, nil
}

func (c *LocalGenerationClient) CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error) {
	if err := c.Backend.CheckCredentials(ConcernVideo); err != nil {
		return model.VideoStatus{}, err
	}
	if err := required("jobId", jobID); err != nil {
		return model.VideoStatus{}, err
	}
	return c.Backend.CheckVideo(ctx, jobID)
}
