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

// Package services defines the contract of the Generation Service, the four
// proxy operations (script, image, audio, video) the campaign pipeline calls,
// plus the video status check used by the poller. Two clients implement it:
// HTTPGenerationClient talks to the proxy endpoints over the wire and
// LocalGenerationClient calls a provider backend in process.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
)

var (
	// ErrInvalidInput marks a request with a missing required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingJobID is returned when a video job is admitted without an id.
	ErrMissingJobID = errors.New("video job admitted without a job id")
	// ErrUnrecognizedAudio is returned for an audio answer that is neither
	// binary audio nor a JSON document with an audio URL.
	ErrUnrecognizedAudio = errors.New("unrecognized audio response")
	// ErrMissingImageURL is returned when an image vendor answers without a URL.
	ErrMissingImageURL = errors.New("image response has no url")
)

// UpstreamError is a failure reported by a generation vendor, or by the proxy
// on its behalf.
type UpstreamError struct {
	Status  int
	Message string
	Details any
}

func (e *UpstreamError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("upstream error %d: %s (%v)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status the proxy answers with for err: the
// vendor status for an upstream 4xx/5xx, 400 for invalid input and 500
// otherwise.
func StatusCode(err error) int {
	var up *UpstreamError
	if errors.As(err, &up) && up.Status >= 400 && up.Status <= 599 {
		return up.Status
	}
	if errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// AudioResult is either a remote URL or an in-memory binary.
type AudioResult struct {
	URL         string
	Data        []byte
	ContentType string
}

// IsBinary reports whether the result carries the audio bytes.
func (a AudioResult) IsBinary() bool {
	return a.URL == "" && len(a.Data) > 0
}

// VideoStatusChecker is the part of the contract the poller needs.
type VideoStatusChecker interface {
	CheckVideo(ctx context.Context, jobID string) (model.VideoStatus, error)
}

// GenerationClient is the Generation Service as seen by the pipeline.
type GenerationClient interface {
	VideoStatusChecker
	GenerateScript(ctx context.Context, req model.ScriptRequest) (string, error)
	GenerateImage(ctx context.Context, req model.ImageRequest) (string, error)
	GenerateAudio(ctx context.Context, req model.AudioRequest) (AudioResult, error)
	// SubmitVideo admits an asynchronous job and returns its id.
	SubmitVideo(ctx context.Context, req model.VideoRequest) (string, error)
}

// Concern names one proxy operation.
type Concern string

const (
	ConcernScript Concern = "script"
	ConcernImage  Concern = "image"
	ConcernAudio  Concern = "audio"
	ConcernVideo  Concern = "video"
)

// Backend is a GenerationClient that can also tell whether the credentials of
// a concern are configured. The proxy handlers and LocalGenerationClient
// check credentials before validating or forwarding a request.
type Backend interface {
	GenerationClient
	CheckCredentials(concern Concern) error
}

func required(fields ...string) error {
	var missing []string
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			missing = append(missing, fields[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateScript checks the required fields of a script request.
func ValidateScript(req model.ScriptRequest) error {
	return required("productName", req.ProductName, "vibe", req.Vibe)
}

// ValidateImage checks the required fields of an image request.
func ValidateImage(req model.ImageRequest) error {
	return required("productName", req.ProductName, "sceneRole", req.SceneRole, "script", req.Script)
}

// ValidateAudio checks the required fields of an audio request.
func ValidateAudio(req model.AudioRequest) error {
	return required("fullScript", req.FullScript)
}

// ValidateVideo checks the required fields of a video request.
func ValidateVideo(req model.VideoRequest) error {
	return required("sceneScript", req.SceneScript, "imageUrl", req.ImageURL)
}
