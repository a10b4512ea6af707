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

// Package model defines the core data structures for the application.
// This file contains the request and response bodies of the Generation
// Service. They only exist on the wire between the coordinator and the proxy
// endpoints and are never stored.
package model

// ScriptRequest asks for a four part advertisement script.
type ScriptRequest struct {
	ProductName string `json:"productName" binding:"required"`
	Vibe        string `json:"vibe" binding:"required"`
}

// ScriptResponse carries the generated script; parts are separated by a blank line.
type ScriptResponse struct {
	Script string `json:"script"`
}

// ImageRequest asks for the still image of one scene. The reference images
// are opaque data URLs and are forwarded untouched.
type ImageRequest struct {
	ProductName           string `json:"productName" binding:"required"`
	SceneRole             string `json:"sceneRole" binding:"required"`
	Script                string `json:"script" binding:"required"`
	ReferenceImageProduct string `json:"referenceImageProduct,omitempty"`
	ReferenceImageModel   string `json:"referenceImageModel,omitempty"`
}

// ImageResponse carries the URL of the generated image.
type ImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// AudioRequest asks for the voice-over of the whole script.
type AudioRequest struct {
	FullScript string `json:"fullScript" binding:"required"`
}

// AudioResponse is the JSON form of an audio result. The binary form is a
// raw audio/mpeg body.
type AudioResponse struct {
	AudioURL string `json:"audioUrl"`
}

// VideoRequest asks for an image-to-video job for one scene.
type VideoRequest struct {
	SceneScript string `json:"sceneScript" binding:"required"`
	ImageURL    string `json:"imageUrl" binding:"required"`
}

// VideoAdmission acknowledges an admitted asynchronous video job (HTTP 202).
type VideoAdmission struct {
	JobID   string `json:"jobId"`
	Message string `json:"message,omitempty"`
}

// VideoState is the lifecycle state of a video job.
type VideoState string

const (
	VideoStatePending VideoState = "pending"
	VideoStateDone    VideoState = "done"
	VideoStateFailed  VideoState = "failed"
)

// VideoStatus is the answer of the job status endpoint.
type VideoStatus struct {
	JobID    string     `json:"jobId"`
	State    VideoState `json:"state"`
	VideoURL string     `json:"videoUrl,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ErrorResponse is the JSON error shape of every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// CampaignRunRequest starts a run through the campaign API.
type CampaignRunRequest struct {
	ProductName           string `json:"productName" binding:"required"`
	Vibe                  string `json:"vibe" binding:"required"`
	ReferenceImageProduct string `json:"referenceImageProduct"`
	ReferenceImageModel   string `json:"referenceImageModel"`
}

// Input converts the request into the campaign input.
func (r CampaignRunRequest) Input() CampaignInput {
	return CampaignInput{
		ProductName: r.ProductName,
		Vibe:        r.Vibe,
		ReferenceImages: ReferenceImages{
			Product: r.ReferenceImageProduct,
			Model:   r.ReferenceImageModel,
		},
	}
}
