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

// Package api contains the HTTP surface of the server. This file holds the
// Generation Service proxies.
//
// Logic Flow (every proxy):
//  1. The provider credential is checked first. A missing key is a server
//     configuration error (500), whatever the request body holds.
//  2. The JSON body is bound and its required fields are checked (400).
//  3. The request goes to the configured provider. A vendor 4xx/5xx status is
//     passed through with its details; anything else is a 500.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// DefaultAudioContentType is sent when a binary voice-over has no type.
const DefaultAudioContentType = "audio/mpeg"

// proxy builds a handler running the common checks before call.
func proxy[Req any](backend services.Backend, concern services.Concern, validate func(Req) error, call func(*gin.Context, Req)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := backend.CheckCredentials(concern); err != nil {
			abortWithConfigurationError(c, err)
			return
		}
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithBadRequest(c, err)
			return
		}
		if err := validate(req); err != nil {
			abortWithBadRequest(c, err)
			return
		}
		call(c, req)
	}
}

// GenerationRouter registers the four proxies and the video status check.
func GenerationRouter(r gin.IRouter, backend services.Backend) {
	r.POST(services.PathScript, proxy(backend, services.ConcernScript, services.ValidateScript,
		func(c *gin.Context, req model.ScriptRequest) {
			script, err := backend.GenerateScript(c.Request.Context(), req)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, model.ScriptResponse{Script: script})
		}))

	r.POST(services.PathImage, proxy(backend, services.ConcernImage, services.ValidateImage,
		func(c *gin.Context, req model.ImageRequest) {
			imageURL, err := backend.GenerateImage(c.Request.Context(), req)
			if err == nil && imageURL == "" {
				err = &services.UpstreamError{Status: http.StatusBadGateway, Message: services.ErrMissingImageURL.Error()}
			}
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, model.ImageResponse{ImageURL: imageURL})
		}))

	r.POST(services.PathAudio, proxy(backend, services.ConcernAudio, services.ValidateAudio,
		func(c *gin.Context, req model.AudioRequest) {
			result, err := backend.GenerateAudio(c.Request.Context(), req)
			if err != nil {
				abortWithError(c, err)
				return
			}
			switch {
			case result.IsBinary():
				contentType := result.ContentType
				if contentType == "" {
					contentType = DefaultAudioContentType
				}
				c.Data(http.StatusOK, contentType, result.Data)
			case result.URL != "":
				c.JSON(http.StatusOK, model.AudioResponse{AudioURL: result.URL})
			default:
				abortWithError(c, &services.UpstreamError{Status: http.StatusBadGateway, Message: services.ErrUnrecognizedAudio.Error()})
			}
		}))

	r.POST(services.PathVideo, proxy(backend, services.ConcernVideo, services.ValidateVideo,
		func(c *gin.Context, req model.VideoRequest) {
			jobID, err := backend.SubmitVideo(c.Request.Context(), req)
			if err == nil && jobID == "" {
				err = &services.UpstreamError{Status: http.StatusBadGateway, Message: services.ErrMissingJobID.Error()}
			}
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, model.VideoAdmission{JobID: jobID, Message: "video generation started"})
		}))

	// Job ids may contain slashes, hence the catch-all parameter.
	r.GET(services.PathVideoStatus+"*jobId", func(c *gin.Context) {
		if err := backend.CheckCredentials(services.ConcernVideo); err != nil {
			abortWithConfigurationError(c, err)
			return
		}
		jobID := strings.Trim(c.Param("jobId"), "/")
		if jobID == "" {
			abortWithBadRequest(c, services.ErrInvalidInput)
			return
		}
		status, err := backend.CheckVideo(c.Request.Context(), jobID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}
