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
// campaign endpoints: starting a run, reading the state, the per-scene
// actions and the asset downloads.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/providers"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/workflow"
)

// VoiceOverFileName is the download name of the voice-over.
const VoiceOverFileName = "full_voiceover_audio.mp3"

// AudioPath is where local voice-over handles are served, relative to the
// campaign group.
const AudioPath = "/campaign/audio/"

// CampaignHandlers serves the campaign endpoints. Ctx is the lifetime of the
// runs they start; it must not be a request context.
type CampaignHandlers struct {
	Ctx         context.Context
	Coordinator *workflow.CampaignCoordinator
	Pipeline    *workflow.ScenePipeline
	Handles     *model.AudioHandles
	// HTTP fetches remote assets for download.
	HTTP *http.Client
}

// CampaignRouter registers the campaign endpoints under r.
func CampaignRouter(r gin.IRouter, h *CampaignHandlers) {
	if h.HTTP == nil {
		h.HTTP = &http.Client{Timeout: 2 * time.Minute}
	}
	campaign := r.Group("/campaign")
	{
		campaign.GET("", h.snapshot)
		campaign.POST("/runs", h.startRun)
		campaign.POST("/scenes/:id/image", h.regenerateImage)
		campaign.POST("/scenes/:id/video", h.generateVideo)
		campaign.GET("/scenes/:id/download/:asset", h.downloadSceneAsset)
		campaign.GET("/audio/download", h.downloadVoiceOver)
		campaign.GET("/audio/:handle", h.streamAudio)
	}
}

func (h *CampaignHandlers) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.Coordinator.Store().Snapshot())
}

func (h *CampaignHandlers) startRun(c *gin.Context) {
	var req model.CampaignRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBadRequest(c, err)
		return
	}
	runID, started, err := h.Coordinator.StartRunAsync(h.Ctx, req.Input())
	if errors.Is(err, model.ErrSceneBusy) {
		c.AbortWithStatusJSON(http.StatusConflict, model.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !started {
		c.JSON(http.StatusOK, gin.H{"status": "already_running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"runId": runID})
}

// sceneID parses the :id parameter, answering 400 or 404 itself.
func sceneID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		abortWithBadRequest(c, fmt.Errorf("scene id %q is not a number", c.Param("id")))
		return 0, false
	}
	if id < 1 || id > model.SceneCount {
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: model.ErrUnknownScene.Error()})
		return 0, false
	}
	return id, true
}

func (h *CampaignHandlers) regenerateImage(c *gin.Context) {
	id, ok := sceneID(c)
	if !ok {
		return
	}
	if err := h.Pipeline.RegenerateImage(id); err != nil {
		c.AbortWithStatusJSON(http.StatusConflict, model.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sceneId": id, "status": model.StatusKindGeneratingImage})
}

func (h *CampaignHandlers) generateVideo(c *gin.Context) {
	id, ok := sceneID(c)
	if !ok {
		return
	}
	admitted, err := h.Pipeline.GenerateVideo(id)
	if !admitted {
		body := gin.H{"admitted": false}
		if err != nil {
			body["error"] = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"admitted": true})
}

func (h *CampaignHandlers) streamAudio(c *gin.Context) {
	h.serveHandle(c, c.Param("handle"), "")
}

// serveHandle streams a local voice-over, as an attachment when filename is set.
func (h *CampaignHandlers) serveHandle(c *gin.Context, handle string, filename string) {
	if h.Handles == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: model.ErrUnknownHandle.Error()})
		return
	}
	file, contentType, err := h.Handles.Open(handle)
	if err != nil {
		if errors.Is(err, model.ErrUnknownHandle) {
			c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: err.Error()})
			return
		}
		abortWithError(c, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if contentType == "" {
		contentType = DefaultAudioContentType
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, attachment(filename))
}

func attachment(filename string) map[string]string {
	if filename == "" {
		return nil
	}
	return map[string]string{"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename)}
}

// SceneFileName returns the download name of a scene asset, e.g. "Hook_image.png".
func SceneFileName(scene model.Scene, asset string) string {
	name := strings.Join(strings.Fields(scene.Name), "-")
	if asset == "video" {
		return name + "_video.mp4"
	}
	return name + "_image.png"
}

func (h *CampaignHandlers) downloadSceneAsset(c *gin.Context) {
	id, ok := sceneID(c)
	if !ok {
		return
	}
	scene, err := h.Coordinator.Store().Scene(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var assetURL string
	switch asset := c.Param("asset"); asset {
	case "image":
		assetURL = scene.ImageURL
	case "video":
		assetURL = scene.VideoURL
	default:
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: fmt.Sprintf("unknown asset %q", asset)})
		return
	}
	if assetURL == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: "asset is not generated yet"})
		return
	}
	h.download(c, assetURL, SceneFileName(scene, c.Param("asset")))
}

func (h *CampaignHandlers) downloadVoiceOver(c *gin.Context) {
	voiceOver := h.Coordinator.Store().Snapshot().VoiceOver
	switch {
	case voiceOver == nil:
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: "voice-over is not generated yet"})
	case voiceOver.IsLocal():
		h.serveHandle(c, voiceOver.Handle, VoiceOverFileName)
	default:
		h.download(c, voiceOver.URL, VoiceOverFileName)
	}
}

// download sends a data URL or a remote asset as an attachment.
func (h *CampaignHandlers) download(c *gin.Context, assetURL string, filename string) {
	if strings.HasPrefix(assetURL, "data:") {
		mimeType, data, err := providers.DecodeDataURL(assetURL)
		if err != nil {
			abortWithError(c, err)
			return
		}
		for k, v := range attachment(filename) {
			c.Header(k, v)
		}
		c.Data(http.StatusOK, mimeType, data)
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, assetURL, nil)
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp, err := h.HTTP.Do(req)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, model.ErrorResponse{Error: "asset could not be fetched", Details: err.Error()})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.AbortWithStatusJSON(http.StatusBadGateway, model.ErrorResponse{Error: "asset could not be fetched", Details: strings.TrimSpace(string(body))})
		return
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength, resp.Header.Get("Content-Type"), resp.Body, attachment(filename))
}
