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

// Package api contains the HTTP surface of the server: the Generation Service
// proxy endpoints, the campaign endpoints and the websocket event stream.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// NewRouter creates the gin engine with the middleware shared by every route.
// Routes are registered with one method each; any other method answers 405.
func NewRouter(serviceName string, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))

	if len(allowedOrigins) == 0 {
		r.Use(cors.Default())
	} else {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = allowedOrigins
		r.Use(cors.New(corsConfig))
	}

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, model.ErrorResponse{Error: "method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not found"})
	})
	return r
}

// abortWithError writes the JSON error of err with the status the error
// taxonomy assigns to it.
func abortWithError(c *gin.Context, err error) {
	if errors.Is(err, cloud.ErrMissingCredential) {
		abortWithConfigurationError(c, err)
		return
	}
	status := services.StatusCode(err)
	body := model.ErrorResponse{Error: err.Error()}
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		body.Error = upstream.Message
		body.Details = upstream.Details
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		slog.WarnContext(c.Request.Context(), "request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

// abortWithConfigurationError reports an operator problem, never a client one.
func abortWithConfigurationError(c *gin.Context, err error) {
	slog.ErrorContext(c.Request.Context(), "provider is not configured", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "configuration error", Details: err.Error()})
}

func abortWithBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request", Details: err.Error()})
}
