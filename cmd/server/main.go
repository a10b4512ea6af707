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

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/api"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/telemetry"
)

func main() {
	config := GetConfig()

	telemetry.SetupLogging(config.Telemetry.LogLevel)
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	if err := InitState(ctx); err != nil {
		slog.Error("Failed to initialize state", "error", err)
		log.Fatal(err)
	}
	slog.Info("Initialized State")

	name := config.Application.Name
	if name == "" {
		name = "ugc-studio-server"
	}
	r := api.NewRouter(name, config.Server.AllowedOrigins)

	// The Generation Service proxies live at /api/generate-*.
	api.GenerationRouter(r, state.backend)

	apiV1 := r.Group(APIPrefix)
	{
		api.CampaignRouter(apiV1, &api.CampaignHandlers{
			Ctx:         ctx,
			Coordinator: state.coordinator,
			Pipeline:    state.pipeline,
			Handles:     state.handles,
		})
		api.EventsRouter(apiV1, state.events, state.store.Snapshot)
	}

	addr := config.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen", "error", err)
			cancel()
		}
	}()
	slog.Info("Server ready", "address", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("Shutdown Server ...")

	grace := time.Duration(config.Server.ShutdownSeconds) * time.Second
	if grace <= 0 {
		grace = 5 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed", "error", err)
	}

	// Stopping the root context ends the pollers; their scenes are marked failed.
	cancel()
	CloseState()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("failed to shutdown telemetry", "error", err)
	}
	log.Println("Server exiting")
}
