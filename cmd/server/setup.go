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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/api"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/providers"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/workflow"
)

// APIPrefix is the base path of the campaign API.
const APIPrefix = "/api/v1"

type StateManager struct {
	config      *cloud.Config
	cloud       *cloud.ServiceClients
	backend     *providers.Set
	handles     *model.AudioHandles
	store       *model.Store
	coordinator *workflow.CampaignCoordinator
	pipeline    *workflow.ScenePipeline
	events      *api.EventHub
	publisher   *cloud.PubSubEventPublisher[model.Snapshot]
}

var state = &StateManager{}

func SetupOS() (err error) {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		if err := cloud.LoadDotEnv(); err != nil {
			log.Fatalf("failed to load credentials: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(&config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// snapshotAttributes are the Pub/Sub attributes of a published snapshot.
func snapshotAttributes(s model.Snapshot) map[string]string {
	return map[string]string{
		"run_id":        s.RunID,
		"is_generating": strconv.FormatBool(s.IsGenerating),
	}
}

// InitState wires the application. ctx is the lifetime of background runs
// and pollers.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return fmt.Errorf("create service clients: %w", err)
	}
	state.cloud = cloudClients

	backend, err := providers.NewSet(config, cloudClients)
	if err != nil {
		return fmt.Errorf("select providers: %w", err)
	}
	state.backend = backend

	handles, err := model.NewAudioHandles(config.Server.AudioDir, APIPrefix+api.AudioPath)
	if err != nil {
		return err
	}
	state.handles = handles
	state.store = model.NewStore(handles)

	state.events = api.NewEventHub(config.Server.AllowedOrigins)
	state.store.Subscribe(state.events)

	if cloudClients.PubsubClient != nil {
		state.publisher = cloud.NewPubSubEventPublisher(ctx, cloudClients.PubsubClient, config.Events.Topic, snapshotAttributes)
		state.store.Subscribe(state.publisher)
		slog.Info("publishing campaign events", "topic", config.Events.Topic)
	}

	client := services.NewLocalGenerationClient(backend)
	state.coordinator = workflow.NewCampaignCoordinator(state.store, client, handles, config.Application.ThreadPoolSize)
	state.pipeline = workflow.NewScenePipeline(ctx, state.store, client, config.Polling.Interval(), config.Polling.Ceiling())
	return nil
}

// CloseState waits for background work and releases the clients.
func CloseState() {
	state.coordinator.Wait()
	state.pipeline.Wait()
	if state.publisher != nil {
		state.publisher.Stop()
	}
	if snapshot := state.store.Snapshot(); snapshot.VoiceOver != nil {
		if err := state.handles.Release(*snapshot.VoiceOver); err != nil {
			slog.Warn("failed to release voice-over", "error", err)
		}
	}
	if err := state.cloud.Close(); err != nil {
		slog.Error("failed to close service clients", "error", err)
	}
}
