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

// Package cloud provides components for interacting with Google Cloud services.
// This file holds ServiceClients, the container for every external client the
// server uses. Clients are only created when the selected providers need them:
// a deployment that uses REST vendors for everything never dials Google Cloud.
//
// Logic Flow:
//  1. NewCloudServiceClients inspects the [providers], [storage] and [events]
//     sections of the configuration.
//  2. The genai client is created when a Gemini or Veo provider is selected,
//     against Vertex AI or the Gemini API depending on application.use_vertex.
//  3. The asset store (GCS or MinIO) is created when a provider returns bytes.
//  4. The Pub/Sub client is created when an events topic is configured.
//  5. Agent models from [agent_models.*] are wrapped in rate limited models.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

// GeminiAPIKeyEnv holds the Gemini API key when Vertex AI is not used.
const GeminiAPIKeyEnv = "GEMINI_API_KEY"

// ServiceClients holds the clients shared across the application. Fields of
// services that were not needed are nil.
type ServiceClients struct {
	StorageClient *storage.Client
	PubsubClient  *pubsub.Client
	GenAIClient   *genai.Client
	IAMClient     *credentials.IamCredentialsClient
	Assets        AssetStore
	AgentModels   map[string]*QuotaAwareGenerativeAIModel
}

// Close releases every client that was created.
func (c *ServiceClients) Close() error {
	var err error
	if c.StorageClient != nil {
		err = errors.Join(err, c.StorageClient.Close())
	}
	if c.PubsubClient != nil {
		err = errors.Join(err, c.PubsubClient.Close())
	}
	if c.IAMClient != nil {
		err = errors.Join(err, c.IAMClient.Close())
	}
	return err
}

// NeedsGenAI reports whether any selected provider talks to a Gemini model.
func NeedsGenAI(config *Config) bool {
	p := config.Providers
	return p.Script == ProviderGemini || p.Image == ProviderGemini || p.Video == ProviderVeo
}

// NeedsAssetStore reports whether any selected provider returns raw bytes
// that must be stored to obtain a URL.
func NeedsAssetStore(config *Config) bool {
	return config.Providers.Image == ProviderGemini || config.Providers.Video == ProviderVeo
}

// NewGenAIClient creates the genai client for Vertex AI or the Gemini API.
func NewGenAIClient(ctx context.Context, config *Config) (*genai.Client, error) {
	cc := &genai.ClientConfig{}
	if config.Application.UseVertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.Application.GoogleProjectId
		cc.Location = config.Application.GoogleLocation
	} else {
		key, err := Credential(GeminiAPIKeyEnv)
		if err != nil {
			return nil, err
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = key
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %w", err)
	}
	return gc, nil
}

// NewCloudServiceClients creates the clients required by config.
func NewCloudServiceClients(ctx context.Context, config *Config) (_ *ServiceClients, err error) {
	cloud := &ServiceClients{AgentModels: make(map[string]*QuotaAwareGenerativeAIModel)}
	defer func() {
		if err != nil {
			_ = cloud.Close()
		}
	}()

	if NeedsGenAI(config) {
		slog.Info("creating genai client",
			"project", config.Application.GoogleProjectId,
			"location", config.Application.GoogleLocation,
			"vertex", config.Application.UseVertex)
		cloud.GenAIClient, err = NewGenAIClient(ctx, config)
		switch {
		case errors.Is(err, ErrMissingCredential):
			// The Gemini backed providers report the missing key per request.
			slog.Warn("genai client not created", "error", err)
			err = nil
		case err != nil:
			return nil, err
		default:
			for key, values := range config.AgentModels {
				cloud.AgentModels[key] = NewAgentModel(values, cloud.GenAIClient.Models)
			}
		}
	}

	if NeedsAssetStore(config) {
		switch config.Storage.Driver {
		case StorageDriverMinio:
			cloud.Assets, err = NewMinioAssetStore(config.Storage)
			if err != nil {
				return nil, err
			}
		default:
			var opts []option.ClientOption
			if config.Storage.EmulatorHost != "" {
				opts = append(opts, option.WithEndpoint(config.Storage.EmulatorHost), option.WithoutAuthentication())
			}
			cloud.StorageClient, err = storage.NewClient(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("error creating storage client: %w", err)
			}
			if config.Application.SignerServiceAccountEmail != "" {
				cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx)
				if err != nil {
					return nil, fmt.Errorf("error creating IAM credentials client: %w", err)
				}
			}
			cloud.Assets = &GCSAssetStore{
				StorageClient: cloud.StorageClient,
				IAMClient:     cloud.IAMClient,
				SignerEmail:   config.Application.SignerServiceAccountEmail,
				Bucket:        config.Storage.AssetBucket,
				TTL:           config.Storage.SignedURLTTL(),
			}
		}
	}

	if config.Events.Topic != "" {
		cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, fmt.Errorf("error creating pubsub client: %w", err)
		}
	}

	return cloud, nil
}
