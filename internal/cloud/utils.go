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
// This file contains the hierarchical configuration loader and the helper
// used to turn a genai response into plain text.
//
// Functions:
//   - LoadConfig: Reads `.env.toml` and then overlays `.env.<runtime>.toml` from
//     the directory named by GCP_CONFIG_PREFIX. The runtime comes from GCP_RUNTIME.
//   - GenerateText: Sends content to a rate-limited model, records token usage and
//     concatenates the text parts of the response.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime (e.g., "local", "test").
)

// ErrEmptyResponse is returned when a model answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig populates baseConfig from the base TOML file and then from the
// runtime specific override. Missing files are skipped; malformed files are an error.
func LoadConfig(baseConfig any) error {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension
	slog.Debug("loading configuration", "base", baseConfigFileName, "override", envConfigFileName)

	for _, name := range []string{baseConfigFileName, envConfigFileName} {
		if !fileExists(name) {
			continue
		}
		if _, err := toml.DecodeFile(name, baseConfig); err != nil {
			return fmt.Errorf("failed to decode configuration file %s: %w", name, err)
		}
	}
	return nil
}

// TokenCounters groups the OpenTelemetry counters recorded for every model call.
type TokenCounters struct {
	Input  metric.Int64Counter
	Output metric.Int64Counter
}

// NewTokenCounters creates the input/output token counters under the given prefix.
func NewTokenCounters(meter metric.Meter, prefix string) TokenCounters {
	in, _ := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", prefix))
	out, _ := meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", prefix))
	return TokenCounters{Input: in, Output: out}
}

func (t TokenCounters) record(ctx context.Context, usage *genai.GenerateContentResponseUsageMetadata) {
	if usage == nil {
		return
	}
	if t.Input != nil {
		t.Input.Add(ctx, int64(usage.PromptTokenCount))
	}
	if t.Output != nil {
		t.Output.Add(ctx, int64(usage.CandidatesTokenCount))
	}
}

// GenerateText executes a request against a content generator and returns the
// concatenated text of all candidates. There is no retry: a failed call is
// returned to the caller as is.
func GenerateText(ctx context.Context, counters TokenCounters, model ContentGenerator, content []*genai.Content) (string, error) {
	resp, err := model.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	counters.record(ctx, resp.UsageMetadata)

	var value strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			value.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(value.String()) == "" {
		return "", ErrEmptyResponse
	}
	return value.String(), nil
}

// FirstInlineData returns the first binary part of a response, used by image models.
func FirstInlineData(ctx context.Context, counters TokenCounters, resp *genai.GenerateContentResponse) (*genai.Blob, error) {
	counters.record(ctx, resp.UsageMetadata)
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData, nil
			}
		}
	}
	return nil, ErrEmptyResponse
}

// NewTextPart wraps a prompt into user content.
func NewTextPart(in string) []*genai.Content {
	return genai.Text(in)
}
