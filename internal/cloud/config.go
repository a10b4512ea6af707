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

// Package cloud defines the application configuration, loaded from TOML files,
// and the clients used to reach Google Cloud and the generation vendors.
//
// Structs:
//   - Server: HTTP listener settings and the local voice-over handle directory.
//   - Storage: Where generated assets (images, videos) are written.
//   - Providers: Which vendor implementation backs each generation endpoint.
//   - VertexAiLLMModel: Settings for a Gemini model used through genai.
//   - VideoModel: Settings for the Veo image-to-video model.
//   - Vendor: A REST vendor endpoint and the environment variable holding its key.
//   - Polling: Cadence and ceiling of the video job poller.
//   - PromptTemplates: text/template sources for the script, image and motion prompts.
//   - Config: The root struct aggregating all of the above.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings keeps ad copy and product shots from being blocked on
// borderline categories. Sexually explicit content stays blocked.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockOnlyHigh,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
	},
}

// Provider names accepted in the [providers] section.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderVendor     = "vendor"
	ProviderElevenLabs = "elevenlabs"
	ProviderVeo        = "veo"
)

// Storage drivers accepted in the [storage] section.
const (
	StorageDriverGCS   = "gcs"
	StorageDriverMinio = "minio"
)

// Server holds the HTTP listener configuration.
type Server struct {
	Address         string   `toml:"address"`          // Listen address, e.g. ":8080".
	AudioDir        string   `toml:"audio_dir"`        // Directory for local voice-over handles. Empty means os.TempDir().
	ShutdownSeconds int      `toml:"shutdown_seconds"` // Grace period for in-flight requests on shutdown.
	AllowedOrigins  []string `toml:"allowed_origins"`
}

// MinIO holds the connection settings for the MinIO asset store.
type MinIO struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"` // Prefer MINIO_SECRET_KEY in the environment.
	UseSSL    bool   `toml:"use_ssl"`
}

// Storage represents the configuration for generated asset storage.
type Storage struct {
	Driver           string `toml:"driver"`             // "gcs" or "minio".
	AssetBucket      string `toml:"asset_bucket"`       // Bucket receiving generated images and videos.
	ObjectPrefix     string `toml:"object_prefix"`      // Prefix for every object name.
	SignedURLMinutes int    `toml:"signed_url_minutes"` // Lifetime of the returned asset URLs.
	EmulatorHost     string `toml:"emulator_host"`      // Optional GCS emulator endpoint.
	MinIO            MinIO  `toml:"minio"`
}

// SignedURLTTL returns the configured asset URL lifetime, defaulting to one day.
func (s Storage) SignedURLTTL() time.Duration {
	if s.SignedURLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.SignedURLMinutes) * time.Minute
}

// Providers selects the implementation behind each generation endpoint.
type Providers struct {
	Script string `toml:"script"` // gemini | openai | openrouter
	Image  string `toml:"image"`  // gemini | vendor
	Audio  string `toml:"audio"`  // vendor | elevenlabs
	Video  string `toml:"video"`  // veo | vendor
}

// VertexAiLLMModel represents the configuration for a Gemini model.
type VertexAiLLMModel struct {
	Model              string   `toml:"model"`
	SystemInstructions string   `toml:"system_instructions"`
	Temperature        float32  `toml:"temperature"`
	TopP               float32  `toml:"top_p"`
	MaxTokens          int32    `toml:"max_tokens"`
	OutputFormat       string   `toml:"output_format"`
	Modalities         []string `toml:"modalities"` // e.g. ["IMAGE", "TEXT"] for image models.
	RateLimit          int      `toml:"rate_limit"` // Requests per second.
}

// VideoModel represents the configuration for the Veo model.
type VideoModel struct {
	Model            string `toml:"model"`
	AspectRatio      string `toml:"aspect_ratio"`
	DurationSeconds  int32  `toml:"duration_seconds"`
	PersonGeneration string `toml:"person_generation"`
	OutputGCSURI     string `toml:"output_gcs_uri"` // Optional gs:// prefix for Veo output on Vertex.
	RateLimit        int    `toml:"rate_limit"`
}

// Vendor describes a REST generation vendor.
type Vendor struct {
	URL            string  `toml:"url"`
	StatusURL      string  `toml:"status_url"` // Video vendors only; "%s" is replaced by the job id.
	CredentialEnv  string  `toml:"credential_env"`
	Model          string  `toml:"model"`
	Voice          string  `toml:"voice"`
	Speed          float64 `toml:"speed"`
	Format         string  `toml:"format"`
	RateLimit      int     `toml:"rate_limit"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Timeout returns the vendor HTTP timeout, defaulting to 60 seconds.
func (v Vendor) Timeout() time.Duration {
	if v.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// OpenAIModel configures the OpenAI compatible script providers.
type OpenAIModel struct {
	Model         string  `toml:"model"`
	BaseURL       string  `toml:"base_url"`
	CredentialEnv string  `toml:"credential_env"`
	Temperature   float64 `toml:"temperature"`
}

// Polling configures the video job poller.
type Polling struct {
	IntervalSeconds int `toml:"interval_seconds"`
	MaxAttempts     int `toml:"max_attempts"`
}

// Interval returns the wait between two status checks.
func (p Polling) Interval() time.Duration {
	if p.IntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Ceiling returns the maximum number of status checks.
func (p Polling) Ceiling() int {
	if p.MaxAttempts <= 0 {
		return 10
	}
	return p.MaxAttempts
}

// PromptTemplates holds the text/template sources for the generation prompts.
type PromptTemplates struct {
	Script string `toml:"script"`
	Image  string `toml:"image"`
	Motion string `toml:"motion"`
}

// Events configures where store snapshots are published.
type Events struct {
	Topic string `toml:"topic"` // Pub/Sub topic id. Empty disables publishing.
}

// Telemetry configures the OpenTelemetry exporters.
type Telemetry struct {
	Exporter string `toml:"exporter"` // "gcp" or "none".
	LogLevel string `toml:"log_level"`
}

// Config represents the overall configuration for the application.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		UseVertex                 bool   `toml:"use_vertex"` // false means the Gemini API with GEMINI_API_KEY.
		ThreadPoolSize            int    `toml:"thread_pool_size"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
	} `toml:"application"`
	Server          Server                      `toml:"server"`
	Storage         Storage                     `toml:"storage"`
	Providers       Providers                   `toml:"providers"`
	AgentModels     map[string]VertexAiLLMModel `toml:"agent_models"` // Keyed by "script-writer" and "scene-painter".
	VideoModel      VideoModel                  `toml:"video_model"`
	Vendors         map[string]Vendor           `toml:"vendors"` // Keyed by "image", "audio", "elevenlabs", "video".
	OpenAI          map[string]OpenAIModel      `toml:"openai"`  // Keyed by "openai" and "openrouter".
	Polling         Polling                     `toml:"polling"`
	PromptTemplates PromptTemplates             `toml:"prompt_templates"`
	Events          Events                      `toml:"events"`
	Telemetry       Telemetry                   `toml:"telemetry"`
}

// Logical model keys.
const (
	ScriptModelKey = "script-writer"
	ImageModelKey  = "scene-painter"
)

// NewConfig creates a Config with its maps initialized so the TOML decoder can
// populate them.
func NewConfig() *Config {
	return &Config{
		AgentModels: make(map[string]VertexAiLLMModel),
		Vendors:     make(map[string]Vendor),
		OpenAI:      make(map[string]OpenAIModel),
	}
}
