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

package providers

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

const DefaultElevenLabsModel = "eleven_multilingual_v2"

// ElevenLabsAudioProvider returns the voice-over as an audio/mpeg binary.
// The configured url may contain "%s", which is replaced by the voice id.
type ElevenLabsAudioProvider struct {
	vendorClient
}

func NewElevenLabsAudioProvider(cfg cloud.Vendor) *ElevenLabsAudioProvider {
	c := newVendorClient(cfg)
	c.authHeader = "xi-api-key"
	return &ElevenLabsAudioProvider{vendorClient: c}
}

type elevenLabsPayload struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (p *ElevenLabsAudioProvider) GenerateAudio(ctx context.Context, req model.AudioRequest) (services.AudioResult, error) {
	url := p.cfg.URL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, p.cfg.Voice)
	}
	resp, err := p.do(ctx, http.MethodPost, url, elevenLabsPayload{
		Text:    req.FullScript,
		ModelID: orDefault(p.cfg.Model, DefaultElevenLabsModel),
	})
	if err != nil {
		return services.AudioResult{}, err
	}
	if len(resp.Body) == 0 || !filetype.IsAudio(resp.Body) {
		return services.AudioResult{}, fmt.Errorf("%w: vendor body is not audio", services.ErrUnrecognizedAudio)
	}
	contentType, _, _ := mime.ParseMediaType(resp.ContentType)
	if !strings.HasPrefix(contentType, "audio/") {
		kind, _ := filetype.Match(resp.Body)
		contentType = kind.MIME.Value
	}
	return services.AudioResult{Data: resp.Body, ContentType: contentType}, nil
}
