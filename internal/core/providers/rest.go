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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// vendorClient is the shared plumbing of the REST vendors: bearer auth from
// the configured environment variable, a request timeout and a token bucket.
type vendorClient struct {
	cfg     cloud.Vendor
	http    *http.Client
	limiter *rate.Limiter
	// authHeader overrides the default "Authorization: Bearer" scheme.
	authHeader string
}

func newVendorClient(cfg cloud.Vendor) vendorClient {
	return vendorClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout()},
		limiter: cloud.NewLimiter(cfg.RateLimit),
	}
}

func (v vendorClient) CheckCredentials() error {
	if v.cfg.URL == "" {
		return fmt.Errorf("%w: vendor url is not configured", ErrMissingCredential)
	}
	_, err := cloud.Credential(v.cfg.CredentialEnv)
	return err
}

// vendorResponse is a successful vendor answer.
type vendorResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

func (v vendorClient) do(ctx context.Context, method string, url string, payload any) (*vendorResponse, error) {
	apiKey, err := cloud.Credential(v.cfg.CredentialEnv)
	if err != nil {
		return nil, err
	}
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode vendor payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.authHeader != "" {
		req.Header.Set(v.authHeader, apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call vendor %s: %w", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read vendor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &services.UpstreamError{
			Status:  resp.StatusCode,
			Message: "vendor request failed",
			Details: vendorDetails(data),
		}
	}
	return &vendorResponse{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: data}, nil
}

// vendorDetails returns the decoded JSON body, or the trimmed text.
func vendorDetails(data []byte) any {
	var details any
	if err := json.Unmarshal(data, &details); err == nil {
		return details
	}
	return strings.TrimSpace(string(data))
}

// decodeJSON decodes a vendor body; an undecodable body is an upstream
// protocol error.
func decodeJSON(resp *vendorResponse, out any) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &services.UpstreamError{Status: http.StatusBadGateway, Message: "vendor returned malformed JSON", Details: vendorDetails(resp.Body)}
	}
	return nil
}
