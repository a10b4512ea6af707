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
// This file defines the asset store abstraction used by providers that receive
// raw bytes from a model (Gemini images, Veo videos) but must hand a URL back
// to the caller.
package cloud

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// AssetStore persists a generated asset and returns a URL a browser can fetch.
type AssetStore interface {
	Put(ctx context.Context, name string, contentType string, data []byte) (string, error)
}

// URISigner is implemented by stores that can turn a provider owned object
// URI (e.g. gs://bucket/object) into a fetchable URL.
type URISigner interface {
	SignURI(ctx context.Context, uri string) (string, error)
}

// ObjectName builds a unique object name below prefix, e.g.
// "campaigns/images/3f0c...e1.png".
func ObjectName(prefix string, kind string, extension string) string {
	extension = strings.TrimPrefix(extension, ".")
	return path.Join(prefix, kind, fmt.Sprintf("%s.%s", uuid.NewString(), extension))
}

// ExtensionFor maps the MIME types produced by the providers to file extensions.
func ExtensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	default:
		return "bin"
	}
}

// SplitGCSURI splits gs://bucket/object into its bucket and object parts.
func SplitGCSURI(uri string) (bucket string, object string, err error) {
	const prefix = "gs://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("invalid GCS URI format: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, prefix), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", uri)
	}
	return parts[0], parts[1], nil
}
