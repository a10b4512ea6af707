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

package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownHandle is returned for handles that were never acquired or were released.
var ErrUnknownHandle = errors.New("unknown audio handle")

// AudioRef references the voice-over. Either URL points at a remote asset, or
// Handle names a local binary held by AudioHandles (URL is then the path the
// server exposes it under).
type AudioRef struct {
	URL         string `json:"url,omitempty"`
	Handle      string `json:"handle,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// IsLocal reports whether the ref owns a local handle that must be released.
func (a AudioRef) IsLocal() bool {
	return a.Handle != ""
}

// AudioReleaser releases local handles. Releasing a remote ref is a no-op.
type AudioReleaser interface {
	Release(ref AudioRef) error
}

type localAudio struct {
	path        string
	contentType string
}

// AudioHandles keeps binary voice-overs on local disk under opaque handles.
type AudioHandles struct {
	dir     string
	baseURL string

	mu    sync.Mutex
	files map[string]localAudio
}

// NewAudioHandles creates the handle directory. baseURL is the path prefix the
// handles are served under, e.g. "/api/v1/campaign/audio/".
func NewAudioHandles(dir string, baseURL string) (*AudioHandles, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ugc-studio-audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir %s: %w", dir, err)
	}
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &AudioHandles{dir: dir, baseURL: baseURL, files: make(map[string]localAudio)}, nil
}

// Acquire writes data to a new handle.
func (h *AudioHandles) Acquire(data []byte, contentType string) (AudioRef, error) {
	if len(data) == 0 {
		return AudioRef{}, errors.New("empty audio payload")
	}
	handle := uuid.NewString()
	path := filepath.Join(h.dir, handle+".audio")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return AudioRef{}, fmt.Errorf("write audio handle: %w", err)
	}

	h.mu.Lock()
	h.files[handle] = localAudio{path: path, contentType: contentType}
	h.mu.Unlock()

	return AudioRef{URL: h.baseURL + handle, Handle: handle, ContentType: contentType}, nil
}

// Release deletes a local handle.
func (h *AudioHandles) Release(ref AudioRef) error {
	if !ref.IsLocal() {
		return nil
	}
	h.mu.Lock()
	f, ok := h.files[ref.Handle]
	delete(h.files, ref.Handle)
	h.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove audio handle %s: %w", ref.Handle, err)
	}
	return nil
}

// Open returns the file behind a handle and its content type. The caller closes the file.
func (h *AudioHandles) Open(handle string) (*os.File, string, error) {
	h.mu.Lock()
	f, ok := h.files[handle]
	h.mu.Unlock()
	if !ok {
		return nil, "", ErrUnknownHandle
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, "", err
	}
	return file, f.contentType, nil
}

// Len returns the number of live handles.
func (h *AudioHandles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.files)
}
