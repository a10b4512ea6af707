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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// third stage of a campaign run: the voice-over for the whole script.
//
// Logic Flow:
//  1. The command only runs when the script stage produced a full script.
//  2. The Generation Service answers with either a URL or an audio binary.
//     A binary is written to a local handle so it can be served back later.
//  3. The store releases the handle of a previous voice-over before keeping
//     the new one. A failure is recorded on the chain but leaves the scenes
//     of stages one and two untouched.
package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// AudioAcquirer turns an audio binary into a local handle.
type AudioAcquirer interface {
	Acquire(data []byte, contentType string) (model.AudioRef, error)
}

// VoiceOver generates the campaign voice-over.
type VoiceOver struct {
	cor.BaseCommand
	client  services.GenerationClient
	store   *model.Store
	handles AudioAcquirer
}

func NewVoiceOver(name string, client services.GenerationClient, store *model.Store, handles AudioAcquirer) *VoiceOver {
	out := &VoiceOver{BaseCommand: *cor.NewBaseCommand(name), client: client, store: store, handles: handles}
	out.InputParamName = GetFullScriptParameterName()
	return out
}

// IsExecutable skips the stage when there is no script to read.
func (v *VoiceOver) IsExecutable(context cor.Context) bool {
	if !v.BaseCommand.IsExecutable(context) {
		return false
	}
	fullScript, ok := context.Get(v.GetInputParam()).(string)
	return ok && strings.TrimSpace(fullScript) != ""
}

func (v *VoiceOver) Execute(context cor.Context) {
	fullScript := context.Get(v.GetInputParam()).(string)

	result, err := v.client.GenerateAudio(context.GetContext(), model.AudioRequest{FullScript: fullScript})
	if err != nil {
		v.Fail(context, fmt.Errorf("generate voice-over: %w", err))
		return
	}

	var ref model.AudioRef
	switch {
	case result.IsBinary():
		if v.handles == nil {
			v.Fail(context, fmt.Errorf("%w: no local audio storage", services.ErrUnrecognizedAudio))
			return
		}
		ref, err = v.handles.Acquire(result.Data, result.ContentType)
		if err != nil {
			v.Fail(context, fmt.Errorf("store voice-over: %w", err))
			return
		}
	case result.URL != "":
		ref = model.AudioRef{URL: result.URL, ContentType: result.ContentType}
	default:
		v.Fail(context, services.ErrUnrecognizedAudio)
		return
	}

	if err := v.store.SetVoiceOver(ref); err != nil {
		// The new voice-over is kept; only the old handle could not be removed.
		slog.WarnContext(context.GetContext(), "previous voice-over was not released", "error", err)
	}
	v.Succeed(context)
	context.Add(v.GetOutputParam(), ref)
}
