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
// first stage of a campaign run: writing the four part script.
//
// Logic Flow:
//  1. The CampaignInput arrives as the chain input.
//  2. The Generation Service is asked for a script for the product and vibe.
//  3. SplitScript cuts the text on blank lines. Anything other than exactly
//     four non-empty parts aborts the run, and no scene is touched.
//  4. The parts are assigned to the scenes in one store mutation and the
//     assembled script is published on the context for the voice-over.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// ScriptSeparator separates the scene parts of a script.
const ScriptSeparator = "\n\n"

// ErrScriptShape is returned when a script does not split into one part per scene.
var ErrScriptShape = errors.New("script does not have exactly four parts")

// SplitScript splits a generated script into its scene parts and returns the
// normalized full script (the parts joined by a blank line).
func SplitScript(raw string) ([]string, string, error) {
	segments := strings.Split(strings.TrimSpace(raw), ScriptSeparator)
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) != model.SceneCount {
		return nil, "", fmt.Errorf("%w: got %d", ErrScriptShape, len(parts))
	}
	return parts, strings.TrimSpace(strings.Join(parts, ScriptSeparator)), nil
}

// ScriptGenerate asks for the campaign script and assigns it to the scenes.
type ScriptGenerate struct {
	cor.BaseCommand
	client services.GenerationClient
	store  *model.Store
}

func NewScriptGenerate(name string, client services.GenerationClient, store *model.Store) *ScriptGenerate {
	return &ScriptGenerate{BaseCommand: *cor.NewBaseCommand(name), client: client, store: store}
}

func (s *ScriptGenerate) Execute(context cor.Context) {
	input := context.Get(s.GetInputParam()).(model.CampaignInput)

	raw, err := s.client.GenerateScript(context.GetContext(), model.ScriptRequest{
		ProductName: input.ProductName,
		Vibe:        input.Vibe,
	})
	if err != nil {
		s.Fail(context, fmt.Errorf("generate script: %w", err))
		return
	}
	parts, fullScript, err := SplitScript(raw)
	if err != nil {
		s.Fail(context, err)
		return
	}
	if err := s.store.AssignScripts(parts, fullScript); err != nil {
		s.Fail(context, err)
		return
	}

	s.Succeed(context)
	context.Add(GetFullScriptParameterName(), fullScript)
	// The input flows on to the image stage.
	context.Add(s.GetOutputParam(), input)
}
