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
	"fmt"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
)

const DefaultScriptPrompt = `Write a voice-over script for a UGC (user-generated content) product advertisement for social media.
The script must be casual, persuasive and short (30 seconds in total at most).

Product: {{.ProductName}}
Vibe: {{.Vibe}}

The script MUST be split into exactly 4 parts separated by a blank line (double newline),
in the following scene order:
{{range .Scenes}}
{{.ID}}. {{.Name}}: {{.Role}}{{end}}

Return ONLY the 4 part script, without any introduction or closing remarks.`

const DefaultImagePrompt = `Close-up shot for social media UGC video, product: {{.ProductName}}. Scene role: {{.SceneRole}}. Script dialogue: "{{.Script}}". --- High quality, realistic photo, shot vertically (9:16 aspect ratio), social media influencer style.`

const DefaultMotionPrompt = `Animate the image smoothly, focusing on the product. Use a slight camera movement. The video should look like a casual social media UGC clip. Dialogue context: "{{.SceneScript}}"`

// Prompts renders the generation prompts from text/template sources.
type Prompts struct {
	script *template.Template
	image  *template.Template
	motion *template.Template
}

// NewPrompts parses the configured templates; empty ones use the defaults.
func NewPrompts(cfg cloud.PromptTemplates) (*Prompts, error) {
	parse := func(name string, src string, fallback string) (*template.Template, error) {
		if strings.TrimSpace(src) == "" {
			src = fallback
		}
		t, err := template.New(name).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt template: %w", name, err)
		}
		return t, nil
	}
	var p Prompts
	var err error
	if p.script, err = parse("script", cfg.Script, DefaultScriptPrompt); err != nil {
		return nil, err
	}
	if p.image, err = parse("image", cfg.Image, DefaultImagePrompt); err != nil {
		return nil, err
	}
	if p.motion, err = parse("motion", cfg.Motion, DefaultMotionPrompt); err != nil {
		return nil, err
	}
	return &p, nil
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return sb.String(), nil
}

type scriptPromptData struct {
	model.ScriptRequest
	Scenes [model.SceneCount]model.SceneTemplate
}

// Script renders the four part script prompt.
func (p *Prompts) Script(req model.ScriptRequest) (string, error) {
	return render(p.script, scriptPromptData{ScriptRequest: req, Scenes: model.SceneTemplates})
}

// Image renders the still image prompt of one scene.
func (p *Prompts) Image(req model.ImageRequest) (string, error) {
	return render(p.image, req)
}

// Motion renders the image-to-video prompt of one scene.
func (p *Prompts) Motion(req model.VideoRequest) (string, error) {
	return render(p.motion, req)
}
