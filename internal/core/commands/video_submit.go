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

package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// VideoSubmit asks for an image-to-video job for one scene. The scene must
// already be generating_video; the command only waits for job admission,
// never for the render.
type VideoSubmit struct {
	cor.BaseCommand
	client services.GenerationClient
	store  *model.Store
}

func NewVideoSubmit(name string, client services.GenerationClient, store *model.Store) *VideoSubmit {
	out := &VideoSubmit{BaseCommand: *cor.NewBaseCommand(name), client: client, store: store}
	out.InputParamName = GetSceneIDParameterName()
	return out
}

func (v *VideoSubmit) Execute(context cor.Context) {
	sceneID := context.Get(v.GetInputParam()).(int)
	scene, err := v.store.Scene(sceneID)
	if err != nil {
		v.Fail(context, err)
		return
	}

	jobID, err := v.client.SubmitVideo(context.GetContext(), model.VideoRequest{
		SceneScript: scene.Script,
		ImageURL:    scene.ImageURL,
	})
	if err == nil && jobID == "" {
		err = services.ErrMissingJobID
	}
	if err != nil {
		err = fmt.Errorf("scene %d video: %w", sceneID, err)
		_ = v.store.FailScene(sceneID, err)
		v.Fail(context, err)
		return
	}

	v.Succeed(context)
	context.Add(GetVideoJobParameterName(), jobID)
	context.Add(v.GetOutputParam(), jobID)
}
