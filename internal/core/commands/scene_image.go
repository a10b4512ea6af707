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
	goctx "context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
)

// NewSceneImageRequest builds the image request of one scene. The scene role
// sent to the service is the role description of the scene template.
func NewSceneImageRequest(input model.CampaignInput, scene model.Scene) model.ImageRequest {
	return model.ImageRequest{
		ProductName:           input.ProductName,
		SceneRole:             scene.Role,
		Script:                scene.Script,
		ReferenceImageProduct: input.ReferenceImages.Product,
		ReferenceImageModel:   input.ReferenceImages.Model,
	}
}

// paintScene renders the image of a scene that is already generating_image
// and records the outcome on that scene only.
func paintScene(ctx goctx.Context, span trace.Span, client services.GenerationClient, store *model.Store, sceneID int, req model.ImageRequest) error {
	span.SetAttributes(attribute.Int("scene", sceneID))
	imageURL, err := client.GenerateImage(ctx, req)
	if err == nil && imageURL == "" {
		err = services.ErrMissingImageURL
	}
	if err != nil {
		span.SetStatus(codes.Error, "scene image failed")
		err = fmt.Errorf("scene %d image: %w", sceneID, err)
		return errors.Join(err, store.FailScene(sceneID, err))
	}
	if err := store.CompleteImage(sceneID, imageURL); err != nil {
		span.SetStatus(codes.Error, "scene image not stored")
		return err
	}
	span.SetStatus(codes.Ok, "scene image ready")
	return nil
}

// SceneImage renders the image of a single scene. It is the regenerate
// action: the caller has already moved the scene to generating_image, so the
// command only does the remote call and the completion.
type SceneImage struct {
	cor.BaseCommand
	client services.GenerationClient
	store  *model.Store
}

func NewSceneImage(name string, client services.GenerationClient, store *model.Store) *SceneImage {
	out := &SceneImage{BaseCommand: *cor.NewBaseCommand(name), client: client, store: store}
	out.InputParamName = GetSceneIDParameterName()
	return out
}

func (s *SceneImage) Execute(context cor.Context) {
	sceneID := context.Get(s.GetInputParam()).(int)
	scene, err := s.store.Scene(sceneID)
	if err != nil {
		s.Fail(context, err)
		return
	}
	req := NewSceneImageRequest(s.store.Input(), scene)

	ctx, span := s.Tracer.Start(context.GetContext(), fmt.Sprintf("%s_scene_%d", s.GetName(), sceneID))
	defer span.End()
	if err := paintScene(ctx, span, s.client, s.store, sceneID, req); err != nil {
		s.Fail(context, err)
		return
	}
	s.Succeed(context)
	context.Add(s.GetOutputParam(), sceneID)
}
