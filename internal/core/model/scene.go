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

// Package model defines the core data structures for the application.
// This file holds the Scene entity and its status. A campaign always has
// exactly four scenes (Hook, Problem, Solution, CTA) created from static
// templates; they are mutated during a run but never added or removed.
package model

import (
	"encoding/json"
	"fmt"
)

// SceneCount is the fixed number of scenes in a campaign.
const SceneCount = 4

// StatusKind enumerates the states of a scene.
type StatusKind string

const (
	StatusKindPending         StatusKind = "pending"
	StatusKindScriptReady     StatusKind = "script_ready"
	StatusKindGeneratingImage StatusKind = "generating_image"
	StatusKindReady           StatusKind = "ready"
	StatusKindGeneratingVideo StatusKind = "generating_video"
	StatusKindPolling         StatusKind = "polling"
	StatusKindVideoReady      StatusKind = "video_ready"
	StatusKindError           StatusKind = "error"
)

// SceneStatus is a tagged variant. Attempt and MaxAttempts are only
// meaningful when Kind is StatusKindPolling.
type SceneStatus struct {
	Kind        StatusKind `json:"kind"`
	Attempt     int        `json:"attempt,omitempty"`
	MaxAttempts int        `json:"maxAttempts,omitempty"`
}

func StatusPending() SceneStatus         { return SceneStatus{Kind: StatusKindPending} }
func StatusScriptReady() SceneStatus     { return SceneStatus{Kind: StatusKindScriptReady} }
func StatusGeneratingImage() SceneStatus { return SceneStatus{Kind: StatusKindGeneratingImage} }
func StatusReady() SceneStatus           { return SceneStatus{Kind: StatusKindReady} }
func StatusGeneratingVideo() SceneStatus { return SceneStatus{Kind: StatusKindGeneratingVideo} }
func StatusVideoReady() SceneStatus      { return SceneStatus{Kind: StatusKindVideoReady} }
func StatusError() SceneStatus           { return SceneStatus{Kind: StatusKindError} }

// StatusPolling reports that the attempt-th status check of at most max is running.
func StatusPolling(attempt int, max int) SceneStatus {
	return SceneStatus{Kind: StatusKindPolling, Attempt: attempt, MaxAttempts: max}
}

// IsBusy is true while an asynchronous operation owns the scene.
func (s SceneStatus) IsBusy() bool {
	switch s.Kind {
	case StatusKindGeneratingImage, StatusKindGeneratingVideo, StatusKindPolling:
		return true
	default:
		return false
	}
}

// IsTerminal is true for the end states of a scene's pipeline.
func (s SceneStatus) IsTerminal() bool {
	return s.Kind == StatusKindVideoReady || s.Kind == StatusKindError
}

func (s SceneStatus) String() string {
	if s.Kind == StatusKindPolling {
		return fmt.Sprintf("%s(%d/%d)", s.Kind, s.Attempt, s.MaxAttempts)
	}
	return string(s.Kind)
}

// UnmarshalJSON rejects unknown kinds so clients cannot smuggle free text in.
func (s *SceneStatus) UnmarshalJSON(data []byte) error {
	type raw SceneStatus
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	switch r.Kind {
	case StatusKindPending, StatusKindScriptReady, StatusKindGeneratingImage, StatusKindReady,
		StatusKindGeneratingVideo, StatusKindPolling, StatusKindVideoReady, StatusKindError:
	default:
		return fmt.Errorf("unknown scene status %q", r.Kind)
	}
	*s = SceneStatus(r)
	return nil
}

// Scene is one of the four narrative segments of the advertisement.
type Scene struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Role     string      `json:"role"`
	Status   SceneStatus `json:"status"`
	Script   string      `json:"script,omitempty"`
	ImageURL string      `json:"imageUrl,omitempty"`
	VideoURL string      `json:"videoUrl,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// SceneTemplate is the static part of a scene.
type SceneTemplate struct {
	ID   int
	Name string
	Role string
}

// SceneTemplates are the four scenes, in order.
var SceneTemplates = [SceneCount]SceneTemplate{
	{ID: 1, Name: "Hook", Role: "Model uses the product (grabs attention)."},
	{ID: 2, Name: "Problem", Role: "Close-up of the product detail or the problem it solves."},
	{ID: 3, Name: "Solution", Role: "Feature or lifestyle the product offers."},
	{ID: 4, Name: "CTA", Role: "Model invites the viewer to buy (call to action)."},
}

func newScene(t SceneTemplate) Scene {
	return Scene{ID: t.ID, Name: t.Name, Role: t.Role, Status: StatusPending()}
}
