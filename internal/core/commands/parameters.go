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
// Responsibility (COR) pattern's Command interface. Every step of a campaign
// run, and of the per-scene video pipeline, is one command in this package.
package commands

// GetFullScriptParameterName returns the context key holding the assembled
// four part script once the script stage has succeeded.
func GetFullScriptParameterName() string {
	return "__FULL_SCRIPT__"
}

// GetSceneErrorsParameterName returns the context key of the per-scene
// outcome map (map[int]error) written by the image fan-out. Scene failures
// never become chain errors, so later stages still run.
func GetSceneErrorsParameterName() string {
	return "__SCENE_ERRORS__"
}

// GetRunIDParameterName returns the context key of the id of the run that
// owns the chain. Scene operations of the run are guarded with it.
func GetRunIDParameterName() string {
	return "__RUN_ID__"
}

// GetSceneIDParameterName returns the context key of the scene a video
// pipeline works on.
func GetSceneIDParameterName() string {
	return "__SCENE_ID__"
}

// GetVideoJobParameterName returns the context key of the admitted video job id.
func GetVideoJobParameterName() string {
	return "__VIDEO_JOB__"
}
