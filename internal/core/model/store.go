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
// This file defines the Store, the single owned state object of a campaign.
//
// Logic Flow:
//  1. The coordinator acquires the run with BeginRun, which resets the four
//     scenes and releases any voice-over handle left from the previous run.
//     BeginRun is refused while a scene still has an operation in flight, so
//     no operation outlives the scenes it was started on.
//  2. Stage commands mutate scenes through guarded transitions (BeginRunImage,
//     BeginImage, BeginVideo) and completion methods. Guards are checked under
//     the lock, before any asynchronous work starts.
//  3. While a run holds the campaign, only the run itself may start scene
//     operations. User actions are refused with ErrRunInProgress.
//  4. Completions and failures are only accepted from a scene that is busy
//     with the matching operation.
//  5. Every mutation publishes a Snapshot to the registered observers, in
//     mutation order.
package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnknownScene   = errors.New("unknown scene")
	ErrSceneBusy      = errors.New("scene already has an operation in flight")
	ErrSceneNoScript  = errors.New("scene has no script yet")
	ErrSceneNoImage   = errors.New("scene has no image yet")
	ErrSceneHasVideo  = errors.New("scene already has a video")
	ErrScriptCount    = errors.New("script must have exactly four parts")
	ErrSceneNotActive = errors.New("scene is not in the expected state")
	ErrRunInProgress  = errors.New("a campaign run is in progress")
	ErrRunNotActive   = errors.New("campaign run is no longer active")
)

// ReferenceImages are the opaque encoded images supplied by the user.
type ReferenceImages struct {
	Product string `json:"-"`
	Model   string `json:"-"`
}

// CampaignInput is immutable for the duration of a run.
type CampaignInput struct {
	ProductName     string          `json:"productName"`
	Vibe            string          `json:"vibe"`
	ReferenceImages ReferenceImages `json:"-"`
}

// Snapshot is a copy of the campaign state. It is safe to keep and to encode.
type Snapshot struct {
	RunID        string            `json:"runId,omitempty"`
	Input        CampaignInput     `json:"input"`
	FullScript   string            `json:"fullScript,omitempty"`
	VoiceOver    *AudioRef         `json:"voiceOver,omitempty"`
	IsGenerating bool              `json:"isGenerating"`
	Scenes       [SceneCount]Scene `json:"scenes"`
}

// Scene returns the scene with the given id from the snapshot.
func (s Snapshot) Scene(id int) (Scene, bool) {
	if id < 1 || id > SceneCount {
		return Scene{}, false
	}
	return s.Scenes[id-1], true
}

// Observer receives a snapshot after every change. Observers must not call
// mutating Store methods synchronously.
type Observer interface {
	OnChange(snapshot Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(snapshot Snapshot)

func (f ObserverFunc) OnChange(snapshot Snapshot) { f(snapshot) }

// Store is the campaign state. The zero value is not usable; use NewStore.
type Store struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	runID        string
	input        CampaignInput
	fullScript   string
	voiceOver    *AudioRef
	isGenerating bool
	scenes       [SceneCount]Scene

	releaser     AudioReleaser
	observers    map[int]Observer
	nextObserver int
}

// NewStore creates the four scenes from SceneTemplates. releaser may be nil
// when voice-overs are never local.
func NewStore(releaser AudioReleaser) *Store {
	s := &Store{releaser: releaser, observers: make(map[int]Observer)}
	for i, t := range SceneTemplates {
		s.scenes[i] = newScene(t)
	}
	return s
}

// Subscribe registers an observer and returns a function removing it.
func (s *Store) Subscribe(o Observer) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = o
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Scene returns a copy of one scene.
func (s *Store) Scene(id int) (Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.sceneLocked(id)
	if err != nil {
		return Scene{}, err
	}
	return *sc, nil
}

// IsGenerating reports whether a run holds the campaign.
func (s *Store) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isGenerating
}

func (s *Store) snapshotLocked() Snapshot {
	out := Snapshot{
		RunID:        s.runID,
		Input:        s.input,
		FullScript:   s.fullScript,
		IsGenerating: s.isGenerating,
		Scenes:       s.scenes,
	}
	if s.voiceOver != nil {
		ref := *s.voiceOver
		out.VoiceOver = &ref
	}
	return out
}

func (s *Store) sceneLocked(id int) (*Scene, error) {
	if id < 1 || id > SceneCount {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScene, id)
	}
	return &s.scenes[id-1], nil
}

// commit runs fn under the state lock and, when it succeeds, publishes the new
// snapshot. notifyMu is taken before the state lock is released so observers
// see snapshots in mutation order.
func (s *Store) commit(fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, o := range observers {
		o.OnChange(snap)
	}
	return nil
}

func (s *Store) releaseVoiceOverLocked() error {
	if s.voiceOver == nil {
		return nil
	}
	prev := *s.voiceOver
	s.voiceOver = nil
	if prev.IsLocal() && s.releaser != nil {
		return s.releaser.Release(prev)
	}
	return nil
}

// BeginRun acquires the campaign for a new run. It returns false, and changes
// nothing, when a run is already in progress. It also returns false with an
// ErrSceneBusy error while a scene operation from before is still in flight.
// Otherwise all scenes go back to pending, the previous voice-over is released
// and IsGenerating is set; the error then only reports a failed release.
func (s *Store) BeginRun(runID string, input CampaignInput) (bool, error) {
	started := false
	var releaseErr error
	err := s.commit(func() error {
		if s.isGenerating {
			return errAlreadyRunning
		}
		for _, sc := range s.scenes {
			if sc.Status.IsBusy() {
				return fmt.Errorf("%w: scene %d is %s", ErrSceneBusy, sc.ID, sc.Status)
			}
		}
		releaseErr = s.releaseVoiceOverLocked()
		s.runID = runID
		s.input = input
		s.fullScript = ""
		s.isGenerating = true
		for i, t := range SceneTemplates {
			s.scenes[i] = newScene(t)
		}
		started = true
		return nil
	})
	if errors.Is(err, errAlreadyRunning) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return started, releaseErr
}

var errAlreadyRunning = errors.New("run already in progress")

// EndRun releases the campaign.
func (s *Store) EndRun() {
	_ = s.commit(func() error {
		s.isGenerating = false
		return nil
	})
}

// AssignScripts stores the four scene scripts at once and moves every scene
// to script_ready. Nothing is assigned unless exactly four parts are given.
func (s *Store) AssignScripts(parts []string, fullScript string) error {
	if len(parts) != SceneCount {
		return fmt.Errorf("%w: got %d", ErrScriptCount, len(parts))
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty part", ErrScriptCount)
		}
	}
	return s.commit(func() error {
		for i := range s.scenes {
			s.scenes[i].Script = parts[i]
			s.scenes[i].Status = StatusScriptReady()
			s.scenes[i].Error = ""
		}
		s.fullScript = fullScript
		return nil
	})
}

// BeginImage moves a scene with a script to generating_image. It is the
// regenerate action and is refused while a run holds the campaign.
func (s *Store) BeginImage(id int) error {
	return s.commit(func() error {
		if s.isGenerating {
			return fmt.Errorf("%w: scene %d cannot be regenerated", ErrRunInProgress, id)
		}
		return s.beginImageLocked(id)
	})
}

// BeginRunImage is BeginImage for the image stage of run runID.
func (s *Store) BeginRunImage(runID string, id int) error {
	return s.commit(func() error {
		if !s.isGenerating || s.runID != runID {
			return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
		}
		return s.beginImageLocked(id)
	})
}

func (s *Store) beginImageLocked(id int) error {
	sc, err := s.sceneLocked(id)
	if err != nil {
		return err
	}
	if sc.Status.IsBusy() {
		return fmt.Errorf("%w: scene %d is %s", ErrSceneBusy, id, sc.Status)
	}
	if sc.Script == "" {
		return fmt.Errorf("%w: scene %d", ErrSceneNoScript, id)
	}
	sc.Status = StatusGeneratingImage()
	sc.Error = ""
	return nil
}

// CompleteImage stores a new image. A video made from the previous image is
// dropped, so the scene is always ready without a video afterwards.
func (s *Store) CompleteImage(id int, imageURL string) error {
	return s.commit(func() error {
		sc, err := s.sceneLocked(id)
		if err != nil {
			return err
		}
		if sc.Status.Kind != StatusKindGeneratingImage {
			return fmt.Errorf("%w: scene %d is %s", ErrSceneNotActive, id, sc.Status)
		}
		sc.ImageURL = imageURL
		sc.VideoURL = ""
		sc.Status = StatusReady()
		return nil
	})
}

// BeginVideo moves a scene to generating_video. The scene needs an image, must
// not have a video yet and must not be busy. No video starts during a run.
func (s *Store) BeginVideo(id int) error {
	return s.commit(func() error {
		if s.isGenerating {
			return fmt.Errorf("%w: scene %d cannot start a video", ErrRunInProgress, id)
		}
		sc, err := s.sceneLocked(id)
		if err != nil {
			return err
		}
		switch {
		case sc.Status.IsBusy():
			return fmt.Errorf("%w: scene %d is %s", ErrSceneBusy, id, sc.Status)
		case sc.ImageURL == "":
			return fmt.Errorf("%w: scene %d", ErrSceneNoImage, id)
		case sc.VideoURL != "":
			return fmt.Errorf("%w: scene %d", ErrSceneHasVideo, id)
		}
		sc.Status = StatusGeneratingVideo()
		sc.Error = ""
		return nil
	})
}

// SetPolling records the progress of the video poller.
func (s *Store) SetPolling(id int, attempt int, max int) error {
	return s.commit(func() error {
		sc, err := s.sceneLocked(id)
		if err != nil {
			return err
		}
		if sc.Status.Kind != StatusKindGeneratingVideo && sc.Status.Kind != StatusKindPolling {
			return fmt.Errorf("%w: scene %d is %s", ErrSceneNotActive, id, sc.Status)
		}
		sc.Status = StatusPolling(attempt, max)
		return nil
	})
}

// CompleteVideo stores the finished video; video_ready is terminal.
func (s *Store) CompleteVideo(id int, videoURL string) error {
	return s.commit(func() error {
		sc, err := s.sceneLocked(id)
		if err != nil {
			return err
		}
		if sc.Status.Kind != StatusKindPolling && sc.Status.Kind != StatusKindGeneratingVideo {
			return fmt.Errorf("%w: scene %d is %s", ErrSceneNotActive, id, sc.Status)
		}
		sc.VideoURL = videoURL
		sc.Status = StatusVideoReady()
		return nil
	})
}

// FailScene marks a scene as failed with a readable reason. Only the operation
// in flight on the scene can fail it; a settled scene is left alone.
func (s *Store) FailScene(id int, cause error) error {
	return s.commit(func() error {
		sc, err := s.sceneLocked(id)
		if err != nil {
			return err
		}
		if !sc.Status.IsBusy() {
			return fmt.Errorf("%w: scene %d is %s", ErrSceneNotActive, id, sc.Status)
		}
		sc.Status = StatusError()
		if cause != nil {
			sc.Error = cause.Error()
		}
		return nil
	})
}

// SetVoiceOver stores the voice-over, releasing a previously held local handle first.
func (s *Store) SetVoiceOver(ref AudioRef) error {
	var releaseErr error
	err := s.commit(func() error {
		releaseErr = s.releaseVoiceOverLocked()
		s.voiceOver = &ref
		return nil
	})
	if err != nil {
		return err
	}
	return releaseErr
}

// Input returns the input of the current run.
func (s *Store) Input() CampaignInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// FullScript returns the assembled script of the current run.
func (s *Store) FullScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullScript
}
