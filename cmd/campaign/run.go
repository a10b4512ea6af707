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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaycherian/gcp-go-ugc-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/providers"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-ugc-studio/internal/core/workflow"
)

type runOptions struct {
	Server       string
	ProductName  string
	Vibe         string
	ProductImage string
	ModelImage   string
	Video        bool
	Timeout      time.Duration
	Interval     time.Duration
	MaxAttempts  int
	Workers      int
	AudioDir     string
}

var opts runOptions

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run the script, image and voice-over stages, then optionally the scene videos",
	Example: "  campaign run --server http://localhost:8080 --product EcoBottle --vibe energetic --product-image bottle.png --model-image model.jpg --video",
	RunE:    runCommand,
}

func init() {
	polling := cloud.Polling{}
	f := runCmd.Flags()
	f.StringVar(&opts.Server, "server", "http://localhost:8080", "base URL of the server")
	f.StringVar(&opts.ProductName, "product", "", "product name")
	f.StringVar(&opts.Vibe, "vibe", "", "tone of the ad, e.g. energetic")
	f.StringVar(&opts.ProductImage, "product-image", "", "reference image of the product")
	f.StringVar(&opts.ModelImage, "model-image", "", "reference image of the model")
	f.BoolVar(&opts.Video, "video", false, "generate a video for every ready scene")
	f.DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "timeout of one Generation Service call")
	f.DurationVar(&opts.Interval, "poll-interval", polling.Interval(), "wait between two video status checks")
	f.IntVar(&opts.MaxAttempts, "poll-attempts", polling.Ceiling(), "status checks before a video times out")
	f.IntVar(&opts.Workers, "workers", model.SceneCount, "concurrent image requests")
	f.StringVar(&opts.AudioDir, "audio-dir", "", "directory for a binary voice-over")
	_ = runCmd.MarkFlagRequired("product")
	_ = runCmd.MarkFlagRequired("vibe")
}

// readImage turns a file into a data URL. An empty path is no image.
func readImage(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return providers.EncodeDataURL(data)
}

// logSnapshot is the observer printing the state after each change.
func logSnapshot(s model.Snapshot) {
	args := []any{"generating", s.IsGenerating}
	for _, scene := range s.Scenes {
		args = append(args, scene.Name, scene.Status.String())
	}
	slog.Info("campaign changed", args...)
}

func runCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	productImage, err := readImage(opts.ProductImage)
	if err != nil {
		return fmt.Errorf("read --product-image: %w", err)
	}
	modelImage, err := readImage(opts.ModelImage)
	if err != nil {
		return fmt.Errorf("read --model-image: %w", err)
	}

	handles, err := model.NewAudioHandles(opts.AudioDir, "")
	if err != nil {
		return err
	}
	store := model.NewStore(handles)
	store.Subscribe(model.ObserverFunc(logSnapshot))

	client := services.NewHTTPGenerationClient(opts.Server, opts.Timeout)
	coordinator := workflow.NewCampaignCoordinator(store, client, handles, opts.Workers)

	report, err := coordinator.StartRun(ctx, model.CampaignInput{
		ProductName: opts.ProductName,
		Vibe:        opts.Vibe,
		ReferenceImages: model.ReferenceImages{
			Product: productImage,
			Model:   modelImage,
		},
	})
	if err != nil {
		return err
	}

	if opts.Video {
		pipeline := workflow.NewScenePipeline(ctx, store, client, opts.Interval, opts.MaxAttempts)
		for _, scene := range store.Snapshot().Scenes {
			if admitted, err := pipeline.GenerateVideo(scene.ID); !admitted {
				slog.Warn("scene video skipped", "scene", scene.Name, "reason", err)
			}
		}
		pipeline.Wait()
	}

	printSummary(cmd, store.Snapshot(), report)
	if err := report.Err(); err != nil {
		slog.Warn("campaign finished with failures", "error", err)
	}
	return nil
}

func printSummary(cmd *cobra.Command, s model.Snapshot, report *workflow.RunReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", report.RunID)
	for _, scene := range s.Scenes {
		fmt.Fprintf(out, "%d. %-8s %-16s image=%s video=%s", scene.ID, scene.Name, scene.Status, scene.ImageURL, scene.VideoURL)
		if scene.Error != "" {
			fmt.Fprintf(out, " error=%q", scene.Error)
		}
		fmt.Fprintln(out)
	}
	if s.VoiceOver != nil {
		where := s.VoiceOver.URL
		if s.VoiceOver.IsLocal() {
			where = s.VoiceOver.Handle + " (local)"
		}
		fmt.Fprintf(out, "voice-over: %s\n", where)
	}
}
