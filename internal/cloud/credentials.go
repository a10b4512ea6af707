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

package cloud

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissingCredential marks an operator configuration problem: a provider key
// is not present in the process environment.
var ErrMissingCredential = errors.New("provider credential is not configured")

// LoadDotEnv loads the given dotenv files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if !fileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
		slog.Info("loaded credentials file", "file", f)
	}
	return nil
}

// Credential returns the value of the named environment variable or an error
// wrapping ErrMissingCredential.
func Credential(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: no variable name configured", ErrMissingCredential)
	}
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, name)
	}
	return value, nil
}
