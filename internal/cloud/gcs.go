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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements the AssetStore on Google Cloud Storage. Objects are
// written with the generated content type and returned as V4 signed URLs, so
// the asset bucket can stay private.
package cloud

import (
	"context"
	"fmt"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
)

// GCSAssetStore writes generated assets to a bucket.
type GCSAssetStore struct {
	StorageClient *storage.Client
	IAMClient     *credentials.IamCredentialsClient // Optional; signs URLs when running without a key file.
	SignerEmail   string                            // Service account used with IAMClient.
	Bucket        string
	TTL           time.Duration
}

// Put uploads data to the bucket and returns a signed GET URL.
func (s *GCSAssetStore) Put(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	wc := s.StorageClient.Bucket(s.Bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("write object %s to bucket %s: %w", name, s.Bucket, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close object %s in bucket %s: %w", name, s.Bucket, err)
	}
	return s.sign(ctx, s.Bucket, name)
}

// SignURI turns a gs:// URI, such as a Veo output, into a signed URL.
func (s *GCSAssetStore) SignURI(ctx context.Context, uri string) (string, error) {
	bucket, object, err := SplitGCSURI(uri)
	if err != nil {
		return "", err
	}
	return s.sign(ctx, bucket, object)
}

func (s *GCSAssetStore) sign(ctx context.Context, bucket string, object string) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.TTL),
	}
	if s.IAMClient != nil && s.SignerEmail != "" {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := s.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	u, err := s.StorageClient.Bucket(bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", bucket, object, err)
	}
	return u, nil
}
