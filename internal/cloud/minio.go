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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	minioCredentials "github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioAssetStore is the AssetStore used for self-hosted deployments.
type MinioAssetStore struct {
	Client *minio.Client
	Bucket string
	TTL    time.Duration

	ensureOnce sync.Once
	ensureErr  error
}

// NewMinioAssetStore connects to the configured endpoint. The secret key is
// read from MINIO_SECRET_KEY when present.
func NewMinioAssetStore(cfg Storage) (*MinioAssetStore, error) {
	secret := cfg.MinIO.SecretKey
	if env := os.Getenv("MINIO_SECRET_KEY"); env != "" {
		secret = env
	}
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  minioCredentials.NewStaticV4(cfg.MinIO.AccessKey, secret, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client for %s: %w", cfg.MinIO.Endpoint, err)
	}
	return &MinioAssetStore{Client: client, Bucket: cfg.AssetBucket, TTL: cfg.SignedURLTTL()}, nil
}

func (m *MinioAssetStore) ensureBucket(ctx context.Context) error {
	m.ensureOnce.Do(func() {
		exists, err := m.Client.BucketExists(ctx, m.Bucket)
		if err != nil {
			m.ensureErr = fmt.Errorf("check bucket %s: %w", m.Bucket, err)
			return
		}
		if !exists {
			if err := m.Client.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{}); err != nil {
				m.ensureErr = fmt.Errorf("create bucket %s: %w", m.Bucket, err)
				return
			}
			slog.Info("created asset bucket", "bucket", m.Bucket)
		}
	})
	return m.ensureErr
}

// Put uploads data and returns a presigned GET URL.
func (m *MinioAssetStore) Put(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}
	_, err := m.Client.PutObject(ctx, m.Bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to minio: %w", name, err)
	}
	u, err := m.Client.PresignedGetObject(ctx, m.Bucket, name, m.TTL, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", name, err)
	}
	return u.String(), nil
}
