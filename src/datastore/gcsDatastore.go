/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package datastore

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GCSDatastore writes artifacts to gs://bucket/prefix. An object upload only
// completes when its writer is closed.
type GCSDatastore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSDatastore uses the default credentials. GCS_ENDPOINT points the client at
// another endpoint, such as an emulator.
func NewGCSDatastore(ctx context.Context, location string, opts ...option.ClientOption) (*GCSDatastore, error) {
	bucket, prefix, err := splitBucketURL(location)
	if err != nil {
		return nil, err
	}
	if endpoint := os.Getenv("GCS_ENDPOINT"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	// Creates a client with default credentials.
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSDatastore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (ds *GCSDatastore) Location(name string) string {
	return "gs://" + ds.bucket + "/" + ds.prefix + name
}

func (ds *GCSDatastore) WriteFile(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := ds.client.Bucket(ds.bucket).Object(ds.prefix + name).NewWriter(ctx)
	w.ContentType = contentType(name)
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("write %s: %w", ds.Location(name), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", ds.Location(name), err)
	}
	log.Debugf("uploaded %d bytes to %s", len(data), ds.Location(name))
	return nil
}

func (ds *GCSDatastore) Close() error {
	return ds.client.Close()
}
