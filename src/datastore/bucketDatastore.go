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
	"mime"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// BucketDatastore writes artifacts as objects of a gocloud bucket. Objects become
// visible when their writer is closed, so readers never see partial artifacts.
type BucketDatastore struct {
	bucket  *blob.Bucket
	baseURL string
	prefix  string
}

func NewBucketDatastore(bucket *blob.Bucket, baseURL string, prefix string) *BucketDatastore {
	return &BucketDatastore{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/"), prefix: prefix}
}

func (ds *BucketDatastore) Location(name string) string {
	return ds.baseURL + "/" + ds.prefix + name
}

func (ds *BucketDatastore) WriteFile(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	key := ds.prefix + name
	opts := &blob.WriterOptions{ContentType: contentType(name)}
	w, err := ds.bucket.NewWriter(ctx, key, opts)
	if err != nil {
		return fmt.Errorf("open writer for %s: %w", ds.Location(name), err)
	}
	if _, err := w.Write(data); err != nil {
		// cancelling before Close aborts the upload
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

func (ds *BucketDatastore) Close() error {
	return ds.bucket.Close()
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
