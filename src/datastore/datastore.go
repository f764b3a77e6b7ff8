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
	"net/url"
	"strings"
)

// Datastore receives export artifacts. WriteFile must make the object visible only
// once all of data is stored.
type Datastore interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	// Location is where WriteFile(name) puts the object, for reporting.
	Location(name string) string
	Close() error
}

// NewDataStore picks the store for an output location: s3://bucket/prefix,
// gs://bucket/prefix, https://<account>.blob.core.windows.net/<container>/prefix or a
// local directory.
func NewDataStore(ctx context.Context, location string) (Datastore, error) {
	var ds Datastore
	var err error
	switch {
	case strings.HasPrefix(location, "s3://"):
		ds, err = NewS3Datastore(ctx, location)
	case strings.HasPrefix(location, "gs://"):
		ds, err = NewGCSDatastore(ctx, location)
	case strings.HasPrefix(location, "https://"):
		ds, err = NewAzDatastore(ctx, location)
	default:
		ds, err = NewLocalDatastore(location)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// splitBucketURL returns the bucket and the key prefix (without leading "/" and
// with a trailing "/" when not empty).
func splitBucketURL(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parsing the location %q: %w", location, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing bucket in url %v", location)
	}
	return u.Host, keyPrefix(u.Path), nil
}

func keyPrefix(path string) string {
	prefix := strings.Trim(path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}
