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

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"gocloud.dev/blob/azureblob"
)

// check if url is in format
// https://<account_name>.blob.core.windows.net/<container_name>[/prefix]
func splitAzureURL(location string) (service string, containerName string, prefix string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing the location %q: %w", location, err)
	}
	if u.Host == "" {
		return "", "", "", fmt.Errorf("missing service in azure blob url %v", location)
	} else if !strings.Contains(u.Host, ".blob.") {
		return "", "", "", fmt.Errorf("invalid service in azure blob url %v", location)
	}
	blobPath := strings.TrimPrefix(u.Path, "/")
	containerName, rest, _ := strings.Cut(blobPath, "/")
	if containerName == "" {
		return "", "", "", fmt.Errorf("missing container in azure blob url %v", location)
	}
	return u.Host, containerName, keyPrefix(rest), nil
}

// NewAzDatastore opens a blob container with the default Azure credential chain.
func NewAzDatastore(ctx context.Context, location string) (*BucketDatastore, error) {
	service, containerName, prefix, err := splitAzureURL(location)
	if err != nil {
		return nil, err
	}
	containerURL := "https://" + service + "/" + containerName
	// cred represents the default Oauth token used to authenticate the account in the url.
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure default credential: %w", err)
	}
	containerClient, err := container.NewClient(containerURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob container client: %w", err)
	}
	bucket, err := azureblob.OpenBucket(ctx, containerClient, nil)
	if err != nil {
		return nil, fmt.Errorf("open azure container %q: %w", containerName, err)
	}
	return NewBucketDatastore(bucket, containerURL, prefix), nil
}
