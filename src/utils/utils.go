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
package utils

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

func FileOrFolderExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		} else {
			panic(err)
		}
	} else {
		return true
	}
}

// CreateDirIfNotExists creates dir and any missing parents.
func CreateDirIfNotExists(dir string) error {
	if FileOrFolderExists(dir) {
		return nil
	}
	log.Infof("creating directory: %s", dir)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// IsRemoteLocation reports whether location names an object store rather than a local path.
func IsRemoteLocation(location string) bool {
	for _, prefix := range []string{"s3://", "gs://", "https://", "http://"} {
		if strings.HasPrefix(location, prefix) {
			return true
		}
	}
	return false
}

// RedactArgs returns a copy of args with the values of the given flags replaced by XXX.
func RedactArgs(args []string, secretFlags ...string) []string {
	redacted := make([]string, len(args))
	copy(redacted, args)
	for i := 0; i < len(redacted); i++ {
		for _, flag := range secretFlags {
			if redacted[i] == flag && i+1 < len(redacted) {
				redacted[i+1] = "XXX"
			} else if strings.HasPrefix(redacted[i], flag+"=") {
				redacted[i] = flag + "=XXX"
			}
		}
	}
	return redacted
}
