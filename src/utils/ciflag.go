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

	log "github.com/sirupsen/logrus"
)

const UPDATED_DATA_FLAG = "updated_data=true\n"

// SignalUpdated appends the updated-data marker to the CI output file at path.
// An empty path is a no-op.
func SignalUpdated(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ci output file %q: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(UPDATED_DATA_FLAG)
	if err != nil {
		return fmt.Errorf("write ci output file %q: %w", path, err)
	}
	log.Infof("signalled updated data to %q", path)
	return nil
}
