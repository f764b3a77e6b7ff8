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
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/utils"
)

// LocalDatastore writes artifacts into a directory, through a temporary file that
// is renamed into place.
type LocalDatastore struct {
	dataDir string
}

func NewLocalDatastore(dataDir string) (*LocalDatastore, error) {
	if err := utils.CreateDirIfNotExists(dataDir); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", dataDir, err)
	}
	absDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("absolute path of %q: %w", dataDir, err)
	}
	return &LocalDatastore{dataDir: absDir}, nil
}

func (ds *LocalDatastore) Dir() string {
	return ds.dataDir
}

func (ds *LocalDatastore) Location(name string) string {
	return filepath.Join(ds.dataDir, name)
}

func (ds *LocalDatastore) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := ds.Location(name)
	tmp, err := os.CreateTemp(ds.dataDir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", target, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warnf("removing temp file %s: %v", tmpName, rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename into %s: %w", target, err)
	}
	log.Debugf("wrote %d bytes to %s", len(data), target)
	return nil
}

func (ds *LocalDatastore) Close() error {
	return nil
}
