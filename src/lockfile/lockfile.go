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
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nightlyone/lockfile"
	log "github.com/sirupsen/logrus"
)

const LOCKFILE_NAME = ".automata.lck"

var ErrBusy = errors.New("output directory is locked by another run")

// Lockfile guards a local output directory against concurrent exports.
type Lockfile struct {
	fpath    string
	cmdPID   int
	lockfile lockfile.Lockfile
}

func NewLockfile(outputDir string) (*Lockfile, error) {
	fpath, err := filepath.Abs(filepath.Join(outputDir, LOCKFILE_NAME))
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for lockfile in %q: %w", outputDir, err)
	}
	return &Lockfile{fpath: fpath, cmdPID: -1}, nil
}

func (l *Lockfile) Path() string {
	return l.fpath
}

func (l *Lockfile) GetCmdPID() (int, error) {
	if l.cmdPID != -1 {
		return l.cmdPID, nil
	}

	bytes, err := os.ReadFile(l.fpath)
	if err != nil {
		return -1, fmt.Errorf("failed to read lockfile %q: %w", l.fpath, err)
	}
	l.cmdPID, err = strconv.Atoi(strings.Trim(string(bytes), " \n"))
	if err != nil {
		return -1, fmt.Errorf("failed to parse PID from lockfile %q: %w", l.fpath, err)
	}
	return l.cmdPID, nil
}

// Lock takes the lock or returns an error wrapping ErrBusy when another live
// process holds it. The lock of a dead process is taken over.
func (l *Lockfile) Lock() error {
	var err error
	l.lockfile, err = lockfile.New(l.fpath)
	if err != nil {
		return fmt.Errorf("failed to create lockfile %q: %w", l.fpath, err)
	}

	err = l.lockfile.TryLock()
	switch {
	case err == nil:
		log.Infof("locked %s", l.fpath)
		return nil
	case errors.Is(err, lockfile.ErrBusy):
		pid, _ := l.GetCmdPID()
		return fmt.Errorf("%w (pid %d holds %s)", ErrBusy, pid, l.fpath)
	default:
		return fmt.Errorf("unable to lock the output directory: %w", err)
	}
}

func (l *Lockfile) Unlock() error {
	err := l.lockfile.Unlock()
	if err != nil {
		return fmt.Errorf("unable to unlock %q: %w", l.fpath, err)
	}
	return nil
}
