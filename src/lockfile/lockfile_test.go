//go:build unit

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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAndUnlock(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLockfile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LOCKFILE_NAME), l.Path())

	require.NoError(t, l.Lock())
	pid, err := l.GetCmdPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, l.Unlock())
	_, err = os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestLockHeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()
	// the parent of the test binary is alive for the duration of the test
	require.NoError(t, os.WriteFile(filepath.Join(dir, LOCKFILE_NAME), []byte(fmt.Sprintf("%d\n", os.Getppid())), 0644))

	l, err := NewLockfile(dir)
	require.NoError(t, err)
	err = l.Lock()
	assert.ErrorIs(t, err, ErrBusy)
}
