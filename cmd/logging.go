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
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/BitCraftToolBox/automata/src/utils"
)

type MyFormatter struct{}

var levelList = []string{
	"PANIC",
	"FATAL",
	"ERROR",
	"WARN",
	"INFO",
	"DEBUG",
	"TRACE",
}

func (mf *MyFormatter) Format(entry *log.Entry) ([]byte, error) {
	level := levelList[int(entry.Level)]
	fileName, line := "???", 0
	if entry.Caller != nil {
		fileName, line = filepath.Base(entry.Caller.File), entry.Caller.Line
	}
	// Example log line:
	// 2024-11-02 12:16:42 INFO export.go:27 Logging initialised.
	msg := fmt.Sprintf("%s %s %s:%d %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), level,
		fileName, line, entry.Message)
	return []byte(msg), nil
}

// InitLogging writes logs to <logDir>/automata-<cmdName>.log, or to stderr when logDir
// is empty.
func InitLogging(logDir string, level string, cmdName string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		utils.ErrExit("invalid log-level %q: %v", level, err)
	}
	log.SetLevel(lvl)
	log.SetReportCaller(true)
	log.SetFormatter(&MyFormatter{})

	if logDir != "" {
		logFileName := filepath.Join(logDir, fmt.Sprintf("automata-%s.log", cmdName))
		// logRotator creates the log directory and file when missing.
		logRotator := &lumberjack.Logger{
			Filename:   logFileName,
			MaxSize:    200, // 200 MB log size before rotation
			MaxBackups: 10,  // Allow upto 10 logs at once before deleting oldest logs.
		}
		log.SetOutput(logRotator)
	} else {
		log.SetOutput(os.Stderr)
	}

	log.Infof("Logging initialised. run id %s", uuid.NewString())
	log.Infof("Args: %v", utils.RedactArgs(os.Args, "--token"))
	log.Infof("\n%s", getVersionInfo())
}
